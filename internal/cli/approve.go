package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ApproveOptions holds flags for the approve command.
type ApproveOptions struct {
	*RootOptions
	Deny bool
}

// NewApproveCommand resolves a pending approval ticket. The suspended
// run picks the decision up when it resumes with the same ticket id.
func NewApproveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApproveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "approve <ticket-id>",
		Short: "Approve or deny a pending tool-use ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine(opts.ConfigPath)
			if err != nil {
				return err
			}
			defer eng.close()

			if n, err := eng.approvals.PruneExpired(); err == nil && n > 0 {
				fmt.Printf("pruned %d expired ticket(s)\n", n)
			}

			id := args[0]
			if opts.Deny {
				if err := eng.approvals.Deny(id); err != nil {
					return err
				}
				fmt.Printf("denied %s\n", id)
				return nil
			}
			if err := eng.approvals.Approve(id); err != nil {
				return err
			}
			fmt.Printf("approved %s\n", id)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Deny, "deny", false, "deny the ticket instead of approving")
	return cmd
}
