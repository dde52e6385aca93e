package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"credence/internal/calibration"
	"credence/internal/logging"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Domain string
	Limit  int
}

// NewInspectCommand prints a domain's calibration state, recent
// decisions, and any pending approval tickets.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show calibration state, recent decisions, and pending tickets",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine(opts.ConfigPath)
			if err != nil {
				return err
			}
			defer eng.close()

			ref, err := eng.cal.Reference(opts.Domain)
			if err != nil {
				return err
			}
			if ref == nil {
				fmt.Printf("domain %s: no reference yet (run 'credence calibrate')\n", opts.Domain)
			} else {
				printReference(ref)
			}

			report, err := eng.cal.DetectDrift(opts.Domain, calibration.DefaultDriftConfig())
			if err != nil {
				return err
			}
			fmt.Printf("drift: attention=%v delta=%.4f (%s)\n",
				report.NeedsAttention, report.MaxDelta, report.Reason)

			arts, err := eng.cal.RecentArtifacts(opts.Domain, opts.Limit)
			if err != nil {
				return err
			}
			fmt.Printf("recent artifacts (%d):\n", len(arts))
			for _, a := range arts {
				fmt.Printf("  %s  S=%.4f accepted=%v correct=%v\n",
					a.Timestamp.Format("2006-01-02 15:04:05"), a.S, a.Accepted, a.Correct)
			}

			decisions, err := logging.Recent(eng.provDB, opts.Limit)
			if err != nil {
				return err
			}
			fmt.Printf("recent decisions (%d):\n", len(decisions))
			for _, d := range decisions {
				fmt.Printf("  %s  [%s] %s S=%.4f iter=%d  %q\n",
					d.CreatedAt.Format("2006-01-02 15:04:05"), d.Domain, d.Decision,
					d.Score, d.Iterations, truncate(d.Question, 60))
			}

			tickets, err := eng.approvals.Pending()
			if err != nil {
				return err
			}
			fmt.Printf("pending tickets (%d):\n", len(tickets))
			for _, t := range tickets {
				fmt.Printf("  %s  tool=%s expires=%s\n",
					t.ID, t.Context["tool"], t.ExpiresAt.Format("15:04:05"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Domain, "domain", "default", "calibration domain")
	cmd.Flags().IntVar(&opts.Limit, "limit", 10, "max rows per section")
	return cmd
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
