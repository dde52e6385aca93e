package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by all subcommands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
}

// NewRootCommand builds the credence command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "credence",
		Short: "Uncertainty-gated question answering engine",
		Long: `credence answers natural-language questions by combining retrieved
evidence with a generated draft, then deciding via calibrated
uncertainty, a structured verifier, and a conformal gate whether to
accept, iteratively repair, or abstain.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "stream pipeline events")

	cmd.AddCommand(NewReplCommand(opts))
	cmd.AddCommand(NewCalibrateCommand(opts))
	cmd.AddCommand(NewDriftCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewApproveCommand(opts))

	return cmd
}
