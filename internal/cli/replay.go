package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"credence/internal/replay"
)

// NewReplayCommand re-runs a recorded decision fixture through the
// live policy and gate, reporting any divergence.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <fixture.json>",
		Short: "Replay a recorded decision fixture against the current policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := replay.LoadFixture(args[0])
			if err != nil {
				return err
			}
			results, summary := replay.Replay(f)
			fmt.Print(replay.RenderSummary(f, results, summary))
			if summary.Matched != summary.Total {
				return fmt.Errorf("%d of %d turns diverged", summary.Total-summary.Matched, summary.Total)
			}
			return nil
		},
	}
}
