package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"credence/internal/calibration"
)

// DriftOptions holds flags for the drift command.
type DriftOptions struct {
	*RootOptions
	Domain    string
	Window    int
	Tolerance float64
	MinRecent int
}

// NewDriftCommand compares recent score quantiles against the stored
// reference curve.
func NewDriftCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DriftOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Check a domain's score distribution for drift",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine(opts.ConfigPath)
			if err != nil {
				return err
			}
			defer eng.close()

			cfg := calibration.DefaultDriftConfig()
			if opts.Window > 0 {
				cfg.Window = opts.Window
			}
			if opts.Tolerance > 0 {
				cfg.Tolerance = opts.Tolerance
			}
			if opts.MinRecent > 0 {
				cfg.MinRecent = opts.MinRecent
			}

			report, err := eng.cal.DetectDrift(opts.Domain, cfg)
			if err != nil {
				return err
			}
			fmt.Printf("domain: %s\n", report.Domain)
			fmt.Printf("recent: %d  max delta: %.4f\n", report.RecentN, report.MaxDelta)
			if report.NeedsAttention {
				fmt.Printf("NEEDS ATTENTION: %s\n", report.Reason)
			} else {
				fmt.Printf("ok: %s\n", report.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Domain, "domain", "default", "calibration domain")
	cmd.Flags().IntVar(&opts.Window, "window", 0, "recent artifact window")
	cmd.Flags().Float64Var(&opts.Tolerance, "tolerance", 0, "max quantile delta before flagging")
	cmd.Flags().IntVar(&opts.MinRecent, "min-recent", 0, "sample floor below which drift never flags")
	return cmd
}
