package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"credence/internal/calibration"
)

// CalibrateOptions holds flags for the calibrate command.
type CalibrateOptions struct {
	*RootOptions
	Domain     string
	Target     float64
	MinSamples int
}

// NewCalibrateCommand recomputes a domain's conformal threshold and
// quantile curve from its recorded artifacts.
func NewCalibrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CalibrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Recompute a domain's threshold and reference curve",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine(opts.ConfigPath)
			if err != nil {
				return err
			}
			defer eng.close()

			target := opts.Target
			if target == 0 {
				target = eng.cfg.Gate.TargetMiscoverage
			}
			minSamples := opts.MinSamples
			if minSamples == 0 {
				minSamples = eng.cfg.Gate.MinSamples
			}

			ref, err := eng.cal.Calibrate(opts.Domain, target, minSamples)
			if err != nil {
				return err
			}
			printReference(ref)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Domain, "domain", "default", "calibration domain")
	cmd.Flags().Float64Var(&opts.Target, "target", 0, "target miscoverage rate (default from config)")
	cmd.Flags().IntVar(&opts.MinSamples, "min-samples", 0, "minimum sample size (default from config)")
	return cmd
}

func printReference(ref *calibration.Reference) {
	fmt.Printf("domain: %s\n", ref.Domain)
	if ref.Tau != nil {
		fmt.Printf("tau: %.4f\n", *ref.Tau)
	} else {
		fmt.Println("tau: unavailable (insufficient or too-noisy data)")
	}
	fmt.Printf("target miscoverage: %.4f\n", ref.TargetMiscoverage)
	fmt.Printf("stats: n=%d accepted=%d false_accept=%d rate_accept=%.4f rate_false_accept=%.4f\n",
		ref.Stats.N, ref.Stats.Accepted, ref.Stats.FalseAccept,
		ref.Stats.RateAccept, ref.Stats.RateFalseAccept)
	for _, p := range ref.QuantileCurve {
		fmt.Printf("  score q%.2f = %.4f\n", p.Probability, p.Value)
	}
	for _, p := range ref.UncertaintyCurve {
		fmt.Printf("  raw   q%.2f = %.4f\n", p.Probability, p.Value)
	}
}
