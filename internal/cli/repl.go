package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"credence/internal/refine"
	"credence/internal/stream"
)

// ReplOptions holds flags for the repl command.
type ReplOptions struct {
	*RootOptions
	Domain   string
	Evidence []string
}

// NewReplCommand creates the interactive question loop.
func NewReplCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive question loop against the full engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine(opts.ConfigPath)
			if err != nil {
				return err
			}
			defer eng.close()
			return runRepl(cmd.Context(), eng, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Domain, "domain", "default", "calibration domain")
	cmd.Flags().StringArrayVar(&opts.Evidence, "evidence", nil, "evidence snippet (repeatable)")
	return cmd
}

func runRepl(ctx context.Context, eng *engine, opts *ReplOptions) error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("credence repl — empty line or 'exit' quits")
	fmt.Print("> ")
	for scanner.Scan() {
		question := strings.TrimSpace(scanner.Text())
		if question == "" || question == "exit" {
			break
		}
		answerOnce(ctx, eng, opts, question)
		fmt.Print("> ")
	}
	return scanner.Err()
}

// answerOnce runs one question, streaming events when verbose. An
// approval_pending result prints the ticket so the caller can resolve
// it and re-ask.
func answerOnce(ctx context.Context, eng *engine, opts *ReplOptions, question string) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var emit refine.EmitFunc
	done := make(chan struct{})
	if opts.Verbose {
		pub := stream.NewPublisher(runCtx, 64)
		pub.StartKeepalive(15 * time.Second)
		go func() {
			defer close(done)
			for ev := range pub.Events() {
				fmt.Printf("  [%d] %s %v\n", ev.Seq, ev.Type, ev.Data)
			}
		}()
		emit = func(event string, data map[string]any) {
			pub.Emit(event, data)
		}
		defer func() {
			pub.Close()
			<-done
		}()
	}

	res, err := eng.orch.Answer(runCtx, refine.Params{
		Question: question,
		Domain:   opts.Domain,
		Evidence: opts.Evidence,
	}, emit)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	fmt.Printf("[%s] %s\n", res.StopReason, res.Final)
	if len(res.Trace) > 0 {
		last := res.Trace[len(res.Trace)-1]
		fmt.Printf("  S=%.4f s1_norm=%.4f s2=%.4f cp_accept=%v iterations=%d\n",
			last.S, last.S1Norm, last.S2, last.CPAccept, res.Usage.Iterations)
	}
	if res.StopReason == refine.StopApprovalPending {
		fmt.Printf("  pending ticket: %s (resolve with 'credence approve %s')\n", res.TicketID, res.TicketID)
	}
}
