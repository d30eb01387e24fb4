// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/grokdrive/internal/browser"
	"github.com/xkilldash9x/grokdrive/internal/browser/dom"
	"github.com/xkilldash9x/grokdrive/internal/input"
	"github.com/xkilldash9x/grokdrive/internal/lifecycle"
	"github.com/xkilldash9x/grokdrive/internal/observability"
	"github.com/xkilldash9x/grokdrive/internal/orchestrator"
	"github.com/xkilldash9x/grokdrive/internal/results"
	"github.com/xkilldash9x/grokdrive/internal/stabilize"
	"github.com/xkilldash9x/grokdrive/internal/tts"
)

// newRunCmd creates the `run` command: the full prompt automation pipeline.
func newRunCmd() *cobra.Command {
	var (
		inputFile  string
		outputFile string
		resume     bool
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Runs every prompt from the input CSV against the live session",
		Long: `Loads prompts from a CSV with id and text columns, attaches to the running
Chrome instance, and processes each prompt end to end: fresh conversation,
voice (or text) delivery, response capture, CSV persistence. With --resume,
prompts whose ids already appear in the output file are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}

			if outputFile == "" {
				outputFile = results.DefaultFilename(time.Now())
				logger.Info("Using timestamped results file", zap.String("path", outputFile))
			}

			prompts, err := results.LoadPrompts(inputFile)
			if err != nil {
				return fmt.Errorf("load prompts: %w", err)
			}
			logger.Info("Prompts loaded", zap.Int("count", len(prompts)), zap.String("path", inputFile))

			completed := map[string]struct{}{}
			if resume {
				completed, err = results.CompletedIDs(outputFile)
				if err != nil {
					return fmt.Errorf("read existing results for resume: %w", err)
				}
				logger.Info("Resuming run", zap.Int("already_completed", len(completed)))
			}

			session, err := browser.Connect(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("connect to browser: %w", err)
			}
			defer session.Close()

			resolver := dom.NewResolver(session, logger)
			probe := dom.NewProbe(resolver, logger)

			var speaker input.Speaker
			if sp, err := tts.NewSpeaker(cfg, logger); err != nil {
				// No synthesis available: every prompt will ride the text
				// fallback instead.
				logger.Warn("Speech synthesis unavailable, text input only", zap.Error(err))
				speaker = unavailableSpeaker{err: err}
			} else {
				speaker = sp
			}

			strategy := input.NewStrategy(session, resolver, probe, speaker, cfg, logger)
			controller := lifecycle.NewController(session, session, probe, resolver, cfg, logger)
			engine := stabilize.NewEngine(probe, cfg, logger)
			sink := results.NewSink(outputFile, logger)

			orch := orchestrator.New(controller, strategy, engine, probe, session, cfg, logger, cmd.OutOrStdout())
			if err := orch.Run(ctx, prompts, sink, completed); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Results saved to: %s\n", outputFile)
			return nil
		},
	}

	runCmd.Flags().StringVarP(&inputFile, "input", "i", "prompts.csv", "prompts CSV file (id,text columns)")
	runCmd.Flags().StringVarP(&outputFile, "output", "o", "", "results CSV file (default results_<timestamp>.csv)")
	runCmd.Flags().BoolVarP(&resume, "resume", "r", false, "skip prompts already present in the output file")
	return runCmd
}

// unavailableSpeaker fails every speech request so the input strategy demotes
// prompts to the text channel.
type unavailableSpeaker struct {
	err error
}

func (u unavailableSpeaker) Speak(context.Context, string) error {
	return fmt.Errorf("speech synthesis unavailable: %w", u.err)
}
