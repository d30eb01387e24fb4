// File: internal/orchestrator/orchestrator.go

// Package orchestrator sequences a run: for each pending prompt it drives the
// lifecycle controller, the input strategy and the stabilization engine, wraps
// the whole sequence in a retry loop, and persists every outcome before the
// next prompt starts.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/grokdrive/internal/browser/dom"
	"github.com/xkilldash9x/grokdrive/internal/config"
	"github.com/xkilldash9x/grokdrive/internal/input"
	"github.com/xkilldash9x/grokdrive/internal/results"
	"github.com/xkilldash9x/grokdrive/internal/stabilize"
)

const (
	interPromptPause = 1 * time.Second
	reloadSettle     = 2 * time.Second
	promptPreview    = 80
)

// Lifecycle moves the page to a fresh conversation. False is degraded, not
// fatal.
type Lifecycle interface {
	EnsureFresh(ctx context.Context) bool
}

// InputStrategy delivers one prompt and tears down voice mode afterwards.
type InputStrategy interface {
	Submit(ctx context.Context, prompt string) (input.Channel, error)
	ExitVoiceMode(ctx context.Context) error
}

// Responder waits out the reply capture. Implemented by stabilize.Engine.
type Responder interface {
	Await(ctx context.Context) (string, error)
}

// ErrorProbe checks for a stuck error banner before a prompt is attempted.
type ErrorProbe interface {
	UIError(ctx context.Context) (string, error)
}

// Reloader recovers from a persistent banner by reloading the page.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Sink durably persists one result record.
type Sink interface {
	Append(rec results.ResultRecord) error
}

// Orchestrator runs prompts end to end against one page.
type Orchestrator struct {
	runID     string
	lifecycle Lifecycle
	input     InputStrategy
	responder Responder
	probe     ErrorProbe
	reloader  Reloader
	cfg       *config.Config
	logger    *zap.Logger
	progress  io.Writer
}

func New(lifecycle Lifecycle, in InputStrategy, responder Responder, probe ErrorProbe, reloader Reloader, cfg *config.Config, logger *zap.Logger, progress io.Writer) *Orchestrator {
	if progress == nil {
		progress = io.Discard
	}
	return &Orchestrator{
		runID:     uuid.NewString(),
		lifecycle: lifecycle,
		input:     in,
		responder: responder,
		probe:     probe,
		reloader:  reloader,
		cfg:       cfg,
		logger:    logger.Named("orchestrator"),
		progress:  progress,
	}
}

// RunID identifies this run in logs.
func (o *Orchestrator) RunID() string { return o.runID }

// Run processes every prompt not already present in completed, in input
// order. Each record is appended to the sink the moment its prompt finishes;
// an append failure aborts the run since continuing would silently lose
// results. Prompt-level failures never abort: they are recorded as error
// replies and the run moves on. Cancellation aborts without writing anything
// for the in-flight prompt, which keeps it pending for a resumed run.
func (o *Orchestrator) Run(ctx context.Context, prompts []results.PromptRecord, sink Sink, completed map[string]struct{}) error {
	pending := make([]results.PromptRecord, 0, len(prompts))
	for _, p := range prompts {
		if _, done := completed[p.ID]; done {
			continue
		}
		pending = append(pending, p)
	}

	o.logger.Info("Run starting",
		zap.String("run_id", o.runID),
		zap.Int("total", len(prompts)),
		zap.Int("pending", len(pending)),
		zap.Int("skipped", len(prompts)-len(pending)))

	if len(pending) == 0 {
		fmt.Fprintln(o.progress, "All prompts already completed.")
		return nil
	}

	succeeded := 0
	for i, p := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}

		o.printProgress(i+1, len(pending), p)
		rec, err := o.processPrompt(ctx, p)
		if err != nil {
			// Cancellation mid-prompt. Nothing is persisted for the in-flight
			// prompt, so a resumed run picks it up again.
			return err
		}
		if err := sink.Append(rec); err != nil {
			return fmt.Errorf("persist result for prompt %s: %w", p.ID, err)
		}
		if !strings.HasPrefix(rec.Reply, "Error:") {
			succeeded++
		}

		if i < len(pending)-1 {
			if err := sleep(ctx, interPromptPause); err != nil {
				return err
			}
		}
	}

	o.logger.Info("Run complete",
		zap.String("run_id", o.runID),
		zap.Int("succeeded", succeeded),
		zap.Int("processed", len(pending)))
	fmt.Fprintf(o.progress, "Done: %d/%d prompts succeeded.\n", succeeded, len(pending))
	return nil
}

// processPrompt runs the lifecycle/input/capture sequence for one prompt.
// Every failure restarts the sequence from the lifecycle step until the retry
// budget runs out, at which point the record carries an "Error:" reply. A
// canceled context is the one exception: it returns the context error with
// nothing in the record, so the caller persists nothing and the prompt stays
// pending for the next run.
func (o *Orchestrator) processPrompt(ctx context.Context, p results.PromptRecord) (results.ResultRecord, error) {
	rec := results.ResultRecord{ID: p.ID, Prompt: p.Text}
	log := o.logger.With(zap.String("prompt_id", p.ID))

	for attempt := 1; attempt <= o.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return rec, err
		}
		last := attempt == o.cfg.MaxRetries
		log.Info("Processing prompt", zap.Int("attempt", attempt))

		// A banner that survived the previous prompt would poison this one;
		// reload before giving it the chance.
		banner, err := o.probe.UIError(ctx)
		if err == nil && banner != "" {
			log.Warn("Persistent UI error before prompt", zap.String("error", banner))
			if last {
				rec.Reply = "Error: Persistent UI error - " + banner
				return rec, nil
			}
			if err := o.reloader.Reload(ctx); err != nil {
				log.Warn("Recovery reload failed", zap.Error(err))
			}
			if err := sleep(ctx, reloadSettle); err != nil {
				return rec, err
			}
			continue
		}

		if !o.lifecycle.EnsureFresh(ctx) {
			if err := ctx.Err(); err != nil {
				return rec, err
			}
			if last {
				rec.Reply = "Error: Could not start new conversation"
				return rec, nil
			}
			if err := sleep(ctx, o.cfg.RetryDelay); err != nil {
				return rec, err
			}
			continue
		}

		channel, err := o.input.Submit(ctx, p.Text)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return rec, ctxErr
			}
			log.Warn("Input submission failed", zap.Error(err))
			if last {
				rec.Reply = "Error: Failed to send input after retries"
				return rec, nil
			}
			if err := sleep(ctx, o.cfg.RetryDelay); err != nil {
				return rec, err
			}
			continue
		}
		log.Info("Prompt delivered", zap.String("channel", string(channel)))

		reply, err := o.responder.Await(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return rec, ctxErr
			}
			log.Warn("Response capture failed", zap.Error(err))
			if last {
				rec.Reply = captureErrorReply(err)
				return rec, nil
			}
			if err := sleep(ctx, o.cfg.RetryDelay); err != nil {
				return rec, err
			}
			continue
		}

		if exitErr := o.input.ExitVoiceMode(ctx); exitErr != nil {
			log.Warn("Could not exit voice mode", zap.Error(exitErr))
		}

		log.Info("Prompt completed", zap.Int("reply_chars", len(reply)))
		rec.Reply = reply
		return rec, nil
	}

	rec.Reply = fmt.Sprintf("Error: Failed after %d attempts", o.cfg.MaxRetries)
	return rec, nil
}

// captureErrorReply renders a capture failure as the reply cell of the result
// row, keeping failed prompts visible in the output file.
func captureErrorReply(err error) string {
	var uiErr *stabilize.UIError
	switch {
	case errors.As(err, &uiErr):
		return "Error: UI error during response - " + uiErr.Message
	case errors.Is(err, stabilize.ErrNoResponse):
		return "Error: No response received"
	case errors.Is(err, stabilize.ErrThreadLost):
		return "Error: Lost conversation during response"
	default:
		return "Error: " + err.Error()
	}
}

func (o *Orchestrator) printProgress(current, total int, p results.PromptRecord) {
	barLen := o.cfg.ProgressBarLength
	if barLen <= 0 {
		barLen = 30
	}
	filled := barLen * current / total
	bar := strings.Repeat("#", filled) + strings.Repeat("-", barLen-filled)

	text := p.Text
	if utf8.RuneCountInString(text) > promptPreview {
		text = dom.TruncateChars(text, promptPreview) + "..."
	}
	fmt.Fprintf(o.progress, "\nPROMPT %d/%d | ID: %s | %d remaining\n[%s] %.1f%%\n%s\n",
		current, total, p.ID, total-current, bar, 100*float64(current)/float64(total), text)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
