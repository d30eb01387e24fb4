// File: internal/stabilize/engine.go

// Package stabilize decides when a streaming reply is done. The page offers no
// completion signal, so the engine polls the response container and declares
// the reply finished once its text stops changing across consecutive polls.
//
// The capture lifecycle is: awaiting-start -> growing -> stable, with side
// exits for rate limiting (cooldown, then resume), detected UI errors, and
// the wait-budget timeout.
package stabilize

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/grokdrive/internal/browser/dom"
	"github.com/xkilldash9x/grokdrive/internal/config"
)

// ErrNoResponse is the terminal outcome when the reply never started within
// the wait budget.
var ErrNoResponse = errors.New("no response received")

// ErrThreadLost signals that the thread view disappeared after the reply had
// started, usually an unexpected navigation.
var ErrThreadLost = errors.New("lost thread view during response")

// UIError carries the text of a non-benign error banner observed during
// capture.
type UIError struct {
	Message string
}

func (e *UIError) Error() string {
	return fmt.Sprintf("UI error: %s", e.Message)
}

// Page is the slice of page observation the engine needs. Implemented by
// dom.Probe.
type Page interface {
	UIError(ctx context.Context) (string, error)
	LatestReply(ctx context.Context) (string, error)
	HasMessages(ctx context.Context) (bool, error)
}

// Engine polls the page until the reply stabilizes, errors out, or the wait
// budget runs dry.
type Engine struct {
	page   Page
	cfg    *config.Config
	logger *zap.Logger
}

func NewEngine(page Page, cfg *config.Config, logger *zap.Logger) *Engine {
	return &Engine{page: page, cfg: cfg, logger: logger.Named("stabilize")}
}

// Await runs the capture state machine and returns the reply text on success.
// Terminal failures are *UIError, ErrThreadLost or ErrNoResponse.
//
// Completion requires equality across RequiredStableChecks consecutive polls,
// not mere cessation of fast growth: slow-but-still-growing text must not be
// declared complete. The character cap bounds capture when a failure mode
// produces unbounded repetition. A rate-limit banner pauses the poll for a
// fixed cooldown that does not eat into the wait budget.
func (e *Engine) Await(ctx context.Context) (string, error) {
	limiter := rate.NewLimiter(rate.Every(e.cfg.StabilizationInterval), 1)
	deadline := time.Now().Add(e.cfg.MaxWaitTime)

	started := false
	lastText := ""
	stableCount := 0

	e.logger.Info("Waiting for response",
		zap.Duration("budget", e.cfg.MaxWaitTime),
		zap.Int("char_cap", e.cfg.MaxResponseChars))

	for time.Now().Before(deadline) {
		if err := limiter.Wait(ctx); err != nil {
			return "", err
		}

		bannerText, err := e.page.UIError(ctx)
		if err != nil {
			return "", err
		}
		if bannerText != "" {
			if dom.IsRateLimit(bannerText) {
				e.logger.Warn("Rate limit detected, cooling down",
					zap.Duration("cooldown", e.cfg.RateLimitCooldown))
				if err := sleep(ctx, e.cfg.RateLimitCooldown); err != nil {
					return "", err
				}
				// The cooldown does not count against the wait budget, and
				// accumulated growth is kept.
				deadline = deadline.Add(e.cfg.RateLimitCooldown)
				continue
			}
			e.logger.Warn("UI error during response capture", zap.String("text", bannerText))
			return "", &UIError{Message: bannerText}
		}

		if started {
			has, err := e.page.HasMessages(ctx)
			if err != nil {
				return "", err
			}
			if !has {
				return "", ErrThreadLost
			}
		}

		current, err := e.page.LatestReply(ctx)
		if err != nil {
			return "", err
		}

		chars := utf8.RuneCountInString(current)
		if chars <= e.cfg.MinResponseLength {
			continue
		}
		started = true

		if chars >= e.cfg.MaxResponseChars {
			e.logger.Info("Character limit reached, truncating", zap.Int("chars", chars))
			return dom.TruncateChars(current, e.cfg.MaxResponseChars), nil
		}

		if current == lastText {
			stableCount++
			if stableCount >= e.cfg.RequiredStableChecks {
				e.logger.Info("Response captured", zap.Int("chars", chars))
				return current, nil
			}
			continue
		}

		stableCount = 0
		lastText = current
		e.logger.Debug("Response growing", zap.Int("chars", chars))
	}

	if utf8.RuneCountInString(lastText) > e.cfg.MinResponseLength {
		e.logger.Warn("Wait budget exhausted, returning best-effort response",
			zap.Int("chars", utf8.RuneCountInString(lastText)))
		return dom.TruncateChars(lastText, e.cfg.MaxResponseChars), nil
	}
	return "", ErrNoResponse
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
