// File: internal/input/strategy.go

// Package input delivers a prompt to the page. The preferred channel is voice:
// activate voice mode, synthesize the prompt as speech and play it into the
// loopback microphone. When any part of that fails the prompt falls back to
// direct text entry. Exactly one channel carries each prompt.
package input

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/grokdrive/internal/browser/dom"
	"github.com/xkilldash9x/grokdrive/internal/config"
)

// Settle periods that are structural rather than tunable: how long the page
// gets to register a typed submission, and how long voice mode takes to tear
// down after the exit control is clicked.
const (
	textSettleWait = 1 * time.Second
	voiceExitWait  = 2 * time.Second
)

// Channel names the input path that actually carried a prompt.
type Channel string

const (
	ChannelVoice Channel = "voice"
	ChannelText  Channel = "text"
	ChannelNone  Channel = "none"
)

// Page is the interaction slice of the browser session the strategy drives.
type Page interface {
	ClickElement(ctx context.Context, el dom.Element) error
	FillElement(ctx context.Context, el dom.Element, text string) error
	PressEnter(ctx context.Context) error
}

// Resolver locates a role's element on the live page. Implemented by
// dom.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, role dom.Role) (*dom.Element, error)
}

// ErrorProbe reports the text of a visible, non-benign error banner.
// Implemented by dom.Probe.
type ErrorProbe interface {
	UIError(ctx context.Context) (string, error)
}

// Speaker turns prompt text into audio on the default output device.
// Implemented by tts.Speaker.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Strategy submits prompts over the voice channel with a text fallback.
type Strategy struct {
	page     Page
	resolver Resolver
	probe    ErrorProbe
	speaker  Speaker
	cfg      *config.Config
	logger   *zap.Logger
}

func NewStrategy(page Page, resolver Resolver, probe ErrorProbe, speaker Speaker, cfg *config.Config, logger *zap.Logger) *Strategy {
	return &Strategy{
		page:     page,
		resolver: resolver,
		probe:    probe,
		speaker:  speaker,
		cfg:      cfg,
		logger:   logger.Named("input"),
	}
}

// Submit delivers the prompt and reports which channel carried it. Voice is
// attempted first; a voice-mode or playback failure demotes the prompt to the
// text path rather than failing it. The returned error is non-nil only when
// both channels are exhausted, and then the channel is ChannelNone.
func (s *Strategy) Submit(ctx context.Context, prompt string) (Channel, error) {
	if s.tryVoiceMode(ctx) {
		if err := s.speakPrompt(ctx, prompt); err == nil {
			return ChannelVoice, nil
		}
		s.logger.Warn("Speech delivery failed, falling back to text input")
	} else {
		s.logger.Warn("Voice mode unavailable, falling back to text input")
	}

	if err := s.sendText(ctx, prompt); err != nil {
		return ChannelNone, fmt.Errorf("all input channels failed: %w", err)
	}
	return ChannelText, nil
}

// tryVoiceMode clicks the voice button and verifies no error banner appeared
// during the settle period. Each attempt burns one unit of the retry budget.
func (s *Strategy) tryVoiceMode(ctx context.Context) bool {
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		ok, retryable := s.activateVoiceOnce(ctx)
		if ok {
			s.logger.Info("Voice mode activated", zap.Int("attempt", attempt))
			return true
		}
		if !retryable || attempt == s.cfg.MaxRetries {
			return false
		}
		if err := sleep(ctx, s.cfg.RetryDelay); err != nil {
			return false
		}
	}
	return false
}

func (s *Strategy) activateVoiceOnce(ctx context.Context) (ok, retryable bool) {
	el, err := s.resolver.Resolve(ctx, dom.RoleVoiceButton)
	if err != nil {
		if errors.Is(err, dom.ErrNotFound) {
			s.logger.Debug("Voice button not present")
			return false, true
		}
		s.logger.Warn("Voice button resolution failed", zap.Error(err))
		return false, !errors.Is(err, context.Canceled)
	}

	if err := s.page.ClickElement(ctx, *el); err != nil {
		s.logger.Warn("Voice button click failed", zap.Error(err))
		return false, true
	}
	if err := sleep(ctx, s.cfg.AudioWait); err != nil {
		return false, false
	}

	banner, err := s.probe.UIError(ctx)
	if err != nil {
		s.logger.Warn("Error-banner probe failed after voice activation", zap.Error(err))
		return false, true
	}
	if banner != "" {
		s.logger.Warn("Voice mode activation rejected", zap.String("error", banner))
		return false, true
	}
	return true, true
}

// speakPrompt synthesizes and plays the prompt, then waits out the
// transcription settle period so the page can finish turning the injected
// audio into text.
func (s *Strategy) speakPrompt(ctx context.Context, prompt string) error {
	s.logger.Info("Delivering prompt as speech", zap.Int("chars", len(prompt)))
	if err := s.speaker.Speak(ctx, prompt); err != nil {
		return fmt.Errorf("speech delivery: %w", err)
	}
	s.logger.Debug("Waiting for transcription",
		zap.Duration("wait", s.cfg.TranscriptionWait))
	return sleep(ctx, s.cfg.TranscriptionWait)
}

// sendText types the prompt into the text input and submits with Enter. The
// banner check after submission catches rejections the page surfaces only
// once the message is sent.
func (s *Strategy) sendText(ctx context.Context, prompt string) error {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, s.cfg.RetryDelay); err != nil {
				return err
			}
		}

		lastErr = s.sendTextOnce(ctx, prompt)
		if lastErr == nil {
			s.logger.Info("Prompt submitted as text", zap.Int("attempt", attempt))
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
		s.logger.Warn("Text submission attempt failed",
			zap.Int("attempt", attempt), zap.Error(lastErr))
	}
	return lastErr
}

func (s *Strategy) sendTextOnce(ctx context.Context, prompt string) error {
	el, err := s.resolver.Resolve(ctx, dom.RoleTextInput)
	if err != nil {
		return fmt.Errorf("resolve text input: %w", err)
	}
	if err := s.page.ClickElement(ctx, *el); err != nil {
		return fmt.Errorf("focus text input: %w", err)
	}
	if err := s.page.FillElement(ctx, *el, prompt); err != nil {
		return fmt.Errorf("fill text input: %w", err)
	}
	if err := s.page.PressEnter(ctx); err != nil {
		return fmt.Errorf("submit text input: %w", err)
	}

	if err := sleep(ctx, textSettleWait); err != nil {
		return err
	}
	banner, err := s.probe.UIError(ctx)
	if err != nil {
		return fmt.Errorf("post-submit banner probe: %w", err)
	}
	if banner != "" {
		return fmt.Errorf("page rejected text input: %s", banner)
	}
	return nil
}

// ExitVoiceMode leaves voice mode if it is active. Absence of the exit control
// means voice mode is not engaged and is not an error.
func (s *Strategy) ExitVoiceMode(ctx context.Context) error {
	el, err := s.resolver.Resolve(ctx, dom.RoleExitVoiceButton)
	if err != nil {
		if errors.Is(err, dom.ErrNotFound) {
			s.logger.Debug("Exit-voice control absent, voice mode not active")
			return nil
		}
		return err
	}
	if err := s.page.ClickElement(ctx, *el); err != nil {
		return fmt.Errorf("exit voice mode: %w", err)
	}
	s.logger.Info("Exited voice mode")
	return sleep(ctx, voiceExitWait)
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
