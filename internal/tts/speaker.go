// File: internal/tts/speaker.go
package tts

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/grokdrive/internal/config"
)

// Speaker chains synthesis and playback: text in, audio on the (loopback)
// output device, returning once the last sample has played.
type Speaker struct {
	synth  Synthesizer
	player Player
	logger *zap.Logger
}

// NewSpeaker wires a Deepgram synthesizer to the default-device player using
// the configured voice and rate.
func NewSpeaker(cfg *config.Config, logger *zap.Logger) (*Speaker, error) {
	synth, err := NewDeepgramSynthesizer(cfg.TTSVoice, logger)
	if err != nil {
		return nil, err
	}
	player, err := NewDevicePlayer(cfg.TTSRate, logger)
	if err != nil {
		return nil, err
	}
	return &Speaker{synth: synth, player: player, logger: logger.Named("speaker")}, nil
}

// NewSpeakerFromParts exists for wiring fakes in tests and alternate backends.
func NewSpeakerFromParts(synth Synthesizer, player Player, logger *zap.Logger) *Speaker {
	return &Speaker{synth: synth, player: player, logger: logger.Named("speaker")}
}

// Speak synthesizes text and plays it to completion.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	pcm, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	return s.player.Play(ctx, pcm)
}
