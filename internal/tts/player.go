// File: internal/tts/player.go
package tts

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"

	"github.com/xkilldash9x/grokdrive/internal/config"
)

// Player renders PCM samples on an audio output device, blocking until
// playback finishes.
type Player interface {
	Play(ctx context.Context, pcm []byte) error
}

// DevicePlayer plays linear16 mono PCM through the system's default output
// device. That device is expected to be a loopback virtual microphone wired
// into the browser's audio input; the harness only plays, it does not manage
// the routing.
//
// The output device is a process-wide singleton (oto allows a single context),
// so the underlying context is created once on first use. The rate multiplier
// is applied by skewing the playback sample rate, which changes speed the same
// way a "+10%" TTS rate would.
type DevicePlayer struct {
	sampleRate int
	logger     *zap.Logger

	initOnce sync.Once
	otoCtx   *oto.Context
	initErr  error
}

// NewDevicePlayer builds a player for linear16 mono PCM at SampleRate, scaled
// by the configured rate percentage.
func NewDevicePlayer(ratePercent string, logger *zap.Logger) (*DevicePlayer, error) {
	mult, err := config.ParseRatePercent(ratePercent)
	if err != nil {
		return nil, fmt.Errorf("invalid playback rate: %w", err)
	}

	return &DevicePlayer{
		sampleRate: int(float64(SampleRate) * mult),
		logger:     logger.Named("audio"),
	}, nil
}

func (p *DevicePlayer) init() error {
	p.initOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   p.sampleRate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
		}
		otoCtx, ready, err := oto.NewContext(op)
		if err != nil {
			p.initErr = fmt.Errorf("opening audio output device: %w", err)
			return
		}
		<-ready
		p.otoCtx = otoCtx
	})
	return p.initErr
}

// Play streams the samples to the device and waits for playback to complete.
func (p *DevicePlayer) Play(ctx context.Context, pcm []byte) error {
	if err := p.init(); err != nil {
		return err
	}

	p.logger.Info("Streaming audio to output device",
		zap.Int("pcm_bytes", len(pcm)),
		zap.Int("sample_rate", p.sampleRate))

	player := p.otoCtx.NewPlayer(bytes.NewReader(pcm))
	player.Play()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Close()
			return ctx.Err()
		case <-ticker.C:
		}
	}

	if err := player.Close(); err != nil {
		return fmt.Errorf("closing audio player: %w", err)
	}
	p.logger.Debug("Playback complete")
	return nil
}
