// File: internal/tts/synthesizer.go
package tts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	speakapi "github.com/deepgram/deepgram-go-sdk/pkg/api/speak/v1/rest"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces"
	speak "github.com/deepgram/deepgram-go-sdk/pkg/client/speak"
	"go.uber.org/zap"
)

// SampleRate is the PCM sample rate requested from the synthesis service and
// fed to the playback device.
const SampleRate = 24000

// Synthesizer turns text into raw linear16 mono PCM samples.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// DeepgramSynthesizer synthesizes speech through the Deepgram speak REST API.
// The voice is an Aura model identifier (e.g. "aura-asteria-en").
type DeepgramSynthesizer struct {
	client *speakapi.Client
	voice  string
	logger *zap.Logger
}

// NewDeepgramSynthesizer builds a synthesizer for the given voice. The API key
// comes from the DEEPGRAM_API_KEY environment variable.
func NewDeepgramSynthesizer(voice string, logger *zap.Logger) (*DeepgramSynthesizer, error) {
	apiKey := os.Getenv("DEEPGRAM_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("DEEPGRAM_API_KEY environment variable not set")
	}

	c := speak.NewREST(apiKey, &interfaces.ClientOptions{})
	return &DeepgramSynthesizer{
		client: speakapi.New(c),
		voice:  voice,
		logger: logger.Named("tts"),
	}, nil
}

// Synthesize produces raw PCM for the given text. The audio is round-tripped
// through a temporary file, which keeps the REST client's save path and gives
// a natural cleanup point.
func (s *DeepgramSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	s.logger.Info("Converting to speech", zap.Int("chars", len(text)), zap.String("voice", s.voice))

	tmp, err := os.CreateTemp("", "grokdrive-tts-*.pcm")
	if err != nil {
		return nil, fmt.Errorf("creating temp audio file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	options := &interfaces.SpeakOptions{
		Model:      s.voice,
		Encoding:   "linear16",
		Container:  "none",
		SampleRate: SampleRate,
	}

	if _, err := s.client.ToSave(ctx, tmpPath, text, options); err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}

	pcm, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("reading synthesized audio from %s: %w", filepath.Base(tmpPath), err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("speech synthesis produced no audio")
	}

	s.logger.Debug("Synthesis complete", zap.Int("pcm_bytes", len(pcm)))
	return pcm, nil
}
