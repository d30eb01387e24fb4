// File: internal/input/strategy_test.go
package input

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/grokdrive/internal/browser/dom"
	"github.com/xkilldash9x/grokdrive/internal/config"
)

type fakePage struct {
	clicked    []dom.Role
	filled     string
	enters     int
	clickErrs  map[dom.Role]error
	fillErr    error
	pressedErr error
}

func (p *fakePage) ClickElement(_ context.Context, el dom.Element) error {
	p.clicked = append(p.clicked, el.Role)
	if err := p.clickErrs[el.Role]; err != nil {
		return err
	}
	return nil
}

func (p *fakePage) FillElement(_ context.Context, _ dom.Element, text string) error {
	if p.fillErr != nil {
		return p.fillErr
	}
	p.filled = text
	return nil
}

func (p *fakePage) PressEnter(context.Context) error {
	p.enters++
	return p.pressedErr
}

type fakeResolver struct {
	present map[dom.Role]bool
	errs    map[dom.Role]error
}

func (r *fakeResolver) Resolve(_ context.Context, role dom.Role) (*dom.Element, error) {
	if err := r.errs[role]; err != nil {
		return nil, err
	}
	if !r.present[role] {
		return nil, dom.ErrNotFound
	}
	return &dom.Element{Role: role, Selector: "#" + string(role), Visible: true, Enabled: true}, nil
}

type fakeProbe struct {
	banners []string
	calls   int
}

func (p *fakeProbe) UIError(context.Context) (string, error) {
	i := p.calls
	p.calls++
	if i >= len(p.banners) {
		return "", nil
	}
	return p.banners[i], nil
}

type fakeSpeaker struct {
	spoken []string
	err    error
}

func (s *fakeSpeaker) Speak(_ context.Context, text string) error {
	if s.err != nil {
		return s.err
	}
	s.spoken = append(s.spoken, text)
	return nil
}

func testConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.MaxRetries = 2
	cfg.RetryDelay = time.Millisecond
	cfg.AudioWait = time.Millisecond
	cfg.TranscriptionWait = time.Millisecond
	return cfg
}

type harness struct {
	page     *fakePage
	resolver *fakeResolver
	probe    *fakeProbe
	speaker  *fakeSpeaker
	strategy *Strategy
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	h := &harness{
		page:     &fakePage{clickErrs: map[dom.Role]error{}},
		resolver: &fakeResolver{present: map[dom.Role]bool{}, errs: map[dom.Role]error{}},
		probe:    &fakeProbe{},
		speaker:  &fakeSpeaker{},
	}
	h.strategy = NewStrategy(h.page, h.resolver, h.probe, h.speaker, cfg, zaptest.NewLogger(t))
	return h
}

func TestSubmitVoiceChannel(t *testing.T) {
	h := newHarness(t, testConfig())
	h.resolver.present[dom.RoleVoiceButton] = true

	ch, err := h.strategy.Submit(context.Background(), "speak this")
	require.NoError(t, err)
	assert.Equal(t, ChannelVoice, ch)
	assert.Equal(t, []string{"speak this"}, h.speaker.spoken)
	// The voice path never touches the text input.
	assert.Zero(t, h.page.enters)
	assert.Empty(t, h.page.filled)
}

func TestSubmitFallsBackWhenVoiceButtonAbsent(t *testing.T) {
	h := newHarness(t, testConfig())
	h.resolver.present[dom.RoleTextInput] = true

	ch, err := h.strategy.Submit(context.Background(), "type this")
	require.NoError(t, err)
	assert.Equal(t, ChannelText, ch)
	assert.Equal(t, "type this", h.page.filled)
	assert.Equal(t, 1, h.page.enters)
	assert.Empty(t, h.speaker.spoken)
}

func TestSubmitFallsBackWhenSpeechFails(t *testing.T) {
	h := newHarness(t, testConfig())
	h.resolver.present[dom.RoleVoiceButton] = true
	h.resolver.present[dom.RoleTextInput] = true
	h.speaker.err = errors.New("synthesis backend down")

	ch, err := h.strategy.Submit(context.Background(), "the prompt")
	require.NoError(t, err)
	assert.Equal(t, ChannelText, ch)
	assert.Equal(t, "the prompt", h.page.filled)
}

func TestSubmitVoiceActivationErrorBanner(t *testing.T) {
	// Every voice activation surfaces an error banner; the text path's
	// post-submit probe then sees a clean page.
	cfg := testConfig()
	h := newHarness(t, cfg)
	h.resolver.present[dom.RoleVoiceButton] = true
	h.resolver.present[dom.RoleTextInput] = true
	h.probe.banners = []string{"Microphone unavailable", "Microphone unavailable"}

	ch, err := h.strategy.Submit(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, ChannelText, ch)
	assert.Empty(t, h.speaker.spoken)
	// Voice activation consumed the full retry budget before demoting.
	voiceClicks := 0
	for _, r := range h.page.clicked {
		if r == dom.RoleVoiceButton {
			voiceClicks++
		}
	}
	assert.Equal(t, cfg.MaxRetries, voiceClicks)
}

func TestSubmitBothChannelsExhausted(t *testing.T) {
	h := newHarness(t, testConfig())
	// No voice button, no text input anywhere on the page.

	ch, err := h.strategy.Submit(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, ChannelNone, ch)
	assert.ErrorIs(t, err, dom.ErrNotFound)
}

func TestSendTextRetriesOnClickFailure(t *testing.T) {
	h := newHarness(t, testConfig())
	h.resolver.present[dom.RoleTextInput] = true
	h.page.clickErrs[dom.RoleTextInput] = errors.New("element went stale")

	ch, err := h.strategy.Submit(context.Background(), "prompt")
	require.Error(t, err)
	assert.Equal(t, ChannelNone, ch)
	assert.Len(t, h.page.clicked, testConfig().MaxRetries)
}

func TestExitVoiceMode(t *testing.T) {
	h := newHarness(t, testConfig())
	h.resolver.present[dom.RoleExitVoiceButton] = true

	require.NoError(t, h.strategy.ExitVoiceMode(context.Background()))
	assert.Equal(t, []dom.Role{dom.RoleExitVoiceButton}, h.page.clicked)
}

func TestExitVoiceModeNotActive(t *testing.T) {
	h := newHarness(t, testConfig())

	require.NoError(t, h.strategy.ExitVoiceMode(context.Background()))
	assert.Empty(t, h.page.clicked)
}

func TestSubmitContextCancelled(t *testing.T) {
	h := newHarness(t, testConfig())
	h.resolver.present[dom.RoleVoiceButton] = true

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.strategy.Submit(ctx, "prompt")
	assert.ErrorIs(t, err, context.Canceled)
}
