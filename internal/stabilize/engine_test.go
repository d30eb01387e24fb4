// File: internal/stabilize/engine_test.go
package stabilize

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/grokdrive/internal/config"
)

// scriptedPage serves a fixed sequence of reply snapshots, repeating the last
// one once the script is exhausted. Banner texts are consumed one per poll.
type scriptedPage struct {
	replies     []string
	replyCalls  int
	banners     []string
	bannerCalls int
	hasMessages bool
}

func (p *scriptedPage) LatestReply(context.Context) (string, error) {
	i := p.replyCalls
	p.replyCalls++
	if i >= len(p.replies) {
		if len(p.replies) == 0 {
			return "", nil
		}
		return p.replies[len(p.replies)-1], nil
	}
	return p.replies[i], nil
}

func (p *scriptedPage) UIError(context.Context) (string, error) {
	i := p.bannerCalls
	p.bannerCalls++
	if i >= len(p.banners) {
		return "", nil
	}
	return p.banners[i], nil
}

func (p *scriptedPage) HasMessages(context.Context) (bool, error) {
	return p.hasMessages, nil
}

func testConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.MinResponseLength = 5
	cfg.RequiredStableChecks = 3
	cfg.StabilizationInterval = time.Millisecond
	cfg.MaxResponseChars = 100
	cfg.MaxWaitTime = 2 * time.Second
	cfg.RateLimitCooldown = 10 * time.Millisecond
	return cfg
}

func newEngine(t *testing.T, page Page, cfg *config.Config) *Engine {
	t.Helper()
	return NewEngine(page, cfg, zaptest.NewLogger(t))
}

func TestAwaitStabilizes(t *testing.T) {
	// Grows in fixed increments, then holds. With RequiredStableChecks = 3 the
	// engine must return on the third consecutive unchanged poll, not before.
	page := &scriptedPage{
		replies: []string{
			"",             // awaiting start
			"growing...",   // first sighting
			"growing... a", // growth resets the counter
			"growing... ab",
			"growing... ab", // stable 1
			"growing... ab", // stable 2
			"growing... ab", // stable 3 -> success
			"should never be polled",
		},
		hasMessages: true,
	}

	text, err := newEngine(t, page, testConfig()).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "growing... ab", text)
	// replies[6] is the third stable poll; exactly 7 polls must have happened.
	assert.Equal(t, 7, page.replyCalls)
}

func TestAwaitCharacterCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxResponseChars = 20

	runaway := strings.Repeat("spam ", 20)
	page := &scriptedPage{replies: []string{"short bit", runaway}, hasMessages: true}

	text, err := newEngine(t, page, cfg).Await(context.Background())
	require.NoError(t, err)
	assert.Len(t, []rune(text), 20)
	assert.Equal(t, runaway[:20], text)
}

func TestAwaitNoResponse(t *testing.T) {
	cfg := testConfig()
	cfg.MaxWaitTime = 20 * time.Millisecond

	// Never exceeds MinResponseLength: a typed error, not an empty success.
	page := &scriptedPage{replies: []string{"hi"}, hasMessages: true}

	_, err := newEngine(t, page, cfg).Await(context.Background())
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestAwaitTimeoutReturnsBestEffort(t *testing.T) {
	cfg := testConfig()
	cfg.MaxWaitTime = 30 * time.Millisecond
	cfg.RequiredStableChecks = 1000 // unreachable on purpose

	page := &scriptedPage{replies: []string{"a partial response"}, hasMessages: true}

	text, err := newEngine(t, page, cfg).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a partial response", text)
}

func TestAwaitUIError(t *testing.T) {
	page := &scriptedPage{
		banners:     []string{"Something went wrong"},
		replies:     []string{"never read"},
		hasMessages: true,
	}

	_, err := newEngine(t, page, testConfig()).Await(context.Background())
	var uiErr *UIError
	require.ErrorAs(t, err, &uiErr)
	assert.Equal(t, "Something went wrong", uiErr.Message)
}

func TestAwaitRateLimit(t *testing.T) {
	// The wait budget is shorter than the cooldown. A rate-limit banner must
	// pause capture without terminating it and without the cooldown counting
	// against the budget, so the engine still captures the reply afterwards.
	cfg := testConfig()
	cfg.MaxWaitTime = 40 * time.Millisecond
	cfg.RateLimitCooldown = 60 * time.Millisecond
	cfg.RequiredStableChecks = 2

	page := &scriptedPage{
		banners:     []string{"Rate limit exceeded, slow down"},
		replies:     []string{"the eventual reply", "the eventual reply", "the eventual reply"},
		hasMessages: true,
	}

	start := time.Now()
	text, err := newEngine(t, page, cfg).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "the eventual reply", text)
	assert.GreaterOrEqual(t, time.Since(start), cfg.RateLimitCooldown)
}

func TestAwaitThreadLost(t *testing.T) {
	page := &scriptedPage{
		replies:     []string{"a reply has started here"},
		hasMessages: false, // thread view vanishes after the reply started
	}

	_, err := newEngine(t, page, testConfig()).Await(context.Background())
	assert.ErrorIs(t, err, ErrThreadLost)
}

func TestAwaitContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	page := &scriptedPage{replies: []string{"whatever"}, hasMessages: true}
	_, err := newEngine(t, page, testConfig()).Await(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
