// File: internal/browser/session_test.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSiteRoot(t *testing.T) {
	assert.True(t, IsSiteRoot("https://grok.com"))
	assert.True(t, IsSiteRoot("https://grok.com/"))
	assert.False(t, IsSiteRoot("https://grok.com/chat/abc123"))
	assert.False(t, IsSiteRoot("https://example.com"))
	assert.False(t, IsSiteRoot(""))
}

func TestJsString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`[aria-label*='voice']`, `"[aria-label*='voice']"`},
		{`say "hello"`, `"say \"hello\""`},
		{"line\nbreak", `"line\nbreak"`},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, jsString(tc.in))
	}
}

func TestQueryScriptEmbedsSelectorSafely(t *testing.T) {
	// Selectors with quotes must land in the script as a single JS string
	// literal, never as raw text.
	script := fmt.Sprintf(queryScript, jsString(`[aria-label="Exit voice mode"]`))
	assert.Contains(t, script, `"[aria-label=\"Exit voice mode\"]"`)
	assert.Equal(t, 1, strings.Count(script, "querySelectorAll"))
}

func TestCombineContext(t *testing.T) {
	t.Run("cancels when secondary cancels", func(t *testing.T) {
		parent := context.Background()
		secondary, secondaryCancel := context.WithCancel(context.Background())

		combined, cancel := CombineContext(parent, secondary)
		defer cancel()

		secondaryCancel()
		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context was not canceled")
		}
	})

	t.Run("cancels when parent cancels", func(t *testing.T) {
		parent, parentCancel := context.WithCancel(context.Background())
		combined, cancel := CombineContext(parent, context.Background())
		defer cancel()

		parentCancel()
		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context was not canceled")
		}
	})

	t.Run("inherits parent values", func(t *testing.T) {
		type key struct{}
		parent := context.WithValue(context.Background(), key{}, "tab")
		combined, cancel := CombineContext(parent, context.Background())
		defer cancel()

		assert.Equal(t, "tab", combined.Value(key{}))
	})
}

func TestSleep(t *testing.T) {
	t.Run("returns early on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		start := time.Now()
		err := sleep(ctx, 5*time.Second)
		require.Error(t, err)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("non-positive duration is a no-op", func(t *testing.T) {
		assert.NoError(t, sleep(context.Background(), 0))
	})
}
