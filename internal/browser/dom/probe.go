// File: internal/browser/dom/probe.go
package dom

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// ConversationState is derived on demand from the live page, never stored.
type ConversationState string

const (
	StateEmpty     ConversationState = "empty"
	StatePopulated ConversationState = "populated"
	StateUnknown   ConversationState = "unknown"
)

// Probe answers page-state questions on top of the resolver. Resolution misses
// and transient query failures are normal here and collapse to "nothing seen";
// only context cancellation propagates.
type Probe struct {
	resolver *Resolver
	logger   *zap.Logger
}

func NewProbe(resolver *Resolver, logger *zap.Logger) *Probe {
	return &Probe{resolver: resolver, logger: logger.Named("probe")}
}

// UIError returns the text of the first visible, non-benign error banner, or
// "" when the page shows none.
//
// Benign banners are detected by checking whether the banner's own text
// mentions the product name. This heuristic is fragile against copy changes on
// the target site, but it is the only signal the page offers for telling the
// assistant's self-referential notices apart from real failures.
func (p *Probe) UIError(ctx context.Context) (string, error) {
	banners, err := p.resolver.ResolveAll(ctx, RoleErrorBanner)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", nil
	}

	for _, banner := range banners {
		text := strings.TrimSpace(banner.Text)
		if text == "" || isBenign(text) {
			continue
		}
		p.logger.Debug("UI error banner detected", zap.String("text", text))
		return text, nil
	}
	return "", nil
}

// LatestReply returns the text of the last visible response container, the
// newest entry of the thread. "" when the page shows no responses yet.
func (p *Probe) LatestReply(ctx context.Context) (string, error) {
	containers, err := p.resolver.ResolveAll(ctx, RoleResponseContainer)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", nil
	}
	return strings.TrimSpace(containers[len(containers)-1].Text), nil
}

// HasMessages reports whether the page is in thread view (at least one
// response container present).
func (p *Probe) HasMessages(ctx context.Context) (bool, error) {
	_, err := p.resolver.ResolveAll(ctx, RoleResponseContainer)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, nil
	}
	return true, nil
}

// State derives the current conversation state from the page.
func (p *Probe) State(ctx context.Context) ConversationState {
	has, err := p.HasMessages(ctx)
	if err != nil {
		return StateUnknown
	}
	if has {
		return StatePopulated
	}
	return StateEmpty
}

// IsRateLimit reports whether banner text indicates throttling rather than a
// hard failure.
func IsRateLimit(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many")
}

func isBenign(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "grok")
}

// TruncateChars cuts s to at most n characters (runes, not bytes), counting
// the way the response character cap is specified.
func TruncateChars(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
