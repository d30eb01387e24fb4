// File: internal/browser/dom/resolver.go
package dom

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrNotFound is returned when no pattern in a role's chain matched a usable
// element. It is a normal, expected outcome that callers must handle, not a
// failure of the resolver.
var ErrNotFound = errors.New("no element matched any pattern")

// Element is an opaque handle to a live page element plus diagnostics. It is
// addressed by the pattern selector that matched it and its document-order
// index within that selector's matches; the handle is valid only until the
// next navigation or reload and is never persisted.
type Element struct {
	Role      Role
	Selector  string
	Index     int
	Tag       string
	Text      string
	AriaLabel string
	Visible   bool
	Enabled   bool
}

// Label returns a short human-readable description for logs.
func (e Element) Label() string {
	text := TruncateChars(e.Text, 50)
	return fmt.Sprintf("<%s> aria=%q text=%q via %s[%d]", e.Tag, e.AriaLabel, text, e.Selector, e.Index)
}

// Querier is the read-only page probe the resolver runs on. QueryAll returns
// every element matching the selector, in document order, with metadata
// populated. Implemented by browser.Session; faked in tests.
type Querier interface {
	QueryAll(ctx context.Context, selector string) ([]Element, error)
}

// Resolver maps logical roles to live elements by walking each role's pattern
// chain in priority order. It is a read-only probe: callers perform the actual
// interaction after resolution.
type Resolver struct {
	page   Querier
	logger *zap.Logger
}

func NewResolver(page Querier, logger *zap.Logger) *Resolver {
	return &Resolver{page: page, logger: logger.Named("resolver")}
}

// Resolve returns the first visible, enabled element for the role, walking the
// pattern chain in priority order and the matches of each pattern in document
// order. Returns ErrNotFound when nothing usable matched.
func (r *Resolver) Resolve(ctx context.Context, role Role) (*Element, error) {
	return r.resolve(ctx, role, true)
}

// ResolveVisible is Resolve without the enabled-state requirement. Passive
// targets such as response containers and error banners are never "enabled".
func (r *Resolver) ResolveVisible(ctx context.Context, role Role) (*Element, error) {
	return r.resolve(ctx, role, false)
}

func (r *Resolver) resolve(ctx context.Context, role Role, requireEnabled bool) (*Element, error) {
	for _, pattern := range Patterns(role) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		matches, err := r.page.QueryAll(ctx, pattern.Selector)
		if err != nil {
			// A failing pattern does not break the chain; the next heuristic
			// may still hit.
			r.logger.Debug("pattern query failed",
				zap.String("role", string(role)),
				zap.String("selector", pattern.Selector),
				zap.Error(err))
			continue
		}

		for i := range matches {
			el := matches[i]
			if !el.Visible {
				continue
			}
			if requireEnabled && !el.Enabled {
				continue
			}
			el.Role = role
			el.Selector = pattern.Selector
			el.Index = i
			r.logger.Debug("role resolved",
				zap.String("role", string(role)),
				zap.String("element", el.Label()))
			return &el, nil
		}
	}

	return nil, fmt.Errorf("role %s: %w", role, ErrNotFound)
}

// ResolveAll returns every visible match of the first pattern that yields one,
// in document order. Callers that care about the newest entry of a growing
// list (the response container) take the last element.
func (r *Resolver) ResolveAll(ctx context.Context, role Role) ([]Element, error) {
	for _, pattern := range Patterns(role) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		matches, err := r.page.QueryAll(ctx, pattern.Selector)
		if err != nil {
			r.logger.Debug("pattern query failed",
				zap.String("role", string(role)),
				zap.String("selector", pattern.Selector),
				zap.Error(err))
			continue
		}

		var visible []Element
		for i := range matches {
			el := matches[i]
			if !el.Visible {
				continue
			}
			el.Role = role
			el.Selector = pattern.Selector
			el.Index = i
			visible = append(visible, el)
		}
		if len(visible) > 0 {
			return visible, nil
		}
	}

	return nil, fmt.Errorf("role %s: %w", role, ErrNotFound)
}
