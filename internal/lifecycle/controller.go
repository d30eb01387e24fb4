// File: internal/lifecycle/controller.go

// Package lifecycle moves the page into a fresh, empty conversation before
// each prompt. A stale thread would contaminate the next capture: the
// stabilization engine reads the last response container, so leftover
// messages from the previous prompt must be cleared first.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/grokdrive/internal/browser"
	"github.com/xkilldash9x/grokdrive/internal/browser/dom"
	"github.com/xkilldash9x/grokdrive/internal/config"
)

const (
	navigationAttempts = 2
	navigationSettle   = 2 * time.Second
	navigationRetry    = 3 * time.Second
)

// Navigator is the navigation slice of the browser session.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	CurrentURL(ctx context.Context) (string, error)
}

// Clicker performs the new-chat button click.
type Clicker interface {
	ClickElement(ctx context.Context, el dom.Element) error
}

// StateProbe reports whether the current conversation holds any messages.
type StateProbe interface {
	State(ctx context.Context) dom.ConversationState
}

// Resolver locates the new-chat control.
type Resolver interface {
	Resolve(ctx context.Context, role dom.Role) (*dom.Element, error)
}

// Controller drives the page to an empty conversation.
type Controller struct {
	nav      Navigator
	clicker  Clicker
	probe    StateProbe
	resolver Resolver
	cfg      *config.Config
	logger   *zap.Logger
}

func NewController(nav Navigator, clicker Clicker, probe StateProbe, resolver Resolver, cfg *config.Config, logger *zap.Logger) *Controller {
	return &Controller{
		nav:      nav,
		clicker:  clicker,
		probe:    probe,
		resolver: resolver,
		cfg:      cfg,
		logger:   logger.Named("lifecycle"),
	}
}

// EnsureFresh returns true once the page shows an empty conversation. It tries
// the new-chat button first, then direct navigation to the site root, then a
// reload. A false return is non-fatal: callers proceed and record a degraded
// result instead of aborting the run.
func (c *Controller) EnsureFresh(ctx context.Context) bool {
	if c.probe.State(ctx) == dom.StateEmpty {
		c.logger.Debug("Already in an empty conversation")
		return true
	}

	if c.clickNewChat(ctx) {
		return true
	}
	if c.navigateToRoot(ctx) {
		return true
	}
	if c.reloadPage(ctx) {
		return true
	}

	c.logger.Warn("Could not reach an empty conversation, proceeding anyway")
	return false
}

func (c *Controller) clickNewChat(ctx context.Context) bool {
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			if sleep(ctx, c.cfg.RetryDelay) != nil {
				return false
			}
		}

		el, err := c.resolver.Resolve(ctx, dom.RoleNewChatButton)
		if err != nil {
			if !errors.Is(err, dom.ErrNotFound) {
				c.logger.Warn("New-chat button resolution failed", zap.Error(err))
			}
			continue
		}
		if err := c.clicker.ClickElement(ctx, *el); err != nil {
			c.logger.Warn("New-chat button click failed", zap.Error(err))
			continue
		}
		if sleep(ctx, c.cfg.NewConversationWait) != nil {
			return false
		}

		if c.probe.State(ctx) == dom.StateEmpty {
			c.logger.Info("Started new conversation", zap.Int("attempt", attempt))
			return true
		}
		// The thread list may still render while the URL has already moved to
		// the root, which also counts as a fresh conversation.
		if url, err := c.nav.CurrentURL(ctx); err == nil && browser.IsSiteRoot(url) {
			c.logger.Info("New-chat click landed on the site root")
			return true
		}
	}
	return false
}

func (c *Controller) navigateToRoot(ctx context.Context) bool {
	c.logger.Info("Falling back to direct navigation", zap.String("url", browser.SiteRootURL))
	for attempt := 1; attempt <= navigationAttempts; attempt++ {
		if attempt > 1 {
			if sleep(ctx, navigationRetry) != nil {
				return false
			}
		}

		if err := c.nav.Navigate(ctx, browser.SiteRootURL); err != nil {
			c.logger.Warn("Navigation to site root failed",
				zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		if sleep(ctx, navigationSettle) != nil {
			return false
		}
		if c.probe.State(ctx) == dom.StateEmpty {
			c.logger.Info("Navigation reached an empty conversation")
			return true
		}
	}
	return false
}

func (c *Controller) reloadPage(ctx context.Context) bool {
	c.logger.Info("Falling back to page reload")
	if err := c.nav.Reload(ctx); err != nil {
		c.logger.Warn("Page reload failed", zap.Error(err))
		return false
	}
	if sleep(ctx, c.cfg.NewConversationWait) != nil {
		return false
	}
	if c.probe.State(ctx) == dom.StateEmpty {
		c.logger.Info("Reload reached an empty conversation")
		return true
	}
	return false
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
