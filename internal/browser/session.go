// File: internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/grokdrive/internal/config"
)

// SiteRootURL is the root address of the target chat site. A page whose URL
// equals this (with or without a trailing slash) is a fresh conversation.
const SiteRootURL = "https://grok.com"

const (
	cdpConnectTimeout   = 10 * time.Second
	navigationTimeout   = 30 * time.Second
	navigationAttempts  = 3
	navigationRetryWait = 5 * time.Second
	responsivenessProbe = 5 * time.Second
	defaultOpTimeout    = 30 * time.Second
)

// Session is an attached tab in an already-running Chrome instance, reached
// over the remote debugging protocol. All page interactions go through it,
// strictly one at a time; the run never launches or terminates the browser
// process and leaves the tab open on close.
type Session struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	logger *zap.Logger
	cfg    *config.Config

	closeOnce sync.Once
}

// Connect establishes the CDP connection with the configured retry budget and
// attaches to an existing grok.com tab, creating and navigating a new one when
// none is found. Failure after the final attempt is fatal to the run.
func Connect(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	log := logger.Named("browser")

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		log.Info("Connecting to Chrome via CDP",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.MaxRetries),
			zap.Int("port", cfg.ChromePort))

		s, err := connectOnce(ctx, cfg, log)
		if err == nil {
			log.Info("Chrome connection established")
			return s, nil
		}
		lastErr = err
		log.Warn("Failed to connect to Chrome", zap.Int("attempt", attempt), zap.Error(err))

		if attempt < cfg.MaxRetries {
			if err := sleep(ctx, cfg.RetryDelay); err != nil {
				return nil, err
			}
		}
	}

	log.Error("Could not establish browser connection",
		zap.Error(lastErr),
		zap.String("hint_1", "start Chrome with --remote-debugging-port"),
		zap.String("hint_2", fmt.Sprintf("check that port %d is reachable", cfg.ChromePort)),
		zap.String("hint_3", "make sure you are logged into grok.com"))
	return nil, fmt.Errorf("connecting to Chrome on port %d: %w", cfg.ChromePort, lastErr)
}

func connectOnce(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Session, error) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx,
		fmt.Sprintf("http://127.0.0.1:%d", cfg.ChromePort))

	s := &Session{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		logger:      log,
		cfg:         cfg,
	}

	if err := s.attach(ctx); err != nil {
		allocCancel()
		return nil, err
	}
	return s, nil
}

// attach finds an existing grok.com tab or creates a new one.
func (s *Session) attach(ctx context.Context) error {
	browserCtx, browserCancel := chromedp.NewContext(s.allocCtx)

	listCtx, listCancel := context.WithTimeout(browserCtx, cdpConnectTimeout)
	targets, err := chromedp.Targets(listCtx)
	listCancel()
	if err != nil {
		browserCancel()
		return fmt.Errorf("CDP connection failed (is Chrome running with a debug port?): %w", err)
	}

	var existing *target.Info
	for _, info := range targets {
		if info.Type == "page" && strings.Contains(info.URL, "grok.com") {
			existing = info
			break
		}
	}

	if existing != nil {
		tabCtx, tabCancel := chromedp.NewContext(browserCtx, chromedp.WithTargetID(existing.TargetID))
		if err := s.probeResponsive(tabCtx); err == nil {
			s.logger.Info("Using existing grok.com tab", zap.String("url", existing.URL))
			s.tabCtx = tabCtx
			s.tabCancel = func() { tabCancel(); browserCancel() }
			return nil
		}
		s.logger.Warn("Existing tab is unresponsive, creating a new one")
		tabCancel()
	} else {
		s.logger.Info("No grok.com tab found, creating a new one")
	}

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	if err := navigateWithRetry(tabCtx, s.logger, SiteRootURL); err != nil {
		tabCancel()
		browserCancel()
		return err
	}
	s.tabCtx = tabCtx
	s.tabCancel = func() { tabCancel(); browserCancel() }
	return nil
}

// probeResponsive brings the tab to the foreground and checks that the page
// still answers script evaluation.
func (s *Session) probeResponsive(tabCtx context.Context) error {
	probeCtx, cancel := context.WithTimeout(tabCtx, responsivenessProbe)
	defer cancel()

	var readyState string
	return chromedp.Run(probeCtx,
		page.BringToFront(),
		chromedp.Evaluate("document.readyState", &readyState),
	)
}

func navigateWithRetry(tabCtx context.Context, log *zap.Logger, url string) error {
	var lastErr error
	for attempt := 1; attempt <= navigationAttempts; attempt++ {
		navCtx, cancel := context.WithTimeout(tabCtx, navigationTimeout)
		err := chromedp.Run(navCtx, chromedp.Navigate(url))
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		log.Warn("Navigation failed", zap.Int("attempt", attempt), zap.Error(err))
		if attempt < navigationAttempts {
			if err := sleep(tabCtx, navigationRetryWait); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("navigation to %s failed after %d attempts: %w", url, navigationAttempts, lastErr)
}

// Navigate loads the given URL in the attached tab.
func (s *Session) Navigate(ctx context.Context, url string) error {
	opCtx, cancel := s.opContext(ctx, navigationTimeout)
	defer cancel()

	if err := chromedp.Run(opCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// Reload reloads the current page.
func (s *Session) Reload(ctx context.Context) error {
	opCtx, cancel := s.opContext(ctx, navigationTimeout)
	defer cancel()

	if err := chromedp.Run(opCtx, chromedp.Reload()); err != nil {
		return fmt.Errorf("page reload failed: %w", err)
	}
	return nil
}

// CurrentURL returns the tab's current location.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	opCtx, cancel := s.opContext(ctx, defaultOpTimeout)
	defer cancel()

	var url string
	if err := chromedp.Run(opCtx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("reading page location: %w", err)
	}
	return url, nil
}

// Close detaches from the browser. The tab is intentionally left open: the
// harness borrows an interactive, logged-in session and must not destroy it.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.logger.Info("Detaching from browser (tab left open)")
		if s.tabCancel != nil {
			s.tabCancel()
		}
		s.allocCancel()
	})
}

// opContext derives a chromedp-capable context from the tab context that is
// also canceled when the caller's context is, bounded by a timeout.
func (s *Session) opContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	combined, combinedCancel := CombineContext(s.tabCtx, ctx)
	opCtx, opCancel := context.WithTimeout(combined, timeout)
	return opCtx, func() { opCancel(); combinedCancel() }
}

// IsSiteRoot reports whether a URL is the site's root address, tolerating a
// trailing slash. Landing on the root is one of the accepted signals that a
// fresh conversation was reached.
func IsSiteRoot(url string) bool {
	return url == SiteRootURL || url == SiteRootURL+"/"
}

// CombineContext creates a context derived from parentCtx that is additionally
// canceled when secondaryCtx is canceled. chromedp values travel through
// parentCtx, so parentCtx must be the chromedp context.
func CombineContext(parentCtx, secondaryCtx context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(parentCtx)

	go func() {
		select {
		case <-secondaryCtx.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}

// sleep waits for d or until ctx is canceled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
