// File: internal/discovery/discovery.go

// Package discovery surveys the live page: it runs every selector pattern for
// every UI role and records which ones still match, with enough element
// metadata to update the pattern tables when the page's markup drifts.
package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/grokdrive/internal/browser/dom"
)

// Pager is the page access the surveyor needs.
type Pager interface {
	QueryDetails(ctx context.Context, selector string) ([]dom.ElementDetail, error)
	CurrentURL(ctx context.Context) (string, error)
}

// StateProbe classifies the current conversation.
type StateProbe interface {
	State(ctx context.Context) dom.ConversationState
}

// Findings is the survey output, serialized as the report file.
type Findings struct {
	Timestamp     time.Time                        `json:"timestamp"`
	URL           string                           `json:"url"`
	DetectedState dom.ConversationState            `json:"detected_state"`
	Roles         map[dom.Role][]dom.ElementDetail `json:"roles"`
}

// Surveyor probes every known pattern against the live page.
type Surveyor struct {
	pager  Pager
	probe  StateProbe
	logger *zap.Logger
	now    func() time.Time
}

func NewSurveyor(pager Pager, probe StateProbe, logger *zap.Logger) *Surveyor {
	return &Surveyor{pager: pager, probe: probe, logger: logger.Named("discovery"), now: time.Now}
}

// Run surveys all roles. Pattern-level query failures are logged and skipped:
// a selector the page rejects is itself a finding, not a reason to stop. Only
// visible elements are recorded, since an invisible match is useless to the
// resolver's chains.
func (s *Surveyor) Run(ctx context.Context) (*Findings, error) {
	url, err := s.pager.CurrentURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page url: %w", err)
	}

	f := &Findings{
		Timestamp: s.now(),
		URL:       url,
		Roles:     make(map[dom.Role][]dom.ElementDetail, len(dom.AllRoles)),
	}

	for _, role := range dom.AllRoles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f.Roles[role] = s.surveyRole(ctx, role)
		s.logger.Info("Role surveyed",
			zap.String("role", string(role)),
			zap.Int("matches", len(f.Roles[role])))
	}

	f.DetectedState = s.probe.State(ctx)
	return f, nil
}

func (s *Surveyor) surveyRole(ctx context.Context, role dom.Role) []dom.ElementDetail {
	matches := []dom.ElementDetail{}
	for _, pat := range dom.Patterns(role) {
		details, err := s.pager.QueryDetails(ctx, pat.Selector)
		if err != nil {
			s.logger.Warn("Pattern query failed",
				zap.String("role", string(role)),
				zap.String("selector", pat.Selector),
				zap.Error(err))
			continue
		}
		for _, d := range details {
			if !d.Visible {
				continue
			}
			matches = append(matches, d)
		}
	}
	return matches
}

// Save writes the findings to dir, named after the detected state and the
// survey time so consecutive surveys of different page states sort
// side by side.
func (s *Surveyor) Save(f *Findings, dir string) (string, error) {
	name := fmt.Sprintf("grok_ui_%s_%s.json", f.DetectedState, f.Timestamp.Format("20060102_150405"))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal findings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write findings: %w", err)
	}

	s.logger.Info("Findings saved", zap.String("path", path))
	return path, nil
}
