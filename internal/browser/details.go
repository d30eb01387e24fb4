// File: internal/browser/details.go
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/grokdrive/internal/browser/dom"
)

// detailScript is the survey-grade sibling of queryScript: same matching and
// visibility rules, but it also reports the attributes and layout box that a
// selector survey wants to record.
const detailScript = `(() => {
	const out = [];
	const nodes = document.querySelectorAll(%s);
	nodes.forEach((el, i) => {
		const rect = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		const visible = rect.width > 0 && rect.height > 0 &&
			style.visibility !== 'hidden' && style.display !== 'none';
		const enabled = !el.disabled && el.getAttribute('aria-disabled') !== 'true';
		out.push({
			index: i,
			tag: el.tagName.toLowerCase(),
			text: (el.innerText || '').slice(0, 100),
			ariaLabel: el.getAttribute('aria-label') || '',
			placeholder: el.getAttribute('placeholder') || '',
			className: el.getAttribute('class') || '',
			visible: visible,
			enabled: enabled,
			box: {x: rect.x, y: rect.y, width: rect.width, height: rect.height},
		});
	});
	return out;
})()`

type detailResult struct {
	Index       int      `json:"index"`
	Tag         string   `json:"tag"`
	Text        string   `json:"text"`
	AriaLabel   string   `json:"ariaLabel"`
	Placeholder string   `json:"placeholder"`
	ClassName   string   `json:"className"`
	Visible     bool     `json:"visible"`
	Enabled     bool     `json:"enabled"`
	Box         dom.Rect `json:"box"`
}

// QueryDetails returns survey metadata for every element matching the
// selector, in document order, hidden ones included.
func (s *Session) QueryDetails(ctx context.Context, selector string) ([]dom.ElementDetail, error) {
	opCtx, cancel := s.opContext(ctx, queryTimeout)
	defer cancel()

	script := fmt.Sprintf(detailScript, jsString(selector))

	var results []detailResult
	if err := chromedp.Run(opCtx, chromedp.Evaluate(script, &results)); err != nil {
		return nil, fmt.Errorf("detail query %q failed: %w", selector, err)
	}

	details := make([]dom.ElementDetail, len(results))
	for i, res := range results {
		details[i] = dom.ElementDetail{
			Selector:    selector,
			Index:       res.Index,
			Tag:         res.Tag,
			Text:        res.Text,
			AriaLabel:   res.AriaLabel,
			Placeholder: res.Placeholder,
			Class:       res.ClassName,
			Visible:     res.Visible,
			Enabled:     res.Enabled,
			Box:         res.Box,
		}
	}
	return details, nil
}
