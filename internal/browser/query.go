// File: internal/browser/query.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/xkilldash9x/grokdrive/internal/browser/dom"
)

const queryTimeout = 10 * time.Second

// queryScript collects metadata for every element matching a selector, in
// document order. Visibility follows the usual layout heuristics; enabled
// covers both the disabled property and aria-disabled.
const queryScript = `(() => {
	const out = [];
	for (const el of document.querySelectorAll(%s)) {
		const rect = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		out.push({
			tag: el.tagName.toLowerCase(),
			text: (el.innerText || '').trim(),
			ariaLabel: el.getAttribute('aria-label') || '',
			visible: rect.width > 0 && rect.height > 0 &&
				style.visibility !== 'hidden' && style.display !== 'none',
			enabled: !el.disabled && el.getAttribute('aria-disabled') !== 'true',
		});
	}
	return out;
})()`

// clickScript clicks the idx-th match of a selector. Throws when the element
// has gone stale so the caller sees a resolution-miss rather than a silent no-op.
const clickScript = `(() => {
	const el = document.querySelectorAll(%s)[%d];
	if (!el) { throw new Error('element is gone: ' + %s); }
	el.scrollIntoView({block: 'center', inline: 'center'});
	el.click();
	return true;
})()`

// fillScript focuses the idx-th match, clears it, and inserts text the way a
// paste would, so the page's input handlers fire. Handles both contenteditable
// composers and plain form fields.
const fillScript = `(() => {
	const el = document.querySelectorAll(%s)[%d];
	if (!el) { throw new Error('element is gone: ' + %s); }
	el.focus();
	if (el.isContentEditable) {
		document.execCommand('selectAll', false, null);
		document.execCommand('insertText', false, %s);
	} else {
		el.value = '';
		el.value = %s;
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));
	}
	return true;
})()`

type queryResult struct {
	Tag       string `json:"tag"`
	Text      string `json:"text"`
	AriaLabel string `json:"ariaLabel"`
	Visible   bool   `json:"visible"`
	Enabled   bool   `json:"enabled"`
}

// QueryAll implements dom.Querier: it returns every element matching the
// selector, in document order, with metadata populated. The probe is
// read-only.
func (s *Session) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	opCtx, cancel := s.opContext(ctx, queryTimeout)
	defer cancel()

	script := fmt.Sprintf(queryScript, jsString(selector))

	var results []queryResult
	if err := chromedp.Run(opCtx, chromedp.Evaluate(script, &results)); err != nil {
		return nil, fmt.Errorf("query %q failed: %w", selector, err)
	}

	elements := make([]dom.Element, len(results))
	for i, res := range results {
		elements[i] = dom.Element{
			Tag:       res.Tag,
			Text:      res.Text,
			AriaLabel: res.AriaLabel,
			Visible:   res.Visible,
			Enabled:   res.Enabled,
		}
	}
	return elements, nil
}

// ClickElement clicks a previously resolved element. The element handle is
// positional (selector + document-order index), so a stale handle surfaces as
// an error rather than clicking the wrong node.
func (s *Session) ClickElement(ctx context.Context, el dom.Element) error {
	opCtx, cancel := s.opContext(ctx, defaultOpTimeout)
	defer cancel()

	script := fmt.Sprintf(clickScript, jsString(el.Selector), el.Index, jsString(el.Selector))

	var clicked bool
	if err := chromedp.Run(opCtx, chromedp.Evaluate(script, &clicked)); err != nil {
		return fmt.Errorf("click on %s failed: %w", el.Label(), err)
	}
	return nil
}

// FillElement clears a resolved input element and types text into it.
func (s *Session) FillElement(ctx context.Context, el dom.Element, text string) error {
	opCtx, cancel := s.opContext(ctx, defaultOpTimeout)
	defer cancel()

	sel := jsString(el.Selector)
	script := fmt.Sprintf(fillScript, sel, el.Index, sel, jsString(text), jsString(text))

	var filled bool
	if err := chromedp.Run(opCtx, chromedp.Evaluate(script, &filled)); err != nil {
		return fmt.Errorf("fill of %s failed: %w", el.Label(), err)
	}
	return nil
}

// PressEnter sends the Enter key to the focused element, the page's native
// submit action.
func (s *Session) PressEnter(ctx context.Context) error {
	opCtx, cancel := s.opContext(ctx, defaultOpTimeout)
	defer cancel()

	if err := chromedp.Run(opCtx, chromedp.KeyEvent(kb.Enter)); err != nil {
		return fmt.Errorf("sending Enter failed: %w", err)
	}
	return nil
}

// jsString encodes a Go string as a JS string literal. JSON encoding is valid
// JS and handles quoting in selectors and prompt text.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
