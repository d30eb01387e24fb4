// File: internal/browser/dom/detail.go
package dom

// Rect is an element's layout box in CSS pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ElementDetail is the survey-grade view of a page element: everything Element
// carries plus the attributes and geometry useful when cataloguing which
// selector patterns still work against the live page.
type ElementDetail struct {
	Selector    string `json:"selector"`
	Index       int    `json:"index"`
	Tag         string `json:"tag"`
	Text        string `json:"text"`
	AriaLabel   string `json:"aria_label"`
	Placeholder string `json:"placeholder"`
	Class       string `json:"class"`
	Visible     bool   `json:"visible"`
	Enabled     bool   `json:"enabled"`
	Box         Rect   `json:"bounding_box"`
}
