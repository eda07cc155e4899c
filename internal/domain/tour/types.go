package tour

import (
	"time"

	"github.com/otwlabs/otw/internal/shared/id"
)

// Rect is the bounding box of an element at capture time, in CSS pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CapturedStep is one raw recording-time observation: a click on an
// element, reduced to a selector plus display metadata. Immutable once
// captured; the dashboard later transforms it into an authored Step.
type CapturedStep struct {
	ID        id.CaptureID `json:"id"`
	Index     int          `json:"index"` // 1-based capture order
	Selector  string       `json:"selector"`
	TagName   string       `json:"tagName"`
	InnerText string       `json:"innerText"`
	Rect      Rect         `json:"rect"`
	URL       string       `json:"url"`
	Timestamp time.Time    `json:"timestamp"`
}

// AncestorRef describes one level of an element's ancestor chain as
// observed in the page. Recorders in proxy mode report the chain so the
// server can re-derive a stable selector against the cached document.
type AncestorRef struct {
	TagName  string   `json:"tagName"`
	ID       string   `json:"id,omitempty"`
	Classes  []string `json:"classes,omitempty"`
	Position int      `json:"position"` // 1-based :nth-child position
}

// ElementRef is the recorder's raw description of the clicked element.
type ElementRef struct {
	TagName   string        `json:"tagName"`
	ID        string        `json:"id,omitempty"`
	Classes   []string      `json:"classes,omitempty"`
	Marker    string        `json:"marker,omitempty"`   // data-otw-id value if present
	Position  int           `json:"position,omitempty"` // 1-based :nth-child position
	Ancestors []AncestorRef `json:"ancestors,omitempty"`
}
