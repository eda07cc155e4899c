package resume

// Step is one authored stop within a tour: a selector plus popover copy.
// The URL marks the page the step lives on; a step whose URL differs
// from the current page triggers a full navigation.
type Step struct {
	Selector    string `json:"selector"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Position    string `json:"position,omitempty"` // top/bottom/left/right
	URL         string `json:"url,omitempty"`
}

// Task is an authored, ordered sequence of steps replayed to end users.
type Task struct {
	Slug  string `json:"slug"`
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}
