package event

import (
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/otwlabs/otw/internal/domain/tour"
)

// Type discriminates wire messages.
type Type string

const (
	TypeInit      Type = "init"
	TypeConnected Type = "connected"
	TypeStep      Type = "step"
	TypeStop      Type = "stop"
	TypeSync      Type = "sync"
	TypePing      Type = "ping"
	TypePong      Type = "pong"
)

// Event is one message in the recording-session protocol.
type Event interface {
	EventType() Type
}

// Init is the recorder announcing itself on first load. Functionally
// identical to Connected; the distinct tag lets the dashboard tell a
// fresh recorder from a re-announcement after navigation.
type Init struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// Connected is the recorder (re-)announcing its current page.
type Connected struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// Step carries one captured step. Element is the recorder's raw
// description of the clicked node, present in proxy mode so the server
// can re-derive the selector against the cached document.
type Step struct {
	Step    tour.CapturedStep `json:"step"`
	Element *tour.ElementRef  `json:"element,omitempty"`
}

// Stop requests session teardown; on broadcast it carries the final
// accumulated step list so listeners need no follow-up read.
type Stop struct {
	Steps []tour.CapturedStep `json:"steps,omitempty"`
}

// Sync delivers the full accumulated step list to a newly-subscribed
// listener so a dashboard reconnecting mid-session catches up.
type Sync struct {
	Steps []tour.CapturedStep `json:"steps"`
}

// Ping probes for an already-active recorder (dashboard reload case).
type Ping struct{}

// Pong is the recorder's liveness answer to a Ping.
type Pong struct {
	URL string `json:"url,omitempty"`
}

func (Init) EventType() Type      { return TypeInit }
func (Connected) EventType() Type { return TypeConnected }
func (Step) EventType() Type      { return TypeStep }
func (Stop) EventType() Type      { return TypeStop }
func (Sync) EventType() Type      { return TypeSync }
func (Ping) EventType() Type      { return TypePing }
func (Pong) EventType() Type      { return TypePong }

// UnknownTypeError reports a payload whose type tag is outside the
// protocol's closed set.
type UnknownTypeError struct {
	Tag string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown event type %q", e.Tag)
}

type envelope struct {
	Type Type `json:"type"`
}

// Decode parses a wire payload into its concrete event type.
func Decode(raw []byte) (Event, error) {
	var env envelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed event payload: %w", err)
	}

	switch env.Type {
	case TypeInit:
		var e Init
		return e, sonic.Unmarshal(raw, &e)
	case TypeConnected:
		var e Connected
		return e, sonic.Unmarshal(raw, &e)
	case TypeStep:
		var e Step
		if err := sonic.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("malformed step event: %w", err)
		}
		return e, nil
	case TypeStop:
		var e Stop
		return e, sonic.Unmarshal(raw, &e)
	case TypeSync:
		var e Sync
		return e, sonic.Unmarshal(raw, &e)
	case TypePing:
		return Ping{}, nil
	case TypePong:
		var e Pong
		return e, sonic.Unmarshal(raw, &e)
	default:
		return nil, &UnknownTypeError{Tag: string(env.Type)}
	}
}

// Encode serializes an event with its type tag for the wire. The tag is
// injected alongside the event's own fields so clients see a flat
// {type, ...payload} object.
func Encode(e Event) ([]byte, error) {
	body, err := sonic.Marshal(e)
	if err != nil {
		return nil, err
	}

	tag, err := sonic.Marshal(map[string]Type{"type": e.EventType()})
	if err != nil {
		return nil, err
	}

	// Merge {"type":...} with the payload object.
	if len(body) == 2 { // "{}"
		return tag, nil
	}
	merged := make([]byte, 0, len(tag)+len(body))
	merged = append(merged, tag[:len(tag)-1]...)
	merged = append(merged, ',')
	merged = append(merged, body[1:]...)
	return merged, nil
}
