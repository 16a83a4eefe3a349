package fanout

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charleschow/kite-terminal/internal/events"
)

// Wire message types. Terminals plot "ticks" and ignore the rest.
const (
	MsgTicks  = "ticks"
	MsgOrder  = "order"
	MsgStatus = "status"
	MsgBar    = "bar"
	MsgHalt   = "halt"
)

// Envelope is the wire format for events sent over /ws/ticks.
type Envelope struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // unix milliseconds
	Data      json.RawMessage `json:"data"`
}

var wireTypes = map[events.EventType]string{
	events.EventTicks:          MsgTicks,
	events.EventOrderFilled:    MsgOrder,
	events.EventTickerStatus:   MsgStatus,
	events.EventBar:            MsgBar,
	events.EventStrategyHalted: MsgHalt,
}

// MarshalEvent serializes an Event into a JSON-encoded Envelope.
func MarshalEvent(evt events.Event) ([]byte, error) {
	wireType, ok := wireTypes[evt.Type]
	if !ok {
		return nil, fmt.Errorf("no wire type for event %s", evt.Type)
	}
	data, err := json.Marshal(evt.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	env := Envelope{
		Type: wireType,
		Data: data,
	}
	if !evt.Timestamp.IsZero() {
		env.Timestamp = evt.Timestamp.UnixMilli()
	}
	return json.Marshal(env)
}

// UnmarshalEvent deserializes a JSON Envelope back into a typed Event.
func UnmarshalEvent(raw []byte) (events.Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return events.Event{}, fmt.Errorf("unmarshal envelope: %w", err)
	}

	var evt events.Event
	if env.Timestamp != 0 {
		evt.Timestamp = time.UnixMilli(env.Timestamp)
	}

	switch env.Type {
	case MsgTicks:
		var ticks []events.Tick
		if err := json.Unmarshal(env.Data, &ticks); err != nil {
			return evt, fmt.Errorf("unmarshal ticks: %w", err)
		}
		evt.Type, evt.Payload = events.EventTicks, ticks
	case MsgOrder:
		var of events.OrderFilled
		if err := json.Unmarshal(env.Data, &of); err != nil {
			return evt, fmt.Errorf("unmarshal order: %w", err)
		}
		evt.Type, evt.Payload = events.EventOrderFilled, of
	case MsgStatus:
		var st events.TickerStatusEvent
		if err := json.Unmarshal(env.Data, &st); err != nil {
			return evt, fmt.Errorf("unmarshal status: %w", err)
		}
		evt.Type, evt.Payload = events.EventTickerStatus, st
	case MsgBar:
		var bar events.Bar
		if err := json.Unmarshal(env.Data, &bar); err != nil {
			return evt, fmt.Errorf("unmarshal bar: %w", err)
		}
		evt.Type, evt.Payload = events.EventBar, bar
	case MsgHalt:
		var h events.StrategyHalted
		if err := json.Unmarshal(env.Data, &h); err != nil {
			return evt, fmt.Errorf("unmarshal halt: %w", err)
		}
		evt.Type, evt.Payload = events.EventStrategyHalted, h
	default:
		return evt, fmt.Errorf("unknown message type: %s", env.Type)
	}

	return evt, nil
}
