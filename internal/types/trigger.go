package types

import "strings"

// TriggerType decides whether a message may be displayed automatically.
type TriggerType string

const (
	// TriggerImmediate messages are shown as soon as they are available.
	TriggerImmediate TriggerType = "immediate"
	// TriggerEvent messages wait for an application event and are never
	// picked by the automatic display pass.
	TriggerEvent TriggerType = "event"
	// TriggerNever messages are only shown by an explicit call.
	TriggerNever TriggerType = "never"
)

// triggerTypeKey is the only key of the raw trigger map that is interpreted.
const triggerTypeKey = "type"

// Trigger describes when a message is eligible for automatic display. Raw
// keeps the whole descriptor so fields this module does not map are not lost.
type Trigger struct {
	Type TriggerType    `json:"type"`
	Raw  map[string]any `json:"raw,omitempty"`
}

// ParseTrigger resolves a raw trigger descriptor. A missing, non-string or
// unrecognized type token resolves to TriggerImmediate.
func ParseTrigger(raw map[string]any) Trigger {
	t := Trigger{Type: TriggerImmediate}
	if raw == nil {
		return t
	}

	t.Raw = make(map[string]any, len(raw))
	for k, v := range raw {
		t.Raw[k] = v
	}

	token, ok := raw[triggerTypeKey].(string)
	if !ok {
		return t
	}
	switch TriggerType(strings.ToLower(strings.TrimSpace(token))) {
	case TriggerEvent:
		t.Type = TriggerEvent
	case TriggerNever:
		t.Type = TriggerNever
	}
	return t
}

// DefaultTrigger is the trigger used when a payload carries none.
func DefaultTrigger() Trigger {
	return Trigger{Type: TriggerImmediate}
}
