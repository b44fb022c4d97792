package types

import "time"

// InboxMetadata holds the list-row strings of an in-app message that is also
// shown in the inbox.
type InboxMetadata struct {
	Title    string `json:"title,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`
	Icon     string `json:"icon,omitempty"`
}

// MessageState is the mutable lifecycle of a message. The managers keep it in
// a separate record keyed by MessageID; the State field on a message value is
// only a copy taken when a snapshot is returned.
type MessageState struct {
	// Processed is set once a display decision was made (shown or skipped).
	Processed bool `json:"processed"`
	// Consumed is set once the message was marked for removal from the
	// backend delivery queue. It is never cleared.
	Consumed bool `json:"consumed"`
	// Read applies to inbox messages only.
	Read bool `json:"read"`
}

// MessageCore is the shape shared by in-app and inbox messages.
type MessageCore struct {
	MessageID     string         `json:"message_id"`
	CampaignID    string         `json:"campaign_id"`
	ExpiresAt     *time.Time     `json:"expires_at,omitempty"`
	Content       Content        `json:"content"`
	CustomPayload map[string]any `json:"custom_payload,omitempty"`

	// ReceivedAt is the arrival time assigned by ingestion. It orders
	// candidates of equal priority.
	ReceivedAt time.Time `json:"received_at"`
	// Priority is an ordering hint for the automatic display pass; higher
	// values are offered to the delegate first.
	Priority float64 `json:"priority,omitempty"`
}

// IsExpired reports whether the message has expired at now. A nil ExpiresAt
// never expires.
func (m MessageCore) IsExpired(now time.Time) bool {
	return m.ExpiresAt != nil && !now.Before(*m.ExpiresAt)
}

// InAppMessage is a message displayable as an overlay, governed by a trigger.
type InAppMessage struct {
	MessageCore
	Trigger       Trigger        `json:"trigger"`
	InboxMetadata *InboxMetadata `json:"inbox_metadata,omitempty"`
	State         MessageState   `json:"state"`
}

// SaveToInbox reports whether the message is mirrored into the inbox list.
func (m InAppMessage) SaveToInbox() bool {
	return m.InboxMetadata != nil
}

// Clone returns a copy that shares no maps or pointers with m.
func (m InAppMessage) Clone() InAppMessage {
	out := m
	out.MessageCore = m.MessageCore.clone()
	if m.Trigger.Raw != nil {
		out.Trigger.Raw = cloneMap(m.Trigger.Raw)
	}
	if m.InboxMetadata != nil {
		meta := *m.InboxMetadata
		out.InboxMetadata = &meta
	}
	return out
}

// InboxMessage is a persistent message shown in the inbox list. It has no
// trigger and is never shown automatically.
type InboxMessage struct {
	MessageCore
	State MessageState `json:"state"`
}

// Read reports whether the message has been read.
func (m InboxMessage) Read() bool {
	return m.State.Read
}

// Clone returns a copy that shares no maps or pointers with m.
func (m InboxMessage) Clone() InboxMessage {
	out := m
	out.MessageCore = m.MessageCore.clone()
	return out
}

func (m MessageCore) clone() MessageCore {
	out := m
	if m.ExpiresAt != nil {
		t := *m.ExpiresAt
		out.ExpiresAt = &t
	}
	if m.CustomPayload != nil {
		out.CustomPayload = cloneMap(m.CustomPayload)
	}
	out.Content = m.Content.clone()
	return out
}

func (c Content) clone() Content {
	out := c
	if c.HTML != nil {
		v := *c.HTML
		out.HTML = &v
	}
	if c.Inbox != nil {
		v := *c.Inbox
		out.Inbox = &v
	}
	if c.Alert != nil {
		v := *c.Alert
		v.Buttons = append([]ActionButton(nil), c.Alert.Buttons...)
		out.Alert = &v
	}
	if c.Banner != nil {
		v := *c.Banner
		out.Banner = &v
	}
	return out
}

// cloneMap copies one level deep; nested values are opaque passthrough data
// and are never mutated by this module.
func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
