package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"inappkit/internal/messaging"
	"inappkit/internal/types"
)

// DefaultMaxPending bounds how many displays may wait for the UI client.
const DefaultMaxPending = 32

// Display is a presentation request waiting for the UI client.
type Display struct {
	ID            string         `json:"display_id"`
	MessageID     string         `json:"message_id"`
	CampaignID    string         `json:"campaign_id,omitempty"`
	Content       types.Content  `json:"content"`
	CustomPayload map[string]any `json:"custom_payload,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

type pendingDisplay struct {
	display Display
	events  messaging.PresentationEvents
}

var _ messaging.Renderer = (*DisplayBridge)(nil)

// DisplayBridge is the Renderer used when the screen belongs to a separate UI
// process. Present queues the message; the UI polls Pending, draws it, and
// reports back through Act or Dismiss.
type DisplayBridge struct {
	kinds      map[types.ContentKind]bool
	maxPending int
	clock      types.Clock
	logger     types.Logger

	mu      sync.Mutex
	pending map[string]*pendingDisplay
	order   []string
}

// NewDisplayBridge creates a bridge that accepts the given content kinds, or
// every known kind when none are given.
func NewDisplayBridge(clock types.Clock, logger types.Logger, kinds ...types.ContentKind) *DisplayBridge {
	if len(kinds) == 0 {
		kinds = []types.ContentKind{types.ContentHTML, types.ContentAlert, types.ContentBanner, types.ContentInboxHTML}
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	accepted := make(map[types.ContentKind]bool, len(kinds))
	for _, k := range kinds {
		accepted[k] = true
	}
	return &DisplayBridge{
		kinds:      accepted,
		maxPending: DefaultMaxPending,
		clock:      clock,
		logger:     logger,
		pending:    make(map[string]*pendingDisplay),
	}
}

// CreateView implements messaging.Renderer.
func (b *DisplayBridge) CreateView(msg types.MessageCore) (messaging.View, bool) {
	if !b.kinds[msg.Content.Kind] {
		return nil, false
	}
	return &bridgeView{bridge: b, msg: msg}, true
}

type bridgeView struct {
	bridge *DisplayBridge
	msg    types.MessageCore
}

// Present queues the display. It fails when the caller gave up or the UI
// client has fallen too far behind.
func (v *bridgeView) Present(ctx context.Context, events messaging.PresentationEvents) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return v.bridge.enqueue(v.msg, events)
}

func (b *DisplayBridge) enqueue(msg types.MessageCore, events messaging.PresentationEvents) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.order) >= b.maxPending {
		return types.NewAppError(types.ErrCodeConflictDisplayRejected, "too many pending displays", nil)
	}

	d := Display{
		ID:            uuid.NewString(),
		MessageID:     msg.MessageID,
		CampaignID:    msg.CampaignID,
		Content:       msg.Content,
		CustomPayload: msg.CustomPayload,
		CreatedAt:     b.clock.Now(),
	}
	b.pending[d.ID] = &pendingDisplay{display: d, events: events}
	b.order = append(b.order, d.ID)

	b.logger.Info("display queued", "display_id", d.ID, "message_id", d.MessageID)
	return nil
}

// Pending returns the queued displays, oldest first.
func (b *DisplayBridge) Pending() []Display {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Display, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.pending[id].display)
	}
	return out
}

// Act reports a user interaction. The interaction ends the display: the
// action hooks run first, then the dismissal hook.
func (b *DisplayBridge) Act(displayID string, result types.ActionResult) error {
	p, ok := b.take(displayID)
	if !ok {
		return types.NewAppError(types.ErrCodeNotFoundDisplay, "display not found", nil).
			WithDetails(map[string]any{"display_id": displayID})
	}

	b.logger.Info("display action",
		"display_id", displayID,
		"message_id", p.display.MessageID,
		"action_type", string(result.Type),
	)
	if p.events.OnAction != nil {
		p.events.OnAction(result)
	}
	if p.events.OnDismiss != nil {
		p.events.OnDismiss()
	}
	return nil
}

// Dismiss reports that the UI closed the display without an interaction.
func (b *DisplayBridge) Dismiss(displayID string) error {
	p, ok := b.take(displayID)
	if !ok {
		return types.NewAppError(types.ErrCodeNotFoundDisplay, "display not found", nil).
			WithDetails(map[string]any{"display_id": displayID})
	}

	b.logger.Info("display dismissed", "display_id", displayID, "message_id", p.display.MessageID)
	if p.events.OnDismiss != nil {
		p.events.OnDismiss()
	}
	return nil
}

func (b *DisplayBridge) take(displayID string) (*pendingDisplay, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.pending[displayID]
	if !ok {
		return nil, false
	}
	delete(b.pending, displayID)
	for i, id := range b.order {
		if id == displayID {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return p, true
}
