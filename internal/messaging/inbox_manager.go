package messaging

import (
	"context"

	"inappkit/internal/types"
)

// InboxManager owns the inbox list: unread accounting, display, read state
// and removal. Inbox messages are never shown automatically and never
// consumed from the backend queue.
type InboxManager struct {
	list     *messageList[types.InboxMessage]
	renderer Renderer
	notifier Notifier
	logger   types.Logger
	opts     managerOptions
}

// NewInboxManager creates an InboxManager.
func NewInboxManager(renderer Renderer, notifier Notifier, logger types.Logger, opts ...Option) *InboxManager {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = types.NopLogger{}
	}

	return &InboxManager{
		list:     newMessageList(func(m types.InboxMessage) types.MessageCore { return m.MessageCore }),
		renderer: renderer,
		notifier: notifier,
		logger:   logger.With("message_class", string(ClassInbox)),
		opts:     o,
	}
}

// SetMessages reconciles the inbox with a refresh. Known messages keep their
// local read state; new ones start from the read flag in the payload.
func (m *InboxManager) SetMessages(_ context.Context, msgs []types.InboxMessage) {
	added := m.list.replace(msgs, func(msg types.InboxMessage) types.MessageState {
		return types.MessageState{Read: msg.State.Read}
	})
	m.logger.Info("inbox messages refreshed",
		"total", m.list.count(),
		"added", len(added),
	)
}

// GetMessages returns a snapshot of the full inbox in arrival order.
func (m *InboxManager) GetMessages() []types.InboxMessage {
	return m.filter(func(types.MessageState) bool { return true })
}

// GetUnreadMessages returns the messages whose read flag is false.
func (m *InboxManager) GetUnreadMessages() []types.InboxMessage {
	return m.filter(func(s types.MessageState) bool { return !s.Read })
}

// GetUnreadCount returns len(GetUnreadMessages()).
func (m *InboxManager) GetUnreadCount() int {
	return len(m.GetUnreadMessages())
}

func (m *InboxManager) filter(keep func(types.MessageState) bool) []types.InboxMessage {
	for _, id := range m.list.pruneExpired(m.opts.clock.Now()) {
		m.logger.Info("inbox message expired", "message_id", id)
	}

	items := m.list.snapshot()
	out := make([]types.InboxMessage, 0, len(items))
	for _, it := range items {
		if !keep(it.state) {
			continue
		}
		msg := it.msg.Clone()
		msg.State = it.state
		out = append(out, msg)
	}
	return out
}

// Show displays msg with no callback.
func (m *InboxManager) Show(ctx context.Context, msg types.InboxMessage) bool {
	return m.ShowWithCallback(ctx, msg, nil)
}

// ShowWithCallback displays msg. The message is marked processed, and read
// once the rendering surface accepted it. cb fires once, after the first
// user interaction. Returns whether the message was displayed.
func (m *InboxManager) ShowWithCallback(ctx context.Context, msg types.InboxMessage, cb ActionCallback) bool {
	logger := m.logger.With("message_id", msg.MessageID, "campaign_id", msg.CampaignID)

	current, rec, ok := m.list.lookup(msg.MessageID)
	if !ok {
		logger.Warn("show requested for unknown inbox message")
		return false
	}
	if _, ok := rec.transition(func(s *types.MessageState) { s.Processed = true }); !ok {
		logger.Warn("inbox message removed before display")
		return false
	}

	view, ok := m.renderer.CreateView(current.MessageCore)
	if !ok {
		logger.Warn("no renderer for inbox content", "content_kind", string(current.Content.Kind))
		m.opts.metrics.Record(ctx, ClassInbox, OutcomeFailed)
		return false
	}

	events := PresentationEvents{
		OnAction:  interactionHandler(ctx, current.MessageCore, m.opts.handlers, cb),
		OnDismiss: onceFunc(func() {
			logger.Info("inbox message dismissed")
			m.opts.metrics.Record(context.WithoutCancel(ctx), ClassInbox, OutcomeDismissed)
		}),
	}
	if err := view.Present(ctx, events); err != nil {
		logger.Error("inbox message display failed", "error", err.Error())
		m.opts.metrics.Record(ctx, ClassInbox, OutcomeFailed)
		return false
	}

	changed, _ := rec.transition(func(s *types.MessageState) { s.Read = true })
	logger.Info("inbox message shown")
	m.opts.metrics.Record(ctx, ClassInbox, OutcomeShown)
	if changed {
		m.opts.metrics.Record(ctx, ClassInbox, OutcomeRead)
	}
	return true
}

// CreateView builds a view for msg without displaying it or touching its
// state. It reports false when no renderer handles the content kind.
func (m *InboxManager) CreateView(msg types.InboxMessage) (View, bool) {
	return m.renderer.CreateView(msg.MessageCore)
}

// SetRead sets the read flag of msg without displaying it. Unknown messages
// are ignored.
func (m *InboxManager) SetRead(ctx context.Context, msg types.InboxMessage, read bool) {
	logger := m.logger.With("message_id", msg.MessageID, "read", read)

	_, rec, ok := m.list.lookup(msg.MessageID)
	if !ok {
		logger.Warn("read change requested for unknown inbox message")
		return
	}
	changed, ok := rec.transition(func(s *types.MessageState) { s.Read = read })
	if !ok || !changed {
		return
	}
	logger.Info("inbox read state changed")
	if read {
		m.opts.metrics.Record(ctx, ClassInbox, OutcomeRead)
	}
}

// Remove drops msg from the inbox and signals removal to the backend.
// Removing a message that is already gone is a no-op.
func (m *InboxManager) Remove(ctx context.Context, msg types.InboxMessage) {
	logger := m.logger.With("message_id", msg.MessageID, "campaign_id", msg.CampaignID)

	if !m.list.remove(msg.MessageID) {
		logger.Warn("remove requested for unknown inbox message")
		return
	}
	logger.Info("inbox message removed")
	m.opts.metrics.Record(ctx, ClassInbox, OutcomeRemoved)

	if m.notifier == nil {
		return
	}
	if err := m.notifier.NotifyRemoved(ctx, msg.MessageID); err != nil {
		logger.Error("failed to signal inbox removal", "error", err.Error())
	}
}
