package messaging

import (
	"context"
	"sort"
	"sync"
	"time"

	"inappkit/internal/types"
)

// InAppManager owns the in-app message list and drives its lifecycle:
// automatic display passes, explicit shows, consumption and removal.
//
// Concurrency:
//   - passMu serializes automatic passes against list refreshes, so a
//     refresh that arrives mid-pass waits and a pass never shows twice.
//   - each message's state record serializes its own transitions.
//   - displayMu guards the on-screen set and the last dismissal time.
type InAppManager struct {
	list     *messageList[types.InAppMessage]
	renderer Renderer
	notifier Notifier
	logger   types.Logger
	opts     managerOptions

	passMu sync.Mutex

	displayMu     sync.Mutex
	onScreen      map[string]struct{}
	lastDismissal time.Time
	paused        bool
}

// NewInAppManager creates an InAppManager. The renderer builds views for
// shown messages; the notifier receives consume and remove signals.
func NewInAppManager(renderer Renderer, notifier Notifier, logger types.Logger, opts ...Option) *InAppManager {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = types.NopLogger{}
	}

	return &InAppManager{
		list:     newMessageList(func(m types.InAppMessage) types.MessageCore { return m.MessageCore }),
		renderer: renderer,
		notifier: notifier,
		logger:   logger.With("message_class", string(ClassInApp)),
		opts:     o,
		onScreen: make(map[string]struct{}),
		paused:   !o.autoDisplay,
	}
}

// GetMessages returns a snapshot of every known in-app message, processed or
// not, in arrival order. Expired messages are dropped first.
func (m *InAppManager) GetMessages() []types.InAppMessage {
	m.pruneExpired()

	items := m.list.snapshot()
	out := make([]types.InAppMessage, 0, len(items))
	for _, it := range items {
		msg := it.msg.Clone()
		msg.State = it.state
		out = append(out, msg)
	}
	return out
}

// SetMessages reconciles the list with a refresh from the sync layer and
// then runs an automatic display pass over anything newly available.
func (m *InAppManager) SetMessages(ctx context.Context, msgs []types.InAppMessage) {
	m.passMu.Lock()
	defer m.passMu.Unlock()

	added := m.list.replace(msgs, func(msg types.InAppMessage) types.MessageState {
		return types.MessageState{
			Processed: msg.State.Processed,
			Consumed:  msg.State.Consumed,
		}
	})
	m.logger.Info("in-app messages refreshed",
		"total", m.list.count(),
		"added", len(added),
	)

	m.evaluateLocked(ctx)
}

// Evaluate runs one automatic display pass and reports whether a message
// was shown.
func (m *InAppManager) Evaluate(ctx context.Context) bool {
	m.passMu.Lock()
	defer m.passMu.Unlock()
	return m.evaluateLocked(ctx)
}

// evaluateLocked offers each eligible candidate to the delegate in display
// order and stops at the first one that is shown. Callers hold passMu.
func (m *InAppManager) evaluateLocked(ctx context.Context) bool {
	if !m.readyForAutoDisplay() {
		return false
	}
	m.pruneExpired()

	for _, msg := range m.candidates() {
		current, rec, ok := m.list.lookup(msg.MessageID)
		if !ok {
			continue
		}

		offered := current.Clone()
		offered.State = rec.snapshot()
		decision := m.opts.delegate.OnNew(offered)

		logger := m.logger.With(
			"message_id", msg.MessageID,
			"campaign_id", msg.CampaignID,
			"decision", string(decision),
		)

		if decision != DisplayShow {
			if _, ok := rec.transition(func(s *types.MessageState) { s.Processed = true }); ok {
				logger.Info("in-app message skipped by delegate")
				m.opts.metrics.Record(ctx, ClassInApp, OutcomeSkipped)
			}
			continue
		}

		// Inbox-saved messages stay queued until the user removes them.
		if m.present(ctx, current, rec, !current.SaveToInbox(), nil, logger) {
			return true
		}
	}
	return false
}

// candidates returns unprocessed, unconsumed immediate-trigger messages in
// display order: higher priority first, then earlier arrival, then list
// position. Messages without an arrival time sort after those with one.
func (m *InAppManager) candidates() []types.InAppMessage {
	type candidate struct {
		msg types.InAppMessage
		pos int
	}
	var found []candidate
	for pos, it := range m.list.snapshot() {
		if it.state.Processed || it.state.Consumed {
			continue
		}
		if it.msg.Trigger.Type != types.TriggerImmediate {
			continue
		}
		found = append(found, candidate{msg: it.msg, pos: pos})
	}

	sort.Slice(found, func(i, j int) bool {
		a, b := found[i], found[j]
		if a.msg.Priority != b.msg.Priority {
			return a.msg.Priority > b.msg.Priority
		}
		ta, tb := a.msg.ReceivedAt, b.msg.ReceivedAt
		if ta.IsZero() != tb.IsZero() {
			return !ta.IsZero()
		}
		if !ta.Equal(tb) {
			return ta.Before(tb)
		}
		return a.pos < b.pos
	})

	out := make([]types.InAppMessage, len(found))
	for i, c := range found {
		out[i] = c.msg
	}
	return out
}

// readyForAutoDisplay applies the one-on-screen rule, the pause switch and
// the spacing after the last dismissal.
func (m *InAppManager) readyForAutoDisplay() bool {
	m.displayMu.Lock()
	defer m.displayMu.Unlock()

	if m.paused || len(m.onScreen) > 0 {
		return false
	}
	if m.lastDismissal.IsZero() || m.opts.displayInterval == 0 {
		return true
	}
	return m.opts.clock.Now().Sub(m.lastDismissal) >= m.opts.displayInterval
}

// Show displays msg and consumes it, with no callback.
func (m *InAppManager) Show(ctx context.Context, msg types.InAppMessage) bool {
	return m.ShowWithOptions(ctx, msg, true, nil)
}

// ShowWithOptions displays msg regardless of its trigger or processed state.
// The message is marked processed; when the rendering surface accepts it and
// consume is true it is also marked consumed and the backend is signalled
// once. cb fires once, after the first user interaction and after the global
// action handlers. Returns whether the message was displayed.
//
// Unknown or removed messages are ignored.
func (m *InAppManager) ShowWithOptions(ctx context.Context, msg types.InAppMessage, consume bool, cb ActionCallback) bool {
	logger := m.logger.With("message_id", msg.MessageID, "campaign_id", msg.CampaignID)

	current, rec, ok := m.list.lookup(msg.MessageID)
	if !ok {
		logger.Warn("show requested for unknown in-app message")
		return false
	}
	return m.present(ctx, current, rec, consume, cb, logger)
}

// present marks the message processed, builds its view and puts it on
// screen, then consumes it when asked.
func (m *InAppManager) present(ctx context.Context, msg types.InAppMessage, rec *stateRecord, consume bool, cb ActionCallback, logger types.Logger) bool {
	if _, ok := rec.transition(func(s *types.MessageState) { s.Processed = true }); !ok {
		logger.Warn("in-app message removed before display")
		return false
	}

	view, ok := m.renderer.CreateView(msg.MessageCore)
	if !ok {
		logger.Warn("no renderer for in-app content", "content_kind", string(msg.Content.Kind))
		m.opts.metrics.Record(ctx, ClassInApp, OutcomeFailed)
		return false
	}

	id := msg.MessageID
	m.markOnScreen(id)
	events := PresentationEvents{
		OnAction:  interactionHandler(ctx, msg.MessageCore, m.opts.handlers, cb),
		OnDismiss: onceFunc(func() { m.dismissed(id) }),
	}
	if err := view.Present(ctx, events); err != nil {
		m.clearOnScreen(id)
		logger.Error("in-app message display failed", "error", err.Error())
		m.opts.metrics.Record(ctx, ClassInApp, OutcomeFailed)
		return false
	}

	logger.Info("in-app message shown", "consume", consume)
	m.opts.metrics.Record(ctx, ClassInApp, OutcomeShown)

	if consume {
		m.consume(ctx, id, rec, logger)
	}
	return true
}

// consume sets consumed and signals the backend the first time only. A
// failed signal is logged; the local flag stays set.
func (m *InAppManager) consume(ctx context.Context, id string, rec *stateRecord, logger types.Logger) {
	changed, ok := rec.transition(func(s *types.MessageState) { s.Consumed = true })
	if !ok || !changed {
		return
	}
	m.opts.metrics.Record(ctx, ClassInApp, OutcomeConsumed)

	if m.notifier == nil {
		return
	}
	if err := m.notifier.NotifyConsumed(ctx, id); err != nil {
		logger.Error("failed to signal in-app consumption", "error", err.Error())
	}
}

// Remove drops msg from the list and signals removal to the backend.
// Removing a message that is already gone is a no-op.
func (m *InAppManager) Remove(ctx context.Context, msg types.InAppMessage) {
	logger := m.logger.With("message_id", msg.MessageID, "campaign_id", msg.CampaignID)

	if !m.list.remove(msg.MessageID) {
		logger.Warn("remove requested for unknown in-app message")
		return
	}
	logger.Info("in-app message removed")
	m.opts.metrics.Record(ctx, ClassInApp, OutcomeRemoved)

	if m.notifier == nil {
		return
	}
	if err := m.notifier.NotifyRemoved(ctx, msg.MessageID); err != nil {
		logger.Error("failed to signal in-app removal", "error", err.Error())
	}
}

// SetAutoDisplayPaused stops or resumes automatic passes. Explicit shows
// are unaffected. Resuming runs a pass immediately.
func (m *InAppManager) SetAutoDisplayPaused(ctx context.Context, paused bool) {
	m.displayMu.Lock()
	m.paused = paused
	m.displayMu.Unlock()

	if !paused {
		m.Evaluate(ctx)
	}
}

// IsShowing reports whether any in-app message is on screen.
func (m *InAppManager) IsShowing() bool {
	m.displayMu.Lock()
	defer m.displayMu.Unlock()
	return len(m.onScreen) > 0
}

func (m *InAppManager) markOnScreen(id string) {
	m.displayMu.Lock()
	m.onScreen[id] = struct{}{}
	m.displayMu.Unlock()
}

func (m *InAppManager) clearOnScreen(id string) {
	m.displayMu.Lock()
	delete(m.onScreen, id)
	m.displayMu.Unlock()
}

// dismissed records the dismissal and schedules the next automatic pass
// once the display interval has elapsed.
func (m *InAppManager) dismissed(id string) {
	m.displayMu.Lock()
	delete(m.onScreen, id)
	m.lastDismissal = m.opts.clock.Now()
	m.displayMu.Unlock()

	m.logger.Info("in-app message dismissed", "message_id", id)
	m.opts.metrics.Record(context.Background(), ClassInApp, OutcomeDismissed)
	m.opts.schedule(m.opts.displayInterval, func() {
		m.Evaluate(context.Background())
	})
}

func (m *InAppManager) pruneExpired() {
	for _, id := range m.list.pruneExpired(m.opts.clock.Now()) {
		m.logger.Info("in-app message expired", "message_id", id)
	}
}
