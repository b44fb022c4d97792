package messaging

import (
	"context"
	"errors"
	"sync"
	"time"

	"inappkit/internal/types"
)

// mockClock implements types.Clock for deterministic testing.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// mockLogger implements types.Logger as a no-op for tests.
type mockLogger struct{}

func (l *mockLogger) Info(msg string, args ...any)  {}
func (l *mockLogger) Error(msg string, args ...any) {}
func (l *mockLogger) Warn(msg string, args ...any)  {}
func (l *mockLogger) With(args ...any) types.Logger { return l }

// recordingNotifier records lifecycle signals.
type recordingNotifier struct {
	mu       sync.Mutex
	consumed []string
	removed  []string
	err      error
}

func (n *recordingNotifier) NotifyConsumed(_ context.Context, id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.consumed = append(n.consumed, id)
	return n.err
}

func (n *recordingNotifier) NotifyRemoved(_ context.Context, id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.removed = append(n.removed, id)
	return n.err
}

func (n *recordingNotifier) Consumed() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.consumed...)
}

func (n *recordingNotifier) Removed() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.removed...)
}

// fakeView records its presentation and keeps the events so tests can
// simulate user interaction and dismissal.
type fakeView struct {
	messageID string
	err       error

	mu        sync.Mutex
	presented bool
	events    PresentationEvents
}

func (v *fakeView) Present(_ context.Context, events PresentationEvents) error {
	if v.err != nil {
		return v.err
	}
	v.mu.Lock()
	v.presented = true
	v.events = events
	v.mu.Unlock()
	return nil
}

func (v *fakeView) Tap(result types.ActionResult) {
	v.mu.Lock()
	ev := v.events
	v.mu.Unlock()
	ev.OnAction(result)
}

func (v *fakeView) Dismiss() {
	v.mu.Lock()
	ev := v.events
	v.mu.Unlock()
	ev.OnDismiss()
}

// fakeRenderer builds fakeViews and remembers every view it handed out.
type fakeRenderer struct {
	presentErr error

	mu    sync.Mutex
	views []*fakeView
}

func (r *fakeRenderer) CreateView(msg types.MessageCore) (View, bool) {
	v := &fakeView{messageID: msg.MessageID, err: r.presentErr}
	r.mu.Lock()
	r.views = append(r.views, v)
	r.mu.Unlock()
	return v, true
}

// Presented returns the IDs of views that made it on screen, in order.
func (r *fakeRenderer) Presented() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, v := range r.views {
		v.mu.Lock()
		if v.presented {
			ids = append(ids, v.messageID)
		}
		v.mu.Unlock()
	}
	return ids
}

// LastView returns the most recent view built for id.
func (r *fakeRenderer) LastView(id string) *fakeView {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.views) - 1; i >= 0; i-- {
		if r.views[i].messageID == id {
			return r.views[i]
		}
	}
	return nil
}

// recordingMetrics counts outcomes per class.
type recordingMetrics struct {
	mu       sync.Mutex
	outcomes map[MessageClass][]Outcome
	refresh  []int
}

func (m *recordingMetrics) Record(_ context.Context, class MessageClass, outcome Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = make(map[MessageClass][]Outcome)
	}
	m.outcomes[class] = append(m.outcomes[class], outcome)
}

func (m *recordingMetrics) RecordRefresh(_ context.Context, messages int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh = append(m.refresh, messages)
}

func (m *recordingMetrics) Outcomes(class MessageClass) []Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Outcome(nil), m.outcomes[class]...)
}

// manualScheduler captures scheduled follow-up passes.
type manualScheduler struct {
	mu      sync.Mutex
	delays  []time.Duration
	pending []func()
}

func (s *manualScheduler) schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	s.pending = append(s.pending, fn)
}

func (s *manualScheduler) RunPending() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

var errUnreachable = errors.New("backend unreachable")

var testNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func inApp(id string, trigger types.TriggerType) types.InAppMessage {
	return types.InAppMessage{
		MessageCore: types.MessageCore{
			MessageID:     id,
			CampaignID:    "camp_" + id,
			Content:       types.NewHTMLContent("<p>"+id+"</p>", types.Insets{}, 0.5),
			CustomPayload: map[string]any{"id": id},
		},
		Trigger: types.ParseTrigger(map[string]any{"type": string(trigger)}),
	}
}

func inbox(id string) types.InboxMessage {
	return types.InboxMessage{
		MessageCore: types.MessageCore{
			MessageID:  id,
			CampaignID: "camp_" + id,
			Content:    types.NewInboxHTMLContent(types.HTMLContent{HTML: "<p>" + id + "</p>"}, &types.InboxMetadata{Title: id}),
		},
	}
}

func byID(msgs []types.InAppMessage) map[string]types.InAppMessage {
	out := make(map[string]types.InAppMessage, len(msgs))
	for _, m := range msgs {
		out[m.MessageID] = m
	}
	return out
}
