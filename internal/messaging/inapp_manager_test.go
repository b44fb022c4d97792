package messaging

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inappkit/internal/types"
)

type inAppFixture struct {
	mgr      *InAppManager
	renderer *fakeRenderer
	notifier *recordingNotifier
	clock    *mockClock
	metrics  *recordingMetrics
	sched    *manualScheduler
}

func newInAppFixture(opts ...Option) *inAppFixture {
	f := &inAppFixture{
		renderer: &fakeRenderer{},
		notifier: &recordingNotifier{},
		clock:    &mockClock{now: testNow},
		metrics:  &recordingMetrics{},
		sched:    &manualScheduler{},
	}
	base := []Option{
		WithClock(f.clock),
		WithMetrics(f.metrics),
		WithScheduler(f.sched.schedule),
		WithDisplayInterval(0),
	}
	f.mgr = NewInAppManager(f.renderer, f.notifier, &mockLogger{}, append(base, opts...)...)
	return f
}

func TestInAppManager_AtMostOneAutoShowPerPass(t *testing.T) {
	f := newInAppFixture()
	ctx := context.Background()

	f.mgr.SetMessages(ctx, []types.InAppMessage{
		inApp("a", types.TriggerImmediate),
		inApp("b", types.TriggerImmediate),
		inApp("c", types.TriggerImmediate),
	})

	assert.Equal(t, []string{"a"}, f.renderer.Presented())

	got := byID(f.mgr.GetMessages())
	require.Len(t, got, 3)
	assert.True(t, got["a"].State.Processed)
	assert.True(t, got["a"].State.Consumed, "automatic shows consume the message")
	assert.False(t, got["b"].State.Processed)
	assert.False(t, got["c"].State.Processed)
	assert.Equal(t, []string{"a"}, f.notifier.Consumed())
}

func TestInAppManager_TwoImmediateMessagesFirstWins(t *testing.T) {
	f := newInAppFixture()

	f.mgr.SetMessages(context.Background(), []types.InAppMessage{
		inApp("A", types.TriggerImmediate),
		inApp("B", types.TriggerImmediate),
	})

	got := byID(f.mgr.GetMessages())
	assert.True(t, got["A"].State.Processed)
	assert.False(t, got["B"].State.Processed)
}

func TestInAppManager_EventAndNeverTriggersAreNotAutoShown(t *testing.T) {
	offered := []string{}
	delegate := DelegateFunc(func(msg types.InAppMessage) DisplayDecision {
		offered = append(offered, msg.MessageID)
		return DisplayShow
	})
	f := newInAppFixture(WithDelegate(delegate))

	f.mgr.SetMessages(context.Background(), []types.InAppMessage{
		inApp("event", types.TriggerEvent),
		inApp("never", types.TriggerNever),
	})

	assert.Empty(t, offered)
	assert.Empty(t, f.renderer.Presented())
	for _, m := range f.mgr.GetMessages() {
		assert.False(t, m.State.Processed, m.MessageID)
	}
}

func TestInAppManager_SkipMarksProcessedAndContinues(t *testing.T) {
	delegate := DelegateFunc(func(msg types.InAppMessage) DisplayDecision {
		if msg.MessageID == "a" {
			return DisplaySkip
		}
		return DisplayShow
	})
	f := newInAppFixture(WithDelegate(delegate))

	f.mgr.SetMessages(context.Background(), []types.InAppMessage{
		inApp("a", types.TriggerImmediate),
		inApp("b", types.TriggerImmediate),
		inApp("c", types.TriggerImmediate),
	})

	got := byID(f.mgr.GetMessages())
	assert.True(t, got["a"].State.Processed)
	assert.False(t, got["a"].State.Consumed)
	assert.True(t, got["b"].State.Processed)
	assert.False(t, got["c"].State.Processed)
	assert.Equal(t, []string{"b"}, f.renderer.Presented())
	assert.Equal(t, []Outcome{OutcomeSkipped, OutcomeShown, OutcomeConsumed}, f.metrics.Outcomes(ClassInApp))
}

func TestInAppManager_DelegateSeesEachCandidateOnce(t *testing.T) {
	calls := map[string]int{}
	delegate := DelegateFunc(func(msg types.InAppMessage) DisplayDecision {
		calls[msg.MessageID]++
		return DisplaySkip
	})
	f := newInAppFixture(WithDelegate(delegate))
	msgs := []types.InAppMessage{inApp("a", types.TriggerImmediate), inApp("b", types.TriggerImmediate)}

	f.mgr.SetMessages(context.Background(), msgs)
	f.mgr.SetMessages(context.Background(), msgs)
	f.mgr.Evaluate(context.Background())

	assert.Equal(t, map[string]int{"a": 1, "b": 1}, calls)
}

func TestInAppManager_ShowWithConsumeAndCallback(t *testing.T) {
	var globalSeen []types.ActionResult
	handler := ActionHandlerFunc(func(_ context.Context, msg types.MessageCore, res types.ActionResult) {
		assert.Equal(t, "m1", msg.MessageID)
		globalSeen = append(globalSeen, res)
	})
	f := newInAppFixture(WithAutoDisplay(false), WithActionHandlers(handler))
	ctx := context.Background()

	f.mgr.SetMessages(ctx, []types.InAppMessage{inApp("m1", types.TriggerNever)})
	require.Empty(t, f.renderer.Presented())

	var cbCalls []types.ActionResult
	shown := f.mgr.ShowWithOptions(ctx, inApp("m1", types.TriggerNever), true, func(res types.ActionResult) {
		cbCalls = append(cbCalls, res)
	})
	require.True(t, shown)

	state := byID(f.mgr.GetMessages())["m1"].State
	assert.True(t, state.Processed)
	assert.True(t, state.Consumed)
	assert.Empty(t, cbCalls, "callback waits for a user interaction")

	view := f.renderer.LastView("m1")
	require.NotNil(t, view)
	first := types.ParseActionURL("https://example.com/offer")
	view.Tap(first)
	view.Tap(types.ParseActionURL("action://second"))

	assert.Equal(t, []types.ActionResult{first}, cbCalls, "callback fires exactly once")
	assert.Len(t, globalSeen, 2, "global handlers see every interaction")
	assert.Equal(t, []string{"m1"}, f.notifier.Consumed())
}

func TestInAppManager_ShowConsumedMessageIsIdempotentForBackend(t *testing.T) {
	f := newInAppFixture(WithAutoDisplay(false))
	ctx := context.Background()
	msg := inApp("m1", types.TriggerImmediate)
	f.mgr.SetMessages(ctx, []types.InAppMessage{msg})

	require.True(t, f.mgr.Show(ctx, msg))

	called := 0
	require.True(t, f.mgr.ShowWithOptions(ctx, msg, true, func(types.ActionResult) { called++ }))
	f.renderer.LastView("m1").Tap(types.ActionResult{Type: types.ActionDismiss})

	assert.Equal(t, []string{"m1", "m1"}, f.renderer.Presented(), "second show still displays")
	assert.Equal(t, []string{"m1"}, f.notifier.Consumed(), "consumption signalled once")
	assert.Equal(t, 1, called)
}

func TestInAppManager_ShowWithoutConsume(t *testing.T) {
	f := newInAppFixture(WithAutoDisplay(false))
	ctx := context.Background()
	msg := inApp("m1", types.TriggerEvent)
	f.mgr.SetMessages(ctx, []types.InAppMessage{msg})

	require.True(t, f.mgr.ShowWithOptions(ctx, msg, false, nil))

	state := byID(f.mgr.GetMessages())["m1"].State
	assert.True(t, state.Processed)
	assert.False(t, state.Consumed)
	assert.Empty(t, f.notifier.Consumed())
}

func TestInAppManager_UnknownMessageIsNoOp(t *testing.T) {
	f := newInAppFixture()
	ctx := context.Background()

	assert.False(t, f.mgr.Show(ctx, inApp("ghost", types.TriggerImmediate)))
	f.mgr.Remove(ctx, inApp("ghost", types.TriggerImmediate))

	assert.Empty(t, f.renderer.Presented())
	assert.Empty(t, f.notifier.Consumed())
	assert.Empty(t, f.notifier.Removed())
}

func TestInAppManager_RemoveIsIdempotent(t *testing.T) {
	f := newInAppFixture(WithAutoDisplay(false))
	ctx := context.Background()
	msg := inApp("m1", types.TriggerImmediate)
	f.mgr.SetMessages(ctx, []types.InAppMessage{msg, inApp("m2", types.TriggerImmediate)})

	f.mgr.Remove(ctx, msg)
	first := f.mgr.GetMessages()
	f.mgr.Remove(ctx, msg)
	second := f.mgr.GetMessages()

	assert.Equal(t, first, second)
	require.Len(t, second, 1)
	assert.Equal(t, "m2", second[0].MessageID)
	assert.Equal(t, []string{"m1"}, f.notifier.Removed())

	assert.False(t, f.mgr.Show(ctx, msg), "removed messages cannot be shown")
}

func TestInAppManager_ConsumeFailureKeepsLocalState(t *testing.T) {
	f := newInAppFixture()
	f.notifier.err = errUnreachable

	f.mgr.SetMessages(context.Background(), []types.InAppMessage{inApp("m1", types.TriggerImmediate)})

	state := byID(f.mgr.GetMessages())["m1"].State
	assert.True(t, state.Consumed)
	assert.Equal(t, []string{"m1"}, f.notifier.Consumed())
}

func TestInAppManager_MissingRendererFallsThroughToNextCandidate(t *testing.T) {
	registry := NewRendererRegistry()
	html := &fakeRenderer{}
	registry.Register(html, types.ContentHTML)

	notifier := &recordingNotifier{}
	mgr := NewInAppManager(registry, notifier, &mockLogger{},
		WithClock(&mockClock{now: testNow}), WithDisplayInterval(0))

	alert := inApp("alert", types.TriggerImmediate)
	alert.Content = types.NewAlertContent("Hi", "there")

	mgr.SetMessages(context.Background(), []types.InAppMessage{alert, inApp("html", types.TriggerImmediate)})

	assert.Equal(t, []string{"html"}, html.Presented())
	got := byID(mgr.GetMessages())
	assert.True(t, got["alert"].State.Processed)
	assert.False(t, got["alert"].State.Consumed)
	assert.True(t, got["html"].State.Consumed)
	assert.Equal(t, []string{"html"}, notifier.Consumed())
}

func TestInAppManager_PresentErrorDoesNotConsume(t *testing.T) {
	f := newInAppFixture(WithAutoDisplay(false))
	f.renderer.presentErr = errUnreachable
	ctx := context.Background()
	msg := inApp("m1", types.TriggerImmediate)
	f.mgr.SetMessages(ctx, []types.InAppMessage{msg})

	assert.False(t, f.mgr.Show(ctx, msg))
	state := byID(f.mgr.GetMessages())["m1"].State
	assert.True(t, state.Processed)
	assert.False(t, state.Consumed)
	assert.False(t, f.mgr.IsShowing())
}

func TestInAppManager_OneMessageOnScreen(t *testing.T) {
	f := newInAppFixture()
	ctx := context.Background()

	f.mgr.SetMessages(ctx, []types.InAppMessage{
		inApp("a", types.TriggerImmediate),
		inApp("b", types.TriggerImmediate),
	})
	require.True(t, f.mgr.IsShowing())
	assert.False(t, f.mgr.Evaluate(ctx), "no pass while a message is on screen")

	f.renderer.LastView("a").Dismiss()
	f.renderer.LastView("a").Dismiss()
	assert.False(t, f.mgr.IsShowing())
	require.Len(t, f.sched.pending, 1, "one follow-up pass per dismissal")

	f.sched.RunPending()
	assert.Equal(t, []string{"a", "b"}, f.renderer.Presented())
}

func TestInAppManager_DisplayIntervalSpacesAutomaticShows(t *testing.T) {
	f := newInAppFixture(WithDisplayInterval(30 * time.Second))
	ctx := context.Background()

	f.mgr.SetMessages(ctx, []types.InAppMessage{
		inApp("a", types.TriggerImmediate),
		inApp("b", types.TriggerImmediate),
	})
	f.renderer.LastView("a").Dismiss()
	assert.Equal(t, []time.Duration{30 * time.Second}, f.sched.delays)

	f.clock.Advance(10 * time.Second)
	assert.False(t, f.mgr.Evaluate(ctx))

	f.clock.Advance(25 * time.Second)
	assert.True(t, f.mgr.Evaluate(ctx))
	assert.Equal(t, []string{"a", "b"}, f.renderer.Presented())
}

func TestInAppManager_RefreshKeepsStateAndOrder(t *testing.T) {
	f := newInAppFixture(WithAutoDisplay(false))
	ctx := context.Background()

	f.mgr.SetMessages(ctx, []types.InAppMessage{
		inApp("a", types.TriggerEvent),
		inApp("b", types.TriggerEvent),
		inApp("c", types.TriggerEvent),
	})
	require.True(t, f.mgr.ShowWithOptions(ctx, inApp("b", types.TriggerEvent), false, nil))

	f.mgr.SetMessages(ctx, []types.InAppMessage{
		inApp("d", types.TriggerEvent),
		inApp("c", types.TriggerEvent),
		inApp("b", types.TriggerEvent),
		inApp("d", types.TriggerEvent),
	})

	got := f.mgr.GetMessages()
	ids := make([]string, 0, len(got))
	for _, m := range got {
		ids = append(ids, m.MessageID)
	}
	assert.Equal(t, []string{"b", "c", "d"}, ids)
	assert.True(t, byID(got)["b"].State.Processed, "state survives refresh")
	assert.False(t, byID(got)["d"].State.Processed)
}

func TestInAppManager_RefreshSeedsPersistedState(t *testing.T) {
	f := newInAppFixture()
	seeded := inApp("a", types.TriggerImmediate)
	seeded.State.Processed = true

	f.mgr.SetMessages(context.Background(), []types.InAppMessage{seeded, inApp("b", types.TriggerImmediate)})

	assert.Equal(t, []string{"b"}, f.renderer.Presented())
}

func TestInAppManager_ExpiredMessagesAreDropped(t *testing.T) {
	f := newInAppFixture()
	past := testNow.Add(-time.Minute)
	future := testNow.Add(time.Hour)

	expired := inApp("old", types.TriggerImmediate)
	expired.ExpiresAt = &past
	later := inApp("new", types.TriggerImmediate)
	later.ExpiresAt = &future

	f.mgr.SetMessages(context.Background(), []types.InAppMessage{expired, later})

	assert.Equal(t, []string{"new"}, f.renderer.Presented())
	got := f.mgr.GetMessages()
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].MessageID)
	assert.Empty(t, f.notifier.Removed(), "expiry is local, not a removal signal")

	f.clock.Advance(2 * time.Hour)
	assert.Empty(t, f.mgr.GetMessages())
}

func TestInAppManager_PriorityOrdersCandidates(t *testing.T) {
	var offered []string
	delegate := DelegateFunc(func(msg types.InAppMessage) DisplayDecision {
		offered = append(offered, msg.MessageID)
		return DisplaySkip
	})
	f := newInAppFixture(WithDelegate(delegate))

	low := inApp("low", types.TriggerImmediate)
	low.Priority = 100
	high := inApp("high", types.TriggerImmediate)
	high.Priority = 300
	early := inApp("early", types.TriggerImmediate)
	early.Priority = 100
	early.ReceivedAt = testNow.Add(-time.Hour)
	low.ReceivedAt = testNow

	f.mgr.SetMessages(context.Background(), []types.InAppMessage{low, early, high})

	assert.Equal(t, []string{"high", "early", "low"}, offered)
}

func TestInAppManager_MissingArrivalTimeSortsLast(t *testing.T) {
	var offered []string
	delegate := DelegateFunc(func(msg types.InAppMessage) DisplayDecision {
		offered = append(offered, msg.MessageID)
		return DisplaySkip
	})
	f := newInAppFixture(WithDelegate(delegate))

	undatedFirst := inApp("undated-1", types.TriggerImmediate)
	late := inApp("late", types.TriggerImmediate)
	late.ReceivedAt = testNow
	undatedSecond := inApp("undated-2", types.TriggerImmediate)
	early := inApp("early", types.TriggerImmediate)
	early.ReceivedAt = testNow.Add(-time.Hour)

	f.mgr.SetMessages(context.Background(), []types.InAppMessage{undatedFirst, late, undatedSecond, early})

	assert.Equal(t, []string{"early", "late", "undated-1", "undated-2"}, offered)
}

func TestInAppManager_AutoShowKeepsInboxSavedMessageQueued(t *testing.T) {
	f := newInAppFixture()
	ctx := context.Background()

	saved := inApp("saved", types.TriggerImmediate)
	saved.InboxMetadata = &types.InboxMetadata{Title: "Saved"}

	f.mgr.SetMessages(ctx, []types.InAppMessage{saved})
	require.Equal(t, []string{"saved"}, f.renderer.Presented())

	got := byID(f.mgr.GetMessages())
	assert.True(t, got["saved"].State.Processed)
	assert.False(t, got["saved"].State.Consumed)
	assert.Empty(t, f.notifier.Consumed())
	assert.NotContains(t, f.metrics.Outcomes(ClassInApp), OutcomeConsumed)

	f.renderer.LastView("saved").Dismiss()
	assert.Equal(t, []Outcome{OutcomeShown, OutcomeDismissed}, f.metrics.Outcomes(ClassInApp))
	f.mgr.SetMessages(ctx, []types.InAppMessage{saved})
	assert.Equal(t, []string{"saved"}, f.renderer.Presented(), "a processed message is not shown again")
	assert.Empty(t, f.notifier.Consumed())
}

func TestInAppManager_PauseAndResume(t *testing.T) {
	f := newInAppFixture(WithAutoDisplay(false))
	ctx := context.Background()

	f.mgr.SetMessages(ctx, []types.InAppMessage{inApp("a", types.TriggerImmediate)})
	assert.Empty(t, f.renderer.Presented())

	f.mgr.SetAutoDisplayPaused(ctx, false)
	assert.Equal(t, []string{"a"}, f.renderer.Presented())
}

func TestInAppManager_SnapshotsAreCopies(t *testing.T) {
	f := newInAppFixture(WithAutoDisplay(false))
	f.mgr.SetMessages(context.Background(), []types.InAppMessage{inApp("a", types.TriggerImmediate)})

	snap := f.mgr.GetMessages()
	snap[0].CustomPayload["id"] = "mutated"
	snap[0].State.Processed = true

	again := f.mgr.GetMessages()
	assert.Equal(t, "a", again[0].CustomPayload["id"])
	assert.False(t, again[0].State.Processed)
}

func TestInAppManager_ConcurrentRefreshesShowAtMostOne(t *testing.T) {
	f := newInAppFixture()
	ctx := context.Background()
	msgs := []types.InAppMessage{
		inApp("a", types.TriggerImmediate),
		inApp("b", types.TriggerImmediate),
		inApp("c", types.TriggerImmediate),
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.mgr.SetMessages(ctx, msgs)
		}()
		go func() {
			defer wg.Done()
			f.mgr.Evaluate(ctx)
		}()
	}
	wg.Wait()

	assert.Len(t, f.renderer.Presented(), 1)
	assert.Len(t, f.notifier.Consumed(), 1)
}

func TestInAppManager_ConcurrentShowAndRemove(t *testing.T) {
	f := newInAppFixture(WithAutoDisplay(false))
	ctx := context.Background()
	msg := inApp("m1", types.TriggerImmediate)
	f.mgr.SetMessages(ctx, []types.InAppMessage{msg})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.mgr.Show(ctx, msg)
		}()
		go func() {
			defer wg.Done()
			f.mgr.Remove(ctx, msg)
		}()
	}
	wg.Wait()

	assert.Empty(t, f.mgr.GetMessages())
	assert.LessOrEqual(t, len(f.notifier.Consumed()), 1)
	assert.Equal(t, []string{"m1"}, f.notifier.Removed())
}
