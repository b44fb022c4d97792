// Package messaging holds the client-side lifecycle of in-app and inbox
// messages: the automatic display policy, the managers that own each message
// list, and the narrow interfaces through which the rendering surface and the
// backend sync layer are reached.
//
// Lifecycle flags (processed, consumed, read) live in a per-message state
// record owned by the manager, never on shared message structs. Callers only
// ever receive copies.
package messaging

import (
	"context"
	"time"

	"inappkit/internal/types"
)

// DisplayDecision is the outcome of a Delegate evaluation.
type DisplayDecision string

const (
	// DisplayShow presents the candidate now and ends the pass.
	DisplayShow DisplayDecision = "show"
	// DisplaySkip marks the candidate processed without showing it.
	DisplaySkip DisplayDecision = "skip"
)

// Delegate decides whether a newly available in-app message is shown. It is
// called once per unprocessed immediate-trigger candidate, in display order,
// until it returns DisplayShow. Implementations must not block.
type Delegate interface {
	OnNew(msg types.InAppMessage) DisplayDecision
}

// DelegateFunc adapts a plain function to the Delegate interface.
type DelegateFunc func(msg types.InAppMessage) DisplayDecision

// OnNew calls f(msg).
func (f DelegateFunc) OnNew(msg types.InAppMessage) DisplayDecision { return f(msg) }

// Notifier receives lifecycle signals destined for the backend queue. Errors
// are logged by the managers; local state is never rolled back.
type Notifier interface {
	// NotifyConsumed marks the message for removal from the delivery queue.
	NotifyConsumed(ctx context.Context, messageID string) error
	// NotifyRemoved reports that the user or app removed the message.
	NotifyRemoved(ctx context.Context, messageID string) error
}

// PresentationEvents are the hooks a View calls back into while it is on
// screen. Both are safe to call more than once; only the first OnDismiss
// counts.
type PresentationEvents struct {
	OnAction  func(result types.ActionResult)
	OnDismiss func()
}

// View is a presentable surface built for one message.
type View interface {
	// Present puts the view on screen and returns without waiting for the
	// user. A non-nil error means nothing was displayed.
	Present(ctx context.Context, events PresentationEvents) error
}

// Renderer builds a View for a message, or reports false when it cannot
// render the message's content kind.
type Renderer interface {
	CreateView(msg types.MessageCore) (View, bool)
}

// ActionCallback receives the first user interaction with a message that was
// shown through an explicit call.
type ActionCallback func(result types.ActionResult)

// ActionHandler is a global handler invoked for every interaction with any
// displayed message, before the per-call callback.
type ActionHandler interface {
	HandleAction(ctx context.Context, msg types.MessageCore, result types.ActionResult)
}

// ActionHandlerFunc adapts a plain function to the ActionHandler interface.
type ActionHandlerFunc func(ctx context.Context, msg types.MessageCore, result types.ActionResult)

// HandleAction calls f.
func (f ActionHandlerFunc) HandleAction(ctx context.Context, msg types.MessageCore, result types.ActionResult) {
	f(ctx, msg, result)
}

// MessageClass distinguishes the two message lists in metrics and logs.
type MessageClass string

const (
	ClassInApp MessageClass = "inapp"
	ClassInbox MessageClass = "inbox"
)

// Outcome categorizes a lifecycle event for metrics reporting.
type Outcome string

const (
	OutcomeShown     Outcome = "shown"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
	OutcomeDismissed Outcome = "dismissed"
	OutcomeConsumed  Outcome = "consumed"
	OutcomeRemoved   Outcome = "removed"
	OutcomeRead      Outcome = "read"
)

// DisplayMetrics abstracts the telemetry sink for lifecycle outcomes.
type DisplayMetrics interface {
	Record(ctx context.Context, class MessageClass, outcome Outcome)
	RecordRefresh(ctx context.Context, messages int, duration time.Duration)
}

// NopMetrics discards all metrics.
type NopMetrics struct{}

func (NopMetrics) Record(context.Context, MessageClass, Outcome) {}
func (NopMetrics) RecordRefresh(context.Context, int, time.Duration) {}
