package messaging

import (
	"context"
	"sync"

	"inappkit/internal/types"
)

// interactionHandler returns the OnAction hook for one presentation. Global
// handlers see every interaction; cb fires once, for the first one, after the
// global handlers have run.
//
// The hook outlives the Show call, so it runs on a context detached from the
// caller's cancellation.
func interactionHandler(ctx context.Context, msg types.MessageCore, handlers []ActionHandler, cb ActionCallback) func(types.ActionResult) {
	actionCtx := context.WithoutCancel(ctx)
	var once sync.Once
	return func(result types.ActionResult) {
		for _, h := range handlers {
			h.HandleAction(actionCtx, msg, result)
		}
		if cb == nil {
			return
		}
		once.Do(func() { cb(result) })
	}
}

// onceFunc wraps fn so only its first call has an effect.
func onceFunc(fn func()) func() {
	var once sync.Once
	return func() { once.Do(fn) }
}
