package msgsync

import (
	"context"
	"errors"

	"inappkit/internal/messaging"
)

// Compile-time assertion that MultiNotifier implements messaging.Notifier.
var _ messaging.Notifier = MultiNotifier(nil)

// MultiNotifier fans a signal out to every notifier in order. All of them
// are called even if one fails; the errors are joined.
type MultiNotifier []messaging.Notifier

// NotifyConsumed forwards to every notifier.
func (m MultiNotifier) NotifyConsumed(ctx context.Context, messageID string) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyConsumed(ctx, messageID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifyRemoved forwards to every notifier.
func (m MultiNotifier) NotifyRemoved(ctx context.Context, messageID string) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyRemoved(ctx, messageID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
