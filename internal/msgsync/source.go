// Package msgsync keeps the message managers in step with the backend: it
// pulls raw payloads from one or more sources, decodes them, hands the lists
// to the in-app and inbox managers, and carries consume and remove signals
// back.
package msgsync

import (
	"context"

	"inappkit/internal/types"
)

// RawPayload is one undecoded message as fetched from a source.
type RawPayload struct {
	// Origin names the source, for logging.
	Origin string
	Data   []byte
}

// Source fetches the current message payloads for this device.
type Source interface {
	Fetch(ctx context.Context) ([]RawPayload, error)
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc func(ctx context.Context) ([]RawPayload, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context) ([]RawPayload, error) { return f(ctx) }

// InAppSink receives refreshed in-app lists. *messaging.InAppManager
// satisfies it.
type InAppSink interface {
	SetMessages(ctx context.Context, msgs []types.InAppMessage)
}

// InboxSink receives refreshed inbox lists. *messaging.InboxManager
// satisfies it.
type InboxSink interface {
	SetMessages(ctx context.Context, msgs []types.InboxMessage)
}
