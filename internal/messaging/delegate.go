package messaging

import "inappkit/internal/types"

// Compile-time assertion that DefaultDelegate implements Delegate.
var _ Delegate = DefaultDelegate{}

// DefaultDelegate shows every candidate it is offered. Combined with the
// pass rule that stops at the first show, exactly one message is presented
// per pass and the rest stay unprocessed for the next one.
type DefaultDelegate struct{}

// OnNew always returns DisplayShow.
func (DefaultDelegate) OnNew(types.InAppMessage) DisplayDecision {
	return DisplayShow
}
