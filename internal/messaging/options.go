package messaging

import (
	"time"

	"inappkit/internal/types"
)

// DefaultDisplayInterval is the minimum gap between an in-app dismissal and
// the next automatic show.
const DefaultDisplayInterval = 30 * time.Second

// managerOptions holds the optional collaborators shared by both managers.
// Fields that only matter to the in-app manager are ignored by the inbox.
type managerOptions struct {
	delegate        Delegate
	clock           types.Clock
	metrics         DisplayMetrics
	handlers        []ActionHandler
	displayInterval time.Duration
	autoDisplay     bool
	schedule        func(d time.Duration, fn func())
}

func defaultOptions() managerOptions {
	return managerOptions{
		delegate:        DefaultDelegate{},
		clock:           types.RealClock{},
		metrics:         NopMetrics{},
		displayInterval: DefaultDisplayInterval,
		autoDisplay:     true,
		schedule: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
}

// Option configures a manager.
type Option func(*managerOptions)

// WithDelegate sets the automatic display policy. Nil keeps DefaultDelegate.
func WithDelegate(d Delegate) Option {
	return func(o *managerOptions) {
		if d != nil {
			o.delegate = d
		}
	}
}

// WithClock overrides the time source used for expiry and display spacing.
func WithClock(c types.Clock) Option {
	return func(o *managerOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithMetrics sets the telemetry sink.
func WithMetrics(m DisplayMetrics) Option {
	return func(o *managerOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithActionHandlers registers global action handlers.
func WithActionHandlers(handlers ...ActionHandler) Option {
	return func(o *managerOptions) {
		o.handlers = append(o.handlers, handlers...)
	}
}

// WithDisplayInterval sets the minimum gap between a dismissal and the next
// automatic show. Zero disables spacing.
func WithDisplayInterval(d time.Duration) Option {
	return func(o *managerOptions) {
		if d >= 0 {
			o.displayInterval = d
		}
	}
}

// WithAutoDisplay enables or disables automatic display passes at startup.
func WithAutoDisplay(enabled bool) Option {
	return func(o *managerOptions) {
		o.autoDisplay = enabled
	}
}

// WithScheduler overrides how follow-up passes are scheduled after a
// dismissal. Tests use it to run them synchronously.
func WithScheduler(fn func(d time.Duration, run func())) Option {
	return func(o *managerOptions) {
		if fn != nil {
			o.schedule = fn
		}
	}
}
