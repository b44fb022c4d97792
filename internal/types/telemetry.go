package types

// CloudWatch metric names and dimensions. Components use these constants
// instead of literals.
const (
	MetricDisplayDecision = "DisplayDecision"
	MetricLifecycleSignal = "LifecycleSignal"
	MetricSyncRefresh     = "SyncRefresh"

	DimMessageClass = "MessageClass"
	DimOutcome      = "Outcome"

	MetricNamespace = "InAppKit"
)
