package messaging

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"inappkit/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Compile-time assertion that CloudWatchDisplayMetrics implements DisplayMetrics.
var _ DisplayMetrics = (*CloudWatchDisplayMetrics)(nil)

// CloudWatchDisplayMetrics emits lifecycle outcomes to CloudWatch.
//
// Metrics emitted:
//   - DisplayDecision: Dims {MessageClass, Outcome} for shown/skipped/failed/dismissed
//   - LifecycleSignal: Dims {MessageClass, Outcome} for consumed/removed/read
//   - SyncRefresh: message count per refresh, plus SyncRefreshLatency
type CloudWatchDisplayMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewCloudWatchDisplayMetrics creates a CloudWatchDisplayMetrics publishing
// to namespace. An empty namespace uses types.MetricNamespace.
func NewCloudWatchDisplayMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchDisplayMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatchDisplayMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// metricFor picks the metric name an outcome is reported under.
func metricFor(outcome Outcome) string {
	switch outcome {
	case OutcomeConsumed, OutcomeRemoved, OutcomeRead:
		return types.MetricLifecycleSignal
	default:
		return types.MetricDisplayDecision
	}
}

// Record emits a count of 1 for the outcome.
func (m *CloudWatchDisplayMetrics) Record(ctx context.Context, class MessageClass, outcome Outcome) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(metricFor(outcome)),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{
						Name:  aws.String(types.DimMessageClass),
						Value: aws.String(string(class)),
					},
					{
						Name:  aws.String(types.DimOutcome),
						Value: aws.String(string(outcome)),
					},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record lifecycle metric",
			"error", err.Error(),
			"message_class", string(class),
			"outcome", string(outcome),
		)
	}
}

// RecordRefresh emits the size of a refreshed list and how long the refresh
// took, in milliseconds.
func (m *CloudWatchDisplayMetrics) RecordRefresh(ctx context.Context, messages int, duration time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricSyncRefresh),
				Value:      aws.Float64(float64(messages)),
				Unit:       cwtypes.StandardUnitCount,
			},
			{
				MetricName: aws.String(types.MetricSyncRefresh + "Latency"),
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record refresh metric",
			"error", err.Error(),
			"messages", messages,
			"duration_ms", duration.Milliseconds(),
		)
	}
}
