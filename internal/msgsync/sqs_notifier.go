package msgsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"inappkit/internal/messaging"
	"inappkit/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SignalEvent names a lifecycle signal sent to the backend.
type SignalEvent string

const (
	SignalConsumed SignalEvent = "consumed"
	SignalRemoved  SignalEvent = "removed"
)

// Signal is the JSON envelope published for each lifecycle signal. EventID
// lets the backend drop redelivered duplicates.
type Signal struct {
	EventID    string      `json:"event_id"`
	Event      SignalEvent `json:"event"`
	MessageID  string      `json:"message_id"`
	DeviceID   string      `json:"device_id,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Compile-time assertion that SQSNotifier implements messaging.Notifier.
var _ messaging.Notifier = (*SQSNotifier)(nil)

// SQSNotifier publishes consume and remove signals to the backend's sync
// queue. Sends go through a circuit breaker so a dead queue fails fast
// instead of stalling every display.
type SQSNotifier struct {
	client   SQSSender
	queueURL string
	deviceID string
	breaker  *gobreaker.CircuitBreaker[*sqs.SendMessageOutput]
	clock    types.Clock
	logger   types.Logger
}

// NewSQSNotifier creates an SQSNotifier with the default breaker settings.
func NewSQSNotifier(client SQSSender, queueURL, deviceID string, clock types.Clock, logger types.Logger) *SQSNotifier {
	cb := gobreaker.NewCircuitBreaker[*sqs.SendMessageOutput](gobreaker.Settings{
		Name:        "sqs-sync-signals",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return NewSQSNotifierWithBreaker(client, queueURL, deviceID, cb, clock, logger)
}

// NewSQSNotifierWithBreaker creates an SQSNotifier with a caller-provided
// circuit breaker.
func NewSQSNotifierWithBreaker(client SQSSender, queueURL, deviceID string, breaker *gobreaker.CircuitBreaker[*sqs.SendMessageOutput], clock types.Clock, logger types.Logger) *SQSNotifier {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &SQSNotifier{
		client:   client,
		queueURL: queueURL,
		deviceID: deviceID,
		breaker:  breaker,
		clock:    clock,
		logger:   logger,
	}
}

// NotifyConsumed publishes a consumed signal for messageID.
func (n *SQSNotifier) NotifyConsumed(ctx context.Context, messageID string) error {
	return n.publish(ctx, SignalConsumed, messageID)
}

// NotifyRemoved publishes a removed signal for messageID.
func (n *SQSNotifier) NotifyRemoved(ctx context.Context, messageID string) error {
	return n.publish(ctx, SignalRemoved, messageID)
}

func (n *SQSNotifier) publish(ctx context.Context, event SignalEvent, messageID string) error {
	sig := Signal{
		EventID:    uuid.NewString(),
		Event:      event,
		MessageID:  messageID,
		DeviceID:   n.deviceID,
		OccurredAt: n.clock.Now().UTC(),
	}
	body, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("sqs notifier: failed to marshal signal: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"event": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(event)),
			},
		},
	}

	_, err = n.breaker.Execute(func() (*sqs.SendMessageOutput, error) {
		return n.client.SendMessage(ctx, input)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return types.NewAppError(types.ErrCodeUpstreamUnavailable,
				"sync signal queue circuit open", err)
		}
		return types.NewAppError(types.ErrCodeUpstreamSync,
			fmt.Sprintf("failed to send %s signal to %s", event, n.queueURL), err)
	}

	n.logger.Info("sync signal published",
		"event", string(event),
		"event_id", sig.EventID,
		"message_id", messageID,
	)
	return nil
}
