// Package dispatch sequences validation, classification, enrichment, message
// building, and the two downstream sends for each event invocation. The email
// branch and the topic-forward branch are decoupled on purpose: chat-ops
// visibility never depends on enrichment or the email provider.
package dispatch

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snsTypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"leasenotify/internal/types"
)

// SNSPublisher abstracts the SNS Publish operation for testability.
// Production code uses the *sns.Client from aws-sdk-go-v2.
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Forwarder is the raw-event path to the chat-ops topic.
type Forwarder interface {
	Forward(ctx context.Context, ve *types.ValidatedEvent, category types.EventCategory) error
}

// TopicForwarder publishes the validated event, unmodified and un-enriched,
// to the alerting topic. Delivery semantics beyond Publish belong to the
// downstream subscriber.
type TopicForwarder struct {
	client   SNSPublisher
	topicARN string
	logger   types.Logger
}

// NewTopicForwarder creates a TopicForwarder targeting the given topic.
func NewTopicForwarder(client SNSPublisher, topicARN string, logger types.Logger) *TopicForwarder {
	return &TopicForwarder{
		client:   client,
		topicARN: topicARN,
		logger:   logger,
	}
}

// Forward publishes the raw envelope with routing attributes. Ops-category
// events carry a mention attribute so the chat subscriber can alert a human.
func (f *TopicForwarder) Forward(ctx context.Context, ve *types.ValidatedEvent, category types.EventCategory) error {
	attrs := map[string]snsTypes.MessageAttributeValue{
		"eventType": {
			DataType:    aws.String("String"),
			StringValue: aws.String(string(ve.Detail.Type())),
		},
		"category": {
			DataType:    aws.String("String"),
			StringValue: aws.String(string(category)),
		},
		"correlationId": {
			DataType:    aws.String("String"),
			StringValue: aws.String(ve.CorrelationID),
		},
	}
	if category == types.CategoryOps {
		attrs["mention"] = snsTypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String("true"),
		}
	}

	_, err := f.client.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(f.topicARN),
		Message:           aws.String(string(ve.RawEnvelope)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("dispatch: failed to publish event to %s: %w", f.topicARN, err)
	}

	f.logger.Info("event forwarded to alerting topic",
		"correlation_id", ve.CorrelationID,
		"event_type", string(ve.Detail.Type()),
		"category", string(category),
	)

	return nil
}

var _ Forwarder = (*TopicForwarder)(nil)
