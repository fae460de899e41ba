package dispatch

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"leasenotify/internal/types"
)

// Metric and dimension names emitted by the pipeline.
const (
	metricDispatchOutcome     = "DispatchOutcome"
	metricSendLatency         = "EmailSendLatency"
	metricEnrichmentDegraded  = "EnrichmentDegraded"
	dimCategory               = "Category"
	dimOutcome                = "Outcome"
)

// DispatchMetrics abstracts telemetry for the pipeline.
type DispatchMetrics interface {
	RecordDispatch(ctx context.Context, category types.EventCategory, outcome types.DispatchOutcome)
	RecordSendLatency(ctx context.Context, duration time.Duration)
	RecordEnrichmentDegraded(ctx context.Context)
}

// CloudWatchClient abstracts the PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchDispatchMetrics implements DispatchMetrics against CloudWatch.
// Metric emission failures are logged and swallowed; telemetry must never
// change a dispatch outcome.
type CloudWatchDispatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewCloudWatchDispatchMetrics creates metrics publishing to the namespace.
func NewCloudWatchDispatchMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchDispatchMetrics {
	return &CloudWatchDispatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordDispatch emits a DispatchOutcome count with Category and Outcome
// dimensions.
func (m *CloudWatchDispatchMetrics) RecordDispatch(ctx context.Context, category types.EventCategory, outcome types.DispatchOutcome) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(metricDispatchOutcome),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(dimCategory), Value: aws.String(string(category))},
			{Name: aws.String(dimOutcome), Value: aws.String(string(outcome))},
		},
	})
}

// RecordSendLatency emits the email send duration in milliseconds.
func (m *CloudWatchDispatchMetrics) RecordSendLatency(ctx context.Context, duration time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(metricSendLatency),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
	})
}

// RecordEnrichmentDegraded counts fetches that fell back to substitution.
func (m *CloudWatchDispatchMetrics) RecordEnrichmentDegraded(ctx context.Context) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(metricEnrichmentDegraded),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
	})
}

func (m *CloudWatchDispatchMetrics) put(ctx context.Context, datum cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record metric",
			"metric", aws.ToString(datum.MetricName),
			"error", err.Error(),
		)
	}
}

// NoopDispatchMetrics discards all metrics. Used in local mode and tests.
type NoopDispatchMetrics struct{}

func (NoopDispatchMetrics) RecordDispatch(context.Context, types.EventCategory, types.DispatchOutcome) {
}
func (NoopDispatchMetrics) RecordSendLatency(context.Context, time.Duration) {}
func (NoopDispatchMetrics) RecordEnrichmentDegraded(context.Context) {}

var (
	_ DispatchMetrics = (*CloudWatchDispatchMetrics)(nil)
	_ DispatchMetrics = NoopDispatchMetrics{}
)
