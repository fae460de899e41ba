// Package digest drains the notification dead-letter queue and emails a
// failure summary to the ops recipient. Messages land on the DLQ only after
// redelivery was exhausted, so each one represents a send the pipeline gave
// up on; the digest keeps those visible without paging on every single
// failure.
package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"leasenotify/internal/external"
	"leasenotify/internal/types"
)

// receiveBatchSize is the SQS maximum per ReceiveMessage call.
const receiveBatchSize = 10

// SQSClient abstracts the SQS operations the summarizer needs.
type SQSClient interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(ctx context.Context, params *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
}

// Summary aggregates one drain run over the dead-letter queue.
type Summary struct {
	Total       int
	ByType      map[string]int
	Unparseable int
	Drained     int
}

// SummarizerConfig holds the dependencies for creating a Summarizer.
type SummarizerConfig struct {
	Client       SQSClient
	Sender       external.EmailSender
	QueueURL     string
	TemplateID   string
	OpsRecipient string
	MaxMessages  int
	Logger       types.Logger
	Clock        types.Clock
}

// Summarizer drains the DLQ and sends the digest email. Draining deletes the
// messages it reads: the digest is the terminal record of those failures.
type Summarizer struct {
	client       SQSClient
	sender       external.EmailSender
	queueURL     string
	templateID   string
	opsRecipient string
	maxMessages  int
	logger       types.Logger
	clock        types.Clock
}

// NewSummarizer creates a Summarizer. MaxMessages defaults to 100 when unset.
func NewSummarizer(cfg SummarizerConfig) *Summarizer {
	maxMessages := cfg.MaxMessages
	if maxMessages <= 0 {
		maxMessages = 100
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Summarizer{
		client:       cfg.Client,
		sender:       cfg.Sender,
		queueURL:     cfg.QueueURL,
		templateID:   cfg.TemplateID,
		opsRecipient: cfg.OpsRecipient,
		maxMessages:  maxMessages,
		logger:       cfg.Logger,
		clock:        clock,
	}
}

// Run drains up to MaxMessages from the DLQ, summarizes them by event type,
// and emails the digest. An empty queue sends nothing and returns an empty
// summary.
func (s *Summarizer) Run(ctx context.Context) (*Summary, error) {
	summary, err := s.drain(ctx)
	if err != nil {
		return nil, err
	}

	if summary.Total == 0 {
		s.logger.Info("dead-letter queue empty, no digest sent")
		return summary, nil
	}

	if err := s.sendDigest(ctx, summary); err != nil {
		return summary, err
	}

	s.logger.Info("dead-letter digest sent",
		"total_failures", summary.Total,
		"drained", summary.Drained,
		"unparseable", summary.Unparseable,
	)
	return summary, nil
}

// drain reads and deletes messages until the queue is empty or the run cap
// is reached.
func (s *Summarizer) drain(ctx context.Context) (*Summary, error) {
	summary := &Summary{ByType: make(map[string]int)}

	for summary.Total < s.maxMessages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batchSize := s.maxMessages - summary.Total
		if batchSize > receiveBatchSize {
			batchSize = receiveBatchSize
		}

		out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(s.queueURL),
			MaxNumberOfMessages: int32(batchSize),
			WaitTimeSeconds:     1,
		})
		if err != nil {
			return nil, fmt.Errorf("receive from dead-letter queue: %w", err)
		}
		if len(out.Messages) == 0 {
			break
		}

		for _, msg := range out.Messages {
			summary.Total++
			summary.ByType[s.classify(msg)]++
		}

		deleted, err := s.deleteBatch(ctx, out.Messages)
		if err != nil {
			return nil, err
		}
		summary.Drained += deleted
	}

	return summary, nil
}

// classify extracts the event type from a dead-lettered envelope. Bodies that
// no longer parse are grouped under "unparseable".
func (s *Summarizer) classify(msg sqsTypes.Message) string {
	if msg.Body == nil {
		return "unparseable"
	}
	var envelope types.NotificationEvent
	if err := json.Unmarshal([]byte(*msg.Body), &envelope); err != nil || envelope.DetailType == "" {
		return "unparseable"
	}
	return envelope.DetailType
}

// deleteBatch removes drained messages from the queue. Individual delete
// failures are logged and skipped; the message will reappear in the next
// digest run.
func (s *Summarizer) deleteBatch(ctx context.Context, messages []sqsTypes.Message) (int, error) {
	entries := make([]sqsTypes.DeleteMessageBatchRequestEntry, 0, len(messages))
	for i, msg := range messages {
		entries = append(entries, sqsTypes.DeleteMessageBatchRequestEntry{
			Id:            aws.String(fmt.Sprintf("msg-%d", i)),
			ReceiptHandle: msg.ReceiptHandle,
		})
	}

	out, err := s.client.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
		QueueUrl: aws.String(s.queueURL),
		Entries:  entries,
	})
	if err != nil {
		return 0, fmt.Errorf("delete from dead-letter queue: %w", err)
	}

	for _, failed := range out.Failed {
		s.logger.Warn("failed to delete dead-letter message",
			"entry_id", aws.ToString(failed.Id),
			"code", aws.ToString(failed.Code),
		)
	}

	return len(out.Successful), nil
}

// sendDigest emails the summary to the ops recipient.
func (s *Summarizer) sendDigest(ctx context.Context, summary *Summary) error {
	now := s.clock.Now()
	reference := fmt.Sprintf("dlq-digest-%s", now.Format("2006-01-02"))

	_, err := s.sender.SendTemplatedEmail(ctx, types.SendInput{
		TemplateID: s.templateID,
		Recipient:  s.opsRecipient,
		Personalisation: map[string]string{
			"reportDate":    now.Format("02/01/2006"),
			"totalFailures": fmt.Sprintf("%d", summary.Total),
			"breakdown":     formatBreakdown(summary),
		},
		Reference: reference,
	})
	if err != nil {
		return fmt.Errorf("send digest email: %w", err)
	}
	return nil
}

// formatBreakdown renders the per-type counts as one line per type, ordered
// by count descending then name, the way the digest template lists them.
func formatBreakdown(summary *Summary) string {
	type row struct {
		name  string
		count int
	}

	rows := make([]row, 0, len(summary.ByType))
	for name, count := range summary.ByType {
		rows = append(rows, row{name: name, count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].name < rows[j].name
	})

	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "%s: %d\n", r.name, r.count)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
