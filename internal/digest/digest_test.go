package digest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leasenotify/internal/types"
)

// testLogger implements types.Logger for test use.
type testLogger struct {
	warns []string
}

func (l *testLogger) Info(msg string, args ...any)  {}
func (l *testLogger) Warn(msg string, args ...any)  { l.warns = append(l.warns, msg) }
func (l *testLogger) Error(msg string, args ...any) {}
func (l *testLogger) With(args ...any) types.Logger { return l }

// fixedClock implements types.Clock.
type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// mockSQS implements SQSClient backed by an in-memory message list.
type mockSQS struct {
	messages   []sqsTypes.Message
	receiveErr error
	deleteErr  error
	deleted    int
}

func (m *mockSQS) ReceiveMessage(_ context.Context, params *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	if m.receiveErr != nil {
		return nil, m.receiveErr
	}
	n := int(params.MaxNumberOfMessages)
	if n > len(m.messages) {
		n = len(m.messages)
	}
	out := &sqs.ReceiveMessageOutput{Messages: m.messages[:n]}
	m.messages = m.messages[n:]
	return out, nil
}

func (m *mockSQS) DeleteMessageBatch(_ context.Context, params *sqs.DeleteMessageBatchInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error) {
	if m.deleteErr != nil {
		return nil, m.deleteErr
	}
	out := &sqs.DeleteMessageBatchOutput{}
	for _, entry := range params.Entries {
		out.Successful = append(out.Successful, sqsTypes.DeleteMessageBatchResultEntry{Id: entry.Id})
		m.deleted++
	}
	return out, nil
}

// mockSender implements external.EmailSender.
type mockSender struct {
	err   error
	calls []types.SendInput
}

func (m *mockSender) SendTemplatedEmail(_ context.Context, input types.SendInput) (string, error) {
	m.calls = append(m.calls, input)
	if m.err != nil {
		return "", m.err
	}
	return "notif-1", nil
}

func dlqMessage(i int, detailType string) sqsTypes.Message {
	body := fmt.Sprintf(`{"source":"isb-leases","detail-type":"%s","detail":{}}`, detailType)
	return sqsTypes.Message{
		MessageId:     aws.String(fmt.Sprintf("msg-%d", i)),
		ReceiptHandle: aws.String(fmt.Sprintf("rh-%d", i)),
		Body:          aws.String(body),
	}
}

func newTestSummarizer(client SQSClient, sender *mockSender, maxMessages int) *Summarizer {
	return NewSummarizer(SummarizerConfig{
		Client:       client,
		Sender:       sender,
		QueueURL:     "https://sqs.eu-west-2.amazonaws.com/123456789012/notify-dlq",
		TemplateID:   "tmpl-dlq-digest",
		OpsRecipient: "ops@example.gov.uk",
		MaxMessages:  maxMessages,
		Logger:       &testLogger{},
		Clock:        fixedClock{now: time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)},
	})
}

// --- Run Tests ---

func TestRunEmptyQueueSendsNothing(t *testing.T) {
	sender := &mockSender{}
	s := newTestSummarizer(&mockSQS{}, sender, 100)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.Empty(t, sender.calls, "empty queue must not trigger a digest email")
}

func TestRunDrainsAndSendsDigest(t *testing.T) {
	client := &mockSQS{}
	for i := 0; i < 5; i++ {
		client.messages = append(client.messages, dlqMessage(i, "LeaseApproved"))
	}
	for i := 5; i < 8; i++ {
		client.messages = append(client.messages, dlqMessage(i, "LeaseCostsGenerated"))
	}
	client.messages = append(client.messages, sqsTypes.Message{
		MessageId:     aws.String("msg-rot"),
		ReceiptHandle: aws.String("rh-rot"),
		Body:          aws.String("not json at all"),
	})

	sender := &mockSender{}
	s := newTestSummarizer(client, sender, 100)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 9, summary.Total)
	assert.Equal(t, 5, summary.ByType["LeaseApproved"])
	assert.Equal(t, 3, summary.ByType["LeaseCostsGenerated"])
	assert.Equal(t, 1, summary.ByType["unparseable"])
	assert.Equal(t, 9, client.deleted, "drained messages must be deleted")

	require.Len(t, sender.calls, 1)
	sent := sender.calls[0]
	assert.Equal(t, "tmpl-dlq-digest", sent.TemplateID)
	assert.Equal(t, "ops@example.gov.uk", sent.Recipient)
	assert.Equal(t, "9", sent.Personalisation["totalFailures"])
	assert.Equal(t, "10/02/2026", sent.Personalisation["reportDate"])

	// Breakdown lines ordered by count descending.
	lines := strings.Split(sent.Personalisation["breakdown"], "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "LeaseApproved: 5", lines[0])
	assert.Equal(t, "LeaseCostsGenerated: 3", lines[1])
}

func TestRunHonorsMaxMessages(t *testing.T) {
	client := &mockSQS{}
	for i := 0; i < 30; i++ {
		client.messages = append(client.messages, dlqMessage(i, "LeaseTerminated"))
	}

	sender := &mockSender{}
	s := newTestSummarizer(client, sender, 15)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15, summary.Total, "drain stops at the run cap")
	assert.Len(t, client.messages, 15, "remaining messages stay queued for the next run")
}

func TestRunPropagatesReceiveError(t *testing.T) {
	client := &mockSQS{receiveErr: errors.New("queue gone")}
	s := newTestSummarizer(client, &mockSender{}, 100)

	_, err := s.Run(context.Background())
	require.Error(t, err)
}

func TestRunPropagatesSendError(t *testing.T) {
	client := &mockSQS{messages: []sqsTypes.Message{dlqMessage(0, "LeaseApproved")}}
	sender := &mockSender{err: errors.New("provider down")}
	s := newTestSummarizer(client, sender, 100)

	_, err := s.Run(context.Background())
	require.Error(t, err, "send failure must propagate so the schedule retries")
}
