// Package main is the entrypoint for the DLQ Digest Lambda function.
//
// The DLQ Digest runs on a schedule, drains the notification dead-letter
// queue, and emails a failure summary to the ops recipient. It shares the
// notify worker's configuration and email sender; only the queue drain is
// specific to this worker.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"leasenotify/internal/config"
	"leasenotify/internal/digest"
	"leasenotify/internal/external"
	"leasenotify/internal/types"
)

// slogAdapter wraps *slog.Logger to implement the types.Logger interface.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

// Handler holds the dependencies for the digest Lambda handler.
type Handler struct {
	summarizer *digest.Summarizer
	logger     types.Logger
}

// Handle runs one digest pass. The scheduled trigger carries no useful
// payload, so the handler takes none.
func (h *Handler) Handle(ctx context.Context) error {
	summary, err := h.summarizer.Run(ctx)
	if err != nil {
		h.logger.Error("digest run failed", "error", err.Error())
		return err
	}
	h.logger.Info("digest run completed",
		"total_failures", summary.Total,
		"drained", summary.Drained,
	)
	return nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("DLQ Digest Lambda initializing (cold start)")

	typedLogger := &slogAdapter{logger: logger}

	cfg, err := config.Load(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// The DLQ URL and digest template are optional for the notify worker but
	// mandatory here.
	if cfg.Digest.DLQURL == "" {
		logger.Error("SQS_NOTIFY_DLQ is required for the digest worker")
		os.Exit(1)
	}
	if cfg.Digest.TemplateID == "" {
		logger.Error("TEMPLATE_DLQ_DIGEST is required for the digest worker")
		os.Exit(1)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		logger.Error("Failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	var sender external.EmailSender
	if cfg.Environment == "local" {
		logger.Warn("APP_ENV=local, using stub email sender")
		sender = external.NewStubEmailSender(logger)
	} else {
		sender = external.NewNotifyClient(
			&http.Client{Timeout: 10 * time.Second},
			external.NotifyClientConfig{
				BaseURL: cfg.Email.BaseURL,
				APIKey:  cfg.Email.APIKey,
				Logger:  logger,
			},
		)
	}

	summarizer := digest.NewSummarizer(digest.SummarizerConfig{
		Client:       sqs.NewFromConfig(awsCfg),
		Sender:       sender,
		QueueURL:     cfg.Digest.DLQURL,
		TemplateID:   cfg.Digest.TemplateID,
		OpsRecipient: cfg.Email.OpsRecipient,
		MaxMessages:  cfg.Digest.MaxMessages,
		Logger:       typedLogger,
	})

	handler := &Handler{summarizer: summarizer, logger: typedLogger}

	logger.Info("DLQ Digest Lambda initialized",
		"dlq_url", cfg.Digest.DLQURL,
		"max_messages", cfg.Digest.MaxMessages,
	)

	if cfg.Environment == "local" {
		if err := handler.Handle(context.Background()); err != nil {
			os.Exit(1)
		}
		return
	}

	lambda.Start(handler.Handle)
}

var _ types.Logger = (*slogAdapter)(nil)
