// Package main is the entrypoint for the Notify Worker Lambda function.
//
// The Notify Worker consumes lease event envelopes from the notification SQS
// queue, validates and classifies each event, enriches it with lease data
// where a template needs it, builds the personalisation map, and sends the
// templated email. Each invocation receives a batch of SQS messages and
// reports partial batch failures so only transient send failures are
// redelivered.
//
// Cold Start (main):
//  1. Initialize structured logger.
//  2. Load configuration (env -> dotenv -> SSM) and validate it.
//  3. Load AWS SDK configuration.
//  4. Initialize SNS, CloudWatch clients.
//  5. Initialize the email sender (real client, or stub in local mode).
//  6. Initialize validator, enrichment client, template registry.
//  7. Assemble the dispatch orchestrator, register the handler, lambda.Start.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"leasenotify/internal/config"
	"leasenotify/internal/dispatch"
	"leasenotify/internal/enrichment"
	evpkg "leasenotify/internal/events"
	"leasenotify/internal/external"
	"leasenotify/internal/template"
	"leasenotify/internal/types"
)

// slogAdapter wraps *slog.Logger to implement the types.Logger interface.
// slog.Logger satisfies Info, Error, and Warn directly, but With returns
// *slog.Logger rather than types.Logger, so an adapter is necessary.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

// Handler holds the dependencies for the notify worker Lambda handler.
type Handler struct {
	orchestrator *dispatch.Orchestrator
	logger       types.Logger
}

// Handle processes an SQS event containing one or more lease event envelopes.
// Each record is processed independently; records whose processing returns an
// error are reported in batchItemFailures so SQS redelivers only those.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.orchestrator.Process(ctx, json.RawMessage(record.Body)); err != nil {
			h.logger.Error("failed to process SQS message",
				"message_id", record.MessageId,
				"error", err.Error(),
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

// parseLogLevel maps the configured level name onto a slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	// Initialize structured logger at startup (cold start). The level is
	// adjusted once configuration has loaded.
	levelVar := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: levelVar,
	}))

	logger.Info("Notify Worker Lambda initializing (cold start)")

	typedLogger := &slogAdapter{logger: logger}

	// Load configuration. SSM resolution is skipped automatically in local
	// mode; elsewhere the _SSM_PARAM indirection resolves secrets.
	cfg, err := config.Load(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	levelVar.Set(parseLogLevel(cfg.LogLevel))

	// Surface unprovisioned template ids once, at startup. Sends for these
	// types will fail at the provider until the ids are filled in.
	for _, et := range cfg.Email.Templates.Placeholders() {
		logger.Warn("template id is a placeholder, sends for this type will fail",
			"event_type", string(et),
		)
	}

	// Load AWS SDK configuration.
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		logger.Error("Failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	snsClient := sns.NewFromConfig(awsCfg)
	cwClient := cloudwatch.NewFromConfig(awsCfg)

	// Initialize the email sender. Local mode logs sends instead of calling
	// the provider, so the full pipeline can run without credentials burn.
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

	validator := evpkg.NewValidator(cfg.Events.AllowedSources, typedLogger)

	fetcher := enrichment.NewClient(
		&http.Client{Timeout: cfg.Enrichment.Timeout + time.Second},
		enrichment.ClientConfig{
			BaseURL: cfg.Enrichment.BaseURL,
			Timeout: cfg.Enrichment.Timeout,
			Logger:  typedLogger,
		},
	)

	registry, err := template.NewRegistry(
		cfg.Email.Templates,
		cfg.Email.FallbackTemplateName,
		cfg.Email.DisplayTimeZone,
	)
	if err != nil {
		logger.Error("Failed to initialize template registry", "error", err)
		os.Exit(1)
	}

	forwarder := dispatch.NewTopicForwarder(snsClient, cfg.Alerting.TopicARN, typedLogger)
	metrics := dispatch.NewCloudWatchDispatchMetrics(cwClient, cfg.Observability.MetricNamespace, typedLogger)

	orchestrator := dispatch.NewOrchestrator(dispatch.OrchestratorConfig{
		Validator:    validator,
		Fetcher:      fetcher,
		Registry:     registry,
		Sender:       sender,
		Forwarder:    forwarder,
		Metrics:      metrics,
		OpsRecipient: cfg.Email.OpsRecipient,
		Logger:       typedLogger,
	})

	handler := &Handler{
		orchestrator: orchestrator,
		logger:       typedLogger,
	}

	logger.Info("Notify Worker Lambda initialized",
		"environment", cfg.Environment,
		"allowed_sources", cfg.Events.AllowedSources,
		"alert_topic", cfg.Alerting.TopicARN,
		"metric_namespace", cfg.Observability.MetricNamespace,
	)

	// Local mode: read a JSON SQS event from stdin instead of starting the
	// Lambda runtime. Usage:
	//   echo '{"Records":[{"messageId":"1","body":"{...}"}]}' | go run cmd/notify-worker/main.go
	if cfg.Environment == "local" {
		logger.Info("APP_ENV=local: reading SQS event from stdin")
		payload, err := io.ReadAll(os.Stdin)
		if err != nil {
			logger.Error("Failed to read stdin", "error", err)
			os.Exit(1)
		}
		if len(payload) == 0 {
			logger.Error("No input received on stdin")
			os.Exit(1)
		}
		var sqsEvent events.SQSEvent
		if err := json.Unmarshal(payload, &sqsEvent); err != nil {
			logger.Error("Failed to parse stdin as SQS event", "error", err)
			os.Exit(1)
		}
		response, err := handler.Handle(context.Background(), sqsEvent)
		if err != nil {
			logger.Error("Handler execution failed", "error", err)
			os.Exit(1)
		}
		if len(response.BatchItemFailures) > 0 {
			logger.Warn("Handler reported partial failures",
				"failed_count", len(response.BatchItemFailures),
			)
			respJSON, _ := json.MarshalIndent(response, "", "  ")
			fmt.Fprintln(os.Stderr, string(respJSON))
		}
		logger.Info("Handler execution completed",
			"records_processed", len(sqsEvent.Records),
			"failures", len(response.BatchItemFailures),
		)
		return
	}

	lambda.Start(handler.Handle)
}

var _ types.Logger = (*slogAdapter)(nil)
