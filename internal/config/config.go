// Package config defines the process-wide configuration for the lease
// notification pipeline. Configuration is loaded once at Lambda cold start
// and is immutable thereafter: the template registry and source allow-list
// are the only state shared across invocations, and both are read-only.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or invalid format fails the worker on startup
// (fail fast).
package config

import (
	"strings"
	"time"

	"leasenotify/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// placeholderPrefix marks a template id that has not yet been provisioned in
// the email provider. Placeholder ids are tolerated operationally (the send
// will fail at the provider, not silently misroute) but are surfaced with a
// startup warning. They must be explicit, never silently defaulted.
const placeholderPrefix = "PLACEHOLDER:"

// Config is the top-level configuration struct for the notification workers.
// Populated once during cold start and never modified. Components receive
// only the subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"lease-notify"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Events        EventsConfig
	Enrichment    EnrichmentConfig
	Email         EmailConfig
	Alerting      AlertingConfig
	Digest        DigestConfig
	Observability ObservabilityConfig
}

// EventsConfig holds the producer allow-list. Unknown sources are rejected,
// never silently accepted.
type EventsConfig struct {
	AllowedSources []string `envconfig:"EVENT_ALLOWED_SOURCES" default:"isb-leases,isb-costs"`
}

// EnrichmentConfig holds the lease read API location and its fetch budget.
// The timeout bounds the only blocking operation in the pipeline and must
// stay well inside the Lambda invocation timeout.
type EnrichmentConfig struct {
	BaseURL string        `envconfig:"LEASE_API_BASE_URL" validate:"required,url"`
	Timeout time.Duration `envconfig:"LEASE_API_TIMEOUT" default:"5s"`
}

// EmailConfig holds the transactional email API credentials, the per-event
// template ids, and display formatting settings.
type EmailConfig struct {
	BaseURL string       `envconfig:"EMAIL_API_BASE_URL" validate:"required,url"`
	APIKey  SecretString `envconfig:"EMAIL_API_KEY" validate:"required"`

	Templates TemplateIDs

	// FallbackTemplateName substitutes the human-readable product name when
	// enrichment is degraded or the record lacks one.
	FallbackTemplateName string `envconfig:"FALLBACK_TEMPLATE_NAME" default:"your sandbox"`

	// OpsRecipient receives ops-category notifications (quarantine, report
	// failures) that have no lease-holder recipient.
	OpsRecipient string `envconfig:"OPS_EMAIL" validate:"required,email"`

	// DisplayTimeZone is the producer-configured timezone used when
	// rendering human-readable timestamps.
	DisplayTimeZone string `envconfig:"DISPLAY_TIMEZONE" default:"Europe/London"`
}

// TemplateIDs maps each event type to its provider template identifier.
// Every id is required; unprovisioned environments use explicit
// "PLACEHOLDER:" values rather than omitting the variable.
type TemplateIDs struct {
	LeaseRequested      string `envconfig:"TEMPLATE_LEASE_REQUESTED" validate:"required"`
	LeaseApproved       string `envconfig:"TEMPLATE_LEASE_APPROVED" validate:"required"`
	LeaseTerminated     string `envconfig:"TEMPLATE_LEASE_TERMINATED" validate:"required"`
	BudgetThreshold     string `envconfig:"TEMPLATE_BUDGET_THRESHOLD" validate:"required"`
	LeaseExpiresSoon    string `envconfig:"TEMPLATE_LEASE_EXPIRES_SOON" validate:"required"`
	AccountQuarantined  string `envconfig:"TEMPLATE_ACCOUNT_QUARANTINED" validate:"required"`
	CostReportFailure   string `envconfig:"TEMPLATE_COST_REPORT_FAILURE" validate:"required"`
	LeaseCostsGenerated string `envconfig:"TEMPLATE_LEASE_COSTS_GENERATED" validate:"required"`
}

// ForEventType returns the configured template id for the event type, or ""
// when the type has no template binding.
func (t TemplateIDs) ForEventType(et types.EventType) string {
	switch et {
	case types.EventLeaseRequested:
		return t.LeaseRequested
	case types.EventLeaseApproved:
		return t.LeaseApproved
	case types.EventLeaseTerminated:
		return t.LeaseTerminated
	case types.EventLeaseBudgetThreshold:
		return t.BudgetThreshold
	case types.EventLeaseExpiresSoon:
		return t.LeaseExpiresSoon
	case types.EventAccountQuarantined:
		return t.AccountQuarantined
	case types.EventCostReportFailure:
		return t.CostReportFailure
	case types.EventLeaseCostsGenerated:
		return t.LeaseCostsGenerated
	}
	return ""
}

// Placeholders returns the event types whose template id still carries the
// explicit placeholder prefix, for startup warnings.
func (t TemplateIDs) Placeholders() []types.EventType {
	all := []types.EventType{
		types.EventLeaseRequested,
		types.EventLeaseApproved,
		types.EventLeaseTerminated,
		types.EventLeaseBudgetThreshold,
		types.EventLeaseExpiresSoon,
		types.EventAccountQuarantined,
		types.EventCostReportFailure,
		types.EventLeaseCostsGenerated,
	}

	var out []types.EventType
	for _, et := range all {
		if strings.HasPrefix(t.ForEventType(et), placeholderPrefix) {
			out = append(out, et)
		}
	}
	return out
}

// AlertingConfig holds the chat-ops forward topic.
type AlertingConfig struct {
	TopicARN string `envconfig:"ALERT_TOPIC_ARN" validate:"required"`
}

// DigestConfig holds the dead-letter digest worker settings. The DLQ URL and
// digest template are optional for the notify worker itself, which never
// reads the queue; the digest worker validates both at startup.
type DigestConfig struct {
	DLQURL      string `envconfig:"SQS_NOTIFY_DLQ" validate:"omitempty,url"`
	TemplateID  string `envconfig:"TEMPLATE_DLQ_DIGEST"`
	MaxMessages int    `envconfig:"DIGEST_MAX_MESSAGES" default:"100"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"LeaseNotify"`
	Region          string `envconfig:"AWS_REGION" default:"eu-west-2"`
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure parsing environment variable values.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
