package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"leasenotify/internal/enrichment"
	"leasenotify/internal/events"
	"leasenotify/internal/external"
	"leasenotify/internal/template"
	"leasenotify/internal/types"
)

// State names the steps of a single invocation's processing. States are
// carried in log fields so an event's lifecycle can be reconstructed from
// its correlation id.
type State string

const (
	StateReceived        State = "received"
	StateValidating      State = "validating"
	StateRejected        State = "rejected"
	StateValidated       State = "validated"
	StateClassified      State = "classified"
	StateEnriching       State = "enriching"
	StateEnriched        State = "enriched"
	StateDegraded        State = "degraded"
	StateBuildingMessage State = "building_message"
	StateBuildFailed     State = "build_failed"
	StateBuilt           State = "built"
	StateSending         State = "sending"
	StateSent            State = "sent"
	StateSendFailed      State = "send_failed"
)

// Orchestrator drives one event from envelope to dispatch outcome. It holds
// no mutable state across invocations: a duplicate delivery runs the same
// path and produces a second independent send, which is an accepted
// trade-off rather than a bug.
type Orchestrator struct {
	validator    *events.Validator
	fetcher      enrichment.LeaseFetcher
	registry     *template.Registry
	sender       external.EmailSender
	forwarder    Forwarder
	metrics      DispatchMetrics
	opsRecipient string
	logger       types.Logger
}

// OrchestratorConfig holds the dependencies for creating an Orchestrator.
type OrchestratorConfig struct {
	Validator    *events.Validator
	Fetcher      enrichment.LeaseFetcher
	Registry     *template.Registry
	Sender       external.EmailSender
	Forwarder    Forwarder
	Metrics      DispatchMetrics
	OpsRecipient string
	Logger       types.Logger
}

// NewOrchestrator creates an Orchestrator with the given dependencies.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NoopDispatchMetrics{}
	}
	return &Orchestrator{
		validator:    cfg.Validator,
		fetcher:      cfg.Fetcher,
		registry:     cfg.Registry,
		sender:       cfg.Sender,
		forwarder:    cfg.Forwarder,
		metrics:      metrics,
		opsRecipient: cfg.OpsRecipient,
		logger:       cfg.Logger,
	}
}

// Process runs the full state machine for one raw envelope.
//
// The returned error contract mirrors the trigger's redelivery semantics:
//   - nil for Sent, and for Rejected/BuildFailed (permanent: the event is
//     consumed because replay can never succeed)
//   - non-nil only for transient send failures, so the trigger redelivers
//     and eventually dead-letters the message
func (o *Orchestrator) Process(ctx context.Context, raw json.RawMessage) error {
	logger := o.logger.With("state", string(StateReceived))
	logger.Info("event received")

	// Validating.
	var envelope types.NotificationEvent
	if err := json.Unmarshal(raw, &envelope); err != nil {
		o.logger.With("state", string(StateRejected)).Warn("dropping unparseable envelope",
			"error", err.Error(),
		)
		o.metrics.RecordDispatch(ctx, "", types.OutcomeRejected)
		return nil
	}

	ve, err := o.validator.Validate(envelope)
	if err != nil {
		o.logRejection(err, envelope)
		o.metrics.RecordDispatch(ctx, "", types.OutcomeRejected)
		return nil
	}
	ve.RawEnvelope = raw

	ctx = types.WithCorrelationID(ctx, ve.CorrelationID)
	logger = o.logger.With(
		"correlation_id", ve.CorrelationID,
		"event_type", string(ve.Detail.Type()),
		"source", ve.Source,
	)
	logger.With("state", string(StateValidated)).Info("event validated")

	category := events.Classify(ve.Detail.Type())
	logger = logger.With("category", string(category))
	if category == types.CategoryOps {
		logger.With("state", string(StateClassified)).Warn("ops-critical event classified")
	} else {
		logger.With("state", string(StateClassified)).Info("event classified")
	}

	// Topic forward runs first and independently: its failure never gates
	// the email branch, and vice versa.
	if fwdErr := o.forwarder.Forward(ctx, ve, category); fwdErr != nil {
		logger.Error("topic forward failed", "error", fwdErr.Error())
	}

	return o.dispatchEmail(ctx, ve, category, logger)
}

// dispatchEmail runs the enrichment, build, and send steps of the email
// branch.
func (o *Orchestrator) dispatchEmail(ctx context.Context, ve *types.ValidatedEvent, category types.EventCategory, logger types.Logger) error {
	entry, err := o.registry.Lookup(ve.Detail.Type())
	if err != nil {
		logger.With("state", string(StateBuildFailed)).Error("no template binding for event type",
			"error", err.Error(),
		)
		o.metrics.RecordDispatch(ctx, category, types.OutcomeBuildFailed)
		return nil
	}

	var lease *types.LeaseRecord
	if entry.NeedsLease {
		logger.With("state", string(StateEnriching)).Info("fetching lease record")
		if owner, leaseID, ok := leaseKey(ve.Detail); ok {
			// FetchLease degrades internally; a non-nil error here means a
			// programmer mistake and is logged, not propagated.
			lease, err = o.fetcher.FetchLease(ctx, owner, leaseID)
			if err != nil {
				logger.Error("lease fetch returned unexpected error", "error", err.Error())
				lease = nil
			}
		}
		if lease == nil {
			logger.With("state", string(StateDegraded)).Warn("enrichment degraded, using fallback values")
			o.metrics.RecordEnrichmentDegraded(ctx)
		} else {
			logger.With("state", string(StateEnriched)).Info("lease record fetched")
		}
	}

	logger.With("state", string(StateBuildingMessage)).Info("building personalisation")
	personalisation, err := o.registry.BuildPersonalisation(ve.Detail, lease)
	if err != nil {
		o.logBuildFailure(logger, err)
		o.metrics.RecordDispatch(ctx, category, types.OutcomeBuildFailed)
		return nil
	}

	recipient := ve.Detail.Recipient()
	if recipient == "" {
		recipient = o.opsRecipient
	}

	logger.With("state", string(StateSending)).Info("sending templated email",
		"template_id", entry.TemplateID,
		"recipient", external.RedactEmail(recipient),
	)

	start := time.Now()
	msgID, err := o.sender.SendTemplatedEmail(ctx, types.SendInput{
		TemplateID:      entry.TemplateID,
		Recipient:       recipient,
		Personalisation: personalisation,
		Reference:       ve.CorrelationID,
	})
	o.metrics.RecordSendLatency(ctx, time.Since(start))

	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Permanent() {
			// Provider rejected the send outright (bad template id,
			// invalid personalisation). Replay cannot succeed; consume.
			logger.With("state", string(StateSendFailed)).Error("email send permanently rejected",
				"code", string(appErr.Code),
			)
			o.metrics.RecordDispatch(ctx, category, types.OutcomeSendFailed)
			return nil
		}

		logger.With("state", string(StateSendFailed)).Error("email send failed, leaving for redelivery",
			"error", err.Error(),
		)
		o.metrics.RecordDispatch(ctx, category, types.OutcomeSendFailed)
		return err
	}

	logger.With("state", string(StateSent)).Info("email send accepted",
		"provider_message_id", msgID,
	)
	o.metrics.RecordDispatch(ctx, category, types.OutcomeSent)
	return nil
}

// logRejection logs a validation rejection with event type and source only;
// the raw payload never reaches logs.
func (o *Orchestrator) logRejection(err error, envelope types.NotificationEvent) {
	logger := o.logger.With(
		"state", string(StateRejected),
		"source", envelope.Source,
		"detail_type", envelope.DetailType,
	)

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		logger.Warn("event rejected", "code", string(appErr.Code), "reason", appErr.Message)
		return
	}
	logger.Warn("event rejected", "reason", err.Error())
}

// logBuildFailure logs a personalisation build failure with the field name,
// never field contents.
func (o *Orchestrator) logBuildFailure(logger types.Logger, err error) {
	l := logger.With("state", string(StateBuildFailed))

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		args := []any{"code", string(appErr.Code)}
		if field, ok := appErr.Details["field"].(string); ok {
			args = append(args, "field", field)
		}
		l.Error("personalisation build failed", args...)
		return
	}
	l.Error("personalisation build failed", "error", err.Error())
}

// leaseKey extracts the composite-key parts for event types that carry a
// lease reference.
func leaseKey(detail types.EventDetail) (owner, leaseID string, ok bool) {
	switch d := detail.(type) {
	case types.LeaseApprovedDetail:
		return d.UserEmail, d.LeaseID, true
	case types.LeaseTerminatedDetail:
		return d.UserEmail, d.LeaseID, true
	case types.LeaseBudgetThresholdDetail:
		return d.UserEmail, d.LeaseID, true
	case types.LeaseExpiresSoonDetail:
		return d.UserEmail, d.LeaseID, true
	case types.LeaseCostsGeneratedDetail:
		return d.UserEmail, d.LeaseID, true
	}
	return "", "", false
}
