package types

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// NotificationEvent is the inbound event envelope delivered by the trigger.
// The JSON shape matches the bus contract, including the hyphenated
// "detail-type" key. The envelope is immutable: it arrives once per
// invocation and is never persisted by this pipeline.
type NotificationEvent struct {
	Source     string          `json:"source"`
	DetailType string          `json:"detail-type"`
	Account    string          `json:"account"`
	Time       time.Time       `json:"time"`
	Detail     json.RawMessage `json:"detail"`
}

// EventDetail is the tagged union of per-type validated payloads. A value
// implementing EventDetail has passed the full schema for its type; partially
// valid details must never be constructed.
type EventDetail interface {
	// Type returns the event type this detail was validated against.
	Type() EventType

	// Recipient returns the email address the notification should be sent
	// to, or "" for ops-routed events whose recipient comes from config.
	Recipient() string
}

// ValidatedEvent pairs a validated detail with the envelope metadata the
// downstream branches need. RawEnvelope carries the original envelope bytes
// so the topic-forward path can publish the event unmodified.
type ValidatedEvent struct {
	Source        string
	CorrelationID string
	ReceivedAt    time.Time
	Detail        EventDetail
	RawEnvelope   json.RawMessage
}

// LeaseRequestedDetail is emitted when a user submits a lease request.
type LeaseRequestedDetail struct {
	LeaseID      string `json:"leaseId" validate:"required,uuid4"`
	UserEmail    string `json:"userEmail" validate:"required,sandbox_email"`
	TemplateName string `json:"leaseTemplateName" validate:"omitempty,max=128"`
	Comments     string `json:"comments" validate:"omitempty,max=1024"`
}

func (d LeaseRequestedDetail) Type() EventType { return EventLeaseRequested }
func (d LeaseRequestedDetail) Recipient() string { return d.UserEmail }

// LeaseApprovedDetail is emitted when an approver grants a lease and an
// account has been assigned.
type LeaseApprovedDetail struct {
	LeaseID   string `json:"leaseId" validate:"required,uuid4"`
	UserEmail string `json:"userEmail" validate:"required,sandbox_email"`
	AccountID string `json:"accountId" validate:"required,aws_account"`
	ExpiresAt string `json:"expiresAt" validate:"required,iso8601"`
}

func (d LeaseApprovedDetail) Type() EventType { return EventLeaseApproved }
func (d LeaseApprovedDetail) Recipient() string { return d.UserEmail }

// LeaseTerminatedDetail is emitted when a lease ends, whether by expiry,
// budget exhaustion, or manual termination.
type LeaseTerminatedDetail struct {
	LeaseID   string `json:"leaseId" validate:"required,uuid4"`
	UserEmail string `json:"userEmail" validate:"required,sandbox_email"`
	AccountID string `json:"accountId" validate:"required,aws_account"`
	Reason    string `json:"reason" validate:"required,max=256"`
}

func (d LeaseTerminatedDetail) Type() EventType { return EventLeaseTerminated }
func (d LeaseTerminatedDetail) Recipient() string { return d.UserEmail }

// LeaseBudgetThresholdDetail is emitted when accrued spend crosses a
// configured percentage of the lease budget.
type LeaseBudgetThresholdDetail struct {
	LeaseID          string          `json:"leaseId" validate:"required,uuid4"`
	UserEmail        string          `json:"userEmail" validate:"required,sandbox_email"`
	AccountID        string          `json:"accountId" validate:"required,aws_account"`
	Budget           decimal.Decimal `json:"budget"`
	Spend            decimal.Decimal `json:"spend"`
	ThresholdPercent int             `json:"thresholdPercent" validate:"required,gte=1,lte=100"`
}

func (d LeaseBudgetThresholdDetail) Type() EventType { return EventLeaseBudgetThreshold }
func (d LeaseBudgetThresholdDetail) Recipient() string { return d.UserEmail }

// LeaseExpiresSoonDetail is emitted ahead of a lease's expiration date.
type LeaseExpiresSoonDetail struct {
	LeaseID   string `json:"leaseId" validate:"required,uuid4"`
	UserEmail string `json:"userEmail" validate:"required,sandbox_email"`
	AccountID string `json:"accountId" validate:"required,aws_account"`
	ExpiresAt string `json:"expiresAt" validate:"required,iso8601"`
}

func (d LeaseExpiresSoonDetail) Type() EventType { return EventLeaseExpiresSoon }
func (d LeaseExpiresSoonDetail) Recipient() string { return d.UserEmail }

// AccountQuarantinedDetail is emitted when the workload manager isolates a
// sandbox account. Routed to the ops recipient, not the lease holder.
type AccountQuarantinedDetail struct {
	AccountID     string `json:"accountId" validate:"required,aws_account"`
	Reason        string `json:"reason" validate:"required,max=256"`
	QuarantinedAt string `json:"quarantinedAt" validate:"required,iso8601"`
}

func (d AccountQuarantinedDetail) Type() EventType { return EventAccountQuarantined }
func (d AccountQuarantinedDetail) Recipient() string { return "" }

// CostReportFailureDetail is emitted when the nightly cost report job fails.
// Routed to the ops recipient.
type CostReportFailureDetail struct {
	ReportDate string `json:"reportDate" validate:"required,iso8601"`
	ErrorCode  string `json:"errorCode" validate:"required,max=64"`
	Message    string `json:"message" validate:"omitempty,max=1024"`
}

func (d CostReportFailureDetail) Type() EventType { return EventCostReportFailure }
func (d CostReportFailureDetail) Recipient() string { return "" }

// LeaseCostsGeneratedDetail is emitted when a lease's cost report has been
// generated and uploaded. TotalCost may be negative to represent credits or
// refunds applied during the period.
type LeaseCostsGeneratedDetail struct {
	LeaseID      string          `json:"leaseId" validate:"required,uuid4"`
	UserEmail    string          `json:"userEmail" validate:"required,sandbox_email"`
	TotalCost    decimal.Decimal `json:"totalCost"`
	StartDate    string          `json:"startDate" validate:"required,iso8601"`
	EndDate      string          `json:"endDate" validate:"required,iso8601"`
	CSVURL       string          `json:"csvUrl" validate:"required,url,startswith=https://"`
	URLExpiresAt string          `json:"urlExpiresAt" validate:"required,iso8601"`
}

func (d LeaseCostsGeneratedDetail) Type() EventType { return EventLeaseCostsGenerated }
func (d LeaseCostsGeneratedDetail) Recipient() string { return d.UserEmail }
