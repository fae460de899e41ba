package types

// EventType identifies the kind of lifecycle, monitoring, ops, or billing
// event emitted by the sandbox workload manager.
type EventType string

const (
	EventLeaseRequested           EventType = "LeaseRequested"
	EventLeaseApproved            EventType = "LeaseApproved"
	EventLeaseTerminated          EventType = "LeaseTerminated"
	EventLeaseBudgetThreshold     EventType = "LeaseBudgetThresholdTriggered"
	EventLeaseExpiresSoon         EventType = "LeaseExpiresSoon"
	EventAccountQuarantined       EventType = "AccountQuarantined"
	EventCostReportFailure        EventType = "CostReportGenerationFailed"
	EventLeaseCostsGenerated      EventType = "LeaseCostsGenerated"
)

// EventCategory groups event types for routing decisions. It is derived from
// the EventType and never stored.
type EventCategory string

const (
	CategoryLifecycle  EventCategory = "lifecycle"
	CategoryMonitoring EventCategory = "monitoring"
	CategoryOps        EventCategory = "ops"
	CategoryBilling    EventCategory = "billing"
)

// DispatchOutcome categorizes the terminal state of a single event's
// processing for metrics reporting.
type DispatchOutcome string

const (
	OutcomeSent        DispatchOutcome = "sent"
	OutcomeRejected    DispatchOutcome = "rejected"
	OutcomeBuildFailed DispatchOutcome = "build_failed"
	OutcomeSendFailed  DispatchOutcome = "send_failed"
)
