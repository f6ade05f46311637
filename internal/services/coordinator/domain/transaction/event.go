package transaction

import (
	"encoding/json"
	"time"
)

// EventType names an audit-visible domain event.
type EventType string

const (
	EventCreated            EventType = "transaction.created"
	EventSigned             EventType = "transaction.signed"
	EventPending            EventType = "transaction.pending"
	EventApproved           EventType = "transaction.approved"
	EventExecuted           EventType = "transaction.executed"
	EventCancelled          EventType = "transaction.cancelled"
	EventRejected           EventType = "transaction.rejected"
	EventExpired            EventType = "transaction.expired"
	EventComplianceRejected EventType = "transaction.compliance_rejected"
	EventExecutionFailed    EventType = "transaction.execution_failed"
)

// transitionEvents maps a target status to the event recording it.
var transitionEvents = map[Status]EventType{
	StatusCreated:   EventCreated,
	StatusPending:   EventPending,
	StatusApproved:  EventApproved,
	StatusExecuted:  EventExecuted,
	StatusCancelled: EventCancelled,
	StatusRejected:  EventRejected,
	StatusExpired:   EventExpired,
}

// Event is one entry of a transaction's audit trail. From and To are set for
// status transitions and equal for entries that leave status unchanged.
type Event struct {
	TransactionID string          `json:"transaction_id"`
	Type          EventType       `json:"type"`
	ActorID       string          `json:"actor_id"`
	From          Status          `json:"from_status"`
	To            Status          `json:"to_status"`
	Timestamp     time.Time       `json:"timestamp"`
	PayloadJSON   json.RawMessage `json:"payload,omitempty"`
}

// Transition reports whether the event moves the stored status.
func (e Event) Transition() bool {
	return e.From != e.To
}

// MutatesState reports whether folding the event changes the aggregate.
// Compliance rejections and failed executions are audit-only.
func (e Event) MutatesState() bool {
	return e.Type != EventComplianceRejected && e.Type != EventExecutionFailed
}

// CreatedPayload carries the full initial aggregate.
type CreatedPayload struct {
	Kind                Kind       `json:"kind"`
	Jurisdiction        string     `json:"jurisdiction"`
	AssetIDs            []string   `json:"asset_ids"`
	Parties             []Party    `json:"parties"`
	MetadataFingerprint string     `json:"metadata_fingerprint,omitempty"`
	ExpiresAt           *time.Time `json:"expires_at,omitempty"`
	ComplianceRefs      []string   `json:"compliance_refs,omitempty"`
}

// SignedPayload records one party signature.
type SignedPayload struct {
	Principal string    `json:"principal"`
	Role      string    `json:"role"`
	SignedAt  time.Time `json:"signed_at"`
	Evidence  string    `json:"evidence,omitempty"`
	Signed    int       `json:"signed"`
	Required  int       `json:"required"`
}

// StatusPayload annotates plain status transitions.
type StatusPayload struct {
	Reason string `json:"reason,omitempty"`
	// Observed is the lazily computed status when it differs from From.
	Observed Status `json:"observed_status,omitempty"`
}

// ExecutedPayload records a completed execution.
type ExecutedPayload struct {
	Outcomes       []AssetOutcome `json:"outcomes"`
	ComplianceRefs []string       `json:"compliance_refs,omitempty"`
}

// ExecutionFailedPayload records a failed execution attempt.
type ExecutionFailedPayload struct {
	FailedAssetID string         `json:"failed_asset_id"`
	Cause         string         `json:"cause"`
	Retryable     bool           `json:"retryable"`
	Outcomes      []AssetOutcome `json:"outcomes"`
}

// ComplianceRejectedPayload records a negative compliance verdict.
type ComplianceRejectedPayload struct {
	Operation       string   `json:"operation"`
	Jurisdiction    string   `json:"jurisdiction"`
	VerificationIDs []string `json:"verification_ids,omitempty"`
	Reason          string   `json:"reason,omitempty"`
}

func mustPayload(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// Payload types are plain structs; this only fails on programmer error.
		panic(err)
	}
	return data
}
