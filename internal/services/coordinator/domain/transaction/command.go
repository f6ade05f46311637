package transaction

import "time"

// Command is any input accepted by Decide.
type Command interface {
	commandName() string
}

// PartyInput names a party at creation.
type PartyInput struct {
	Principal string
	Role      string
}

// Create proposes a new transaction; the actor signs implicitly.
type Create struct {
	TransactionID       string
	ActorID             string
	Kind                Kind
	Jurisdiction        string
	AssetIDs            []string
	Parties             []PartyInput
	MetadataFingerprint string
	ExpiresAt           *time.Time
	ComplianceRefs      []string
}

// Sign records the actor's signature.
type Sign struct {
	ActorID  string
	Evidence string
}

// Execute asks whether the actor may start execution now.
type Execute struct {
	ActorID string
}

// CompleteExecution records that every asset mutation succeeded.
type CompleteExecution struct {
	ActorID        string
	Outcomes       []AssetOutcome
	ComplianceRefs []string
}

// FailExecution records a failed execution attempt without changing status.
type FailExecution struct {
	ActorID       string
	FailedAssetID string
	Cause         string
	Retryable     bool
	Outcomes      []AssetOutcome
}

// RecordComplianceRejection records a negative verdict on an existing
// transaction without changing status.
type RecordComplianceRejection struct {
	ActorID         string
	Operation       string
	VerificationIDs []string
	Reason          string
}

// Cancel withdraws the transaction.
type Cancel struct {
	ActorID string
	Reason  string
}

// Reject declines the transaction on behalf of an unsigned party.
type Reject struct {
	ActorID string
	Reason  string
}

// Expire persists lazily observed expiry.
type Expire struct {
	ActorID string
}

func (Create) commandName() string                    { return "transaction.create" }
func (Sign) commandName() string                      { return "transaction.sign" }
func (Execute) commandName() string                   { return "transaction.execute" }
func (CompleteExecution) commandName() string         { return "transaction.complete_execution" }
func (FailExecution) commandName() string             { return "transaction.fail_execution" }
func (RecordComplianceRejection) commandName() string { return "transaction.record_compliance_rejection" }
func (Cancel) commandName() string                    { return "transaction.cancel" }
func (Reject) commandName() string                    { return "transaction.reject" }
func (Expire) commandName() string                    { return "transaction.expire" }

// CommandName returns the stable name of cmd for logs and metrics.
func CommandName(cmd Command) string {
	if cmd == nil {
		return ""
	}
	return cmd.commandName()
}
