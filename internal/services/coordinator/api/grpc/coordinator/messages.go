package coordinator

import (
	"encoding/json"
	"time"

	"github.com/louisbranch/assetflow/internal/services/coordinator/domain/transaction"
	"github.com/louisbranch/assetflow/internal/services/coordinator/service"
	"github.com/louisbranch/assetflow/internal/services/coordinator/storage"
)

// Party is one named principal on a transaction.
type Party struct {
	Principal string     `json:"principal"`
	Role      string     `json:"role,omitempty"`
	HasSigned bool       `json:"has_signed"`
	SignedAt  *time.Time `json:"signed_at,omitempty"`
}

// Transaction is the wire view of a transaction. Status applies lazy expiry;
// StoredStatus is the persisted value.
type Transaction struct {
	TransactionID       string     `json:"transaction_id"`
	Kind                string     `json:"kind"`
	Status              string     `json:"status"`
	StoredStatus        string     `json:"stored_status"`
	Jurisdiction        string     `json:"jurisdiction"`
	AssetIDs            []string   `json:"asset_ids"`
	Parties             []Party    `json:"parties"`
	MetadataFingerprint string     `json:"metadata_fingerprint,omitempty"`
	CreatedBy           string     `json:"created_by"`
	ComplianceRefs      []string   `json:"compliance_refs,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	ExpiresAt           *time.Time `json:"expires_at,omitempty"`
	Version             int64      `json:"version"`
}

type CreateTransactionRequest struct {
	Kind                string     `json:"kind"`
	Jurisdiction        string     `json:"jurisdiction"`
	AssetIDs            []string   `json:"asset_ids"`
	Parties             []Party    `json:"parties"`
	MetadataFingerprint string     `json:"metadata_fingerprint,omitempty"`
	ExpiresAt           *time.Time `json:"expires_at,omitempty"`
}

type SignTransactionRequest struct {
	TransactionID     string `json:"transaction_id"`
	SignatureEvidence string `json:"signature_evidence,omitempty"`
}

type ExecuteTransactionRequest struct {
	TransactionID string                    `json:"transaction_id"`
	ExecutionData transaction.ExecutionData `json:"execution_data"`
}

type ExecuteTransactionResponse struct {
	Transaction Transaction                `json:"transaction"`
	Outcomes    []transaction.AssetOutcome `json:"outcomes"`
}

type CancelTransactionRequest struct {
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason,omitempty"`
}

type RejectTransactionRequest struct {
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason,omitempty"`
}

type ExpireTransactionRequest struct {
	TransactionID string `json:"transaction_id"`
}

type GetTransactionRequest struct {
	TransactionID string `json:"transaction_id"`
}

// TransactionResponse answers every single-transaction RPC except execute.
type TransactionResponse struct {
	Transaction Transaction `json:"transaction"`
}

type ListTransactionsByPartyRequest struct {
	// Principal defaults to the caller.
	Principal string `json:"principal,omitempty"`
	PageSize  int32  `json:"page_size,omitempty"`
	PageToken string `json:"page_token,omitempty"`
}

type ListTransactionsByAssetRequest struct {
	AssetID   string `json:"asset_id"`
	PageSize  int32  `json:"page_size,omitempty"`
	PageToken string `json:"page_token,omitempty"`
}

type ListTransactionsResponse struct {
	Transactions  []Transaction `json:"transactions"`
	NextPageToken string        `json:"next_page_token,omitempty"`
}

type ListAuditEventsRequest struct {
	TransactionID string `json:"transaction_id"`
	PageSize      int32  `json:"page_size,omitempty"`
	PageToken     string `json:"page_token,omitempty"`
	OrderBy       string `json:"order_by,omitempty"`
	Filter        string `json:"filter,omitempty"`
}

// AuditEvent is one journal entry with its integrity chain.
type AuditEvent struct {
	TransactionID  string          `json:"transaction_id"`
	Seq            int64           `json:"seq"`
	Type           string          `json:"type"`
	ActorID        string          `json:"actor_id"`
	FromStatus     string          `json:"from_status,omitempty"`
	ToStatus       string          `json:"to_status,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	EventHash      string          `json:"event_hash"`
	PrevHash       string          `json:"prev_hash,omitempty"`
	ChainHash      string          `json:"chain_hash"`
	SignatureKeyID string          `json:"signature_key_id"`
}

type ListAuditEventsResponse struct {
	Events        []AuditEvent `json:"events"`
	NextPageToken string       `json:"next_page_token,omitempty"`
}

type VerifyAuditChainRequest struct {
	TransactionID string `json:"transaction_id"`
}

type VerifyAuditChainResponse struct {
	TransactionID string `json:"transaction_id"`
	Events        int    `json:"events"`
	HeadHash      string `json:"head_hash"`
	Status        string `json:"status"`
}

func transactionToWire(view service.Transaction) Transaction {
	state := view.State
	parties := make([]Party, 0, len(state.Parties))
	for _, party := range state.Parties {
		wire := Party{Principal: party.Principal, Role: party.Role, HasSigned: party.HasSigned}
		if !party.SignedAt.IsZero() {
			signedAt := party.SignedAt
			wire.SignedAt = &signedAt
		}
		parties = append(parties, wire)
	}
	return Transaction{
		TransactionID:       state.ID,
		Kind:                string(state.Kind),
		Status:              string(view.Status),
		StoredStatus:        string(state.Status),
		Jurisdiction:        state.Jurisdiction,
		AssetIDs:            append([]string(nil), state.AssetIDs...),
		Parties:             parties,
		MetadataFingerprint: state.MetadataFingerprint,
		CreatedBy:           state.CreatedBy,
		ComplianceRefs:      append([]string(nil), state.ComplianceRefs...),
		CreatedAt:           state.CreatedAt,
		UpdatedAt:           state.UpdatedAt,
		ExpiresAt:           state.ExpiresAt,
		Version:             state.Version,
	}
}

func transactionsToWire(views []service.Transaction) []Transaction {
	out := make([]Transaction, 0, len(views))
	for _, view := range views {
		out = append(out, transactionToWire(view))
	}
	return out
}

func auditEventToWire(evt storage.AuditEvent) AuditEvent {
	return AuditEvent{
		TransactionID:  evt.TransactionID,
		Seq:            evt.Seq,
		Type:           string(evt.Type),
		ActorID:        evt.ActorID,
		FromStatus:     string(evt.From),
		ToStatus:       string(evt.To),
		Timestamp:      evt.Timestamp,
		Payload:        evt.PayloadJSON,
		EventHash:      evt.EventHash,
		PrevHash:       evt.PrevHash,
		ChainHash:      evt.ChainHash,
		SignatureKeyID: evt.SignatureKeyID,
	}
}

func createInputFromWire(in *CreateTransactionRequest) service.CreateInput {
	kind := transaction.Kind(in.Kind)
	if parsed, ok := transaction.ParseKind(in.Kind); ok {
		kind = parsed
	}
	parties := make([]transaction.PartyInput, 0, len(in.Parties))
	for _, party := range in.Parties {
		parties = append(parties, transaction.PartyInput{Principal: party.Principal, Role: party.Role})
	}
	return service.CreateInput{
		Kind:                kind,
		Jurisdiction:        in.Jurisdiction,
		AssetIDs:            in.AssetIDs,
		Parties:             parties,
		MetadataFingerprint: in.MetadataFingerprint,
		ExpiresAt:           in.ExpiresAt,
	}
}
