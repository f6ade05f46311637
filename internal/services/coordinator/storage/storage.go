// Package storage defines persistence contracts for the transaction
// coordinator: the aggregate with its party and asset indices, the
// append-only audit journal and the relay outbox.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/assetflow/internal/services/coordinator/domain/transaction"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a transaction id is already taken.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrVersionConflict indicates the aggregate changed since it was read.
	ErrVersionConflict = errors.New("version conflict")
	// ErrInvalidQuery indicates a malformed filter, ordering or page token.
	ErrInvalidQuery = errors.New("invalid query")
)

// Write is one atomic change to a transaction aggregate.
type Write struct {
	// State is the folded aggregate after Events. Its Version is ignored; the
	// store assigns ExpectedVersion+1 when the row changes.
	State transaction.State
	// ExpectedVersion is the version the decision was made against. Zero
	// means the transaction must not exist yet.
	ExpectedVersion int64
	Events          []transaction.Event
}

// TransactionPage is one keyset page of transactions.
type TransactionPage struct {
	Transactions  []transaction.State
	NextPageToken string
}

// TransactionStore persists transaction aggregates and their lookup indices.
type TransactionStore interface {
	GetTransaction(ctx context.Context, transactionID string) (transaction.State, error)
	ListTransactionsByParty(ctx context.Context, principal string, pageSize int, pageToken string) (TransactionPage, error)
	ListTransactionsByAsset(ctx context.Context, assetID string, pageSize int, pageToken string) (TransactionPage, error)
	// ApplyWrite stores the aggregate, its indices and its audit events in
	// one unit and returns the persisted state with the appended events.
	ApplyWrite(ctx context.Context, write Write) (transaction.State, []AuditEvent, error)
}

// AuditEvent is a journaled transaction event with its integrity chain.
type AuditEvent struct {
	transaction.Event
	Seq            int64
	EventHash      string
	PrevHash       string
	ChainHash      string
	SignatureKeyID string
	Signature      string
}

// AuditQuery selects one page of a transaction's audit events.
type AuditQuery struct {
	TransactionID string
	PageSize      int
	PageToken     string
	// OrderBy is "seq" or "seq desc".
	OrderBy string
	// Filter is an AIP-160 expression over type, actor_id, from_status,
	// to_status, seq and ts.
	Filter string
}

// AuditEventPage is one page of audit events.
type AuditEventPage struct {
	Events        []AuditEvent
	NextPageToken string
}

// AuditStore reads the append-only audit journal.
type AuditStore interface {
	ListAuditEvents(ctx context.Context, query AuditQuery) (AuditEventPage, error)
	// AuditEvents returns every event of a transaction in seq order.
	AuditEvents(ctx context.Context, transactionID string) ([]AuditEvent, error)
}

// OutboxEntry is an audit event waiting to be published.
type OutboxEntry struct {
	ID       int64
	Attempts int
	Event    AuditEvent
}

// OutboxStore drives at-least-once publication of audit events.
type OutboxStore interface {
	// ClaimOutbox leases up to limit due entries until now+lease.
	ClaimOutbox(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]OutboxEntry, error)
	MarkOutboxPublished(ctx context.Context, id int64, at time.Time) error
	MarkOutboxFailed(ctx context.Context, id int64, nextAttempt time.Time, cause string) error
}

// Store is the full persistence surface of the coordinator.
type Store interface {
	TransactionStore
	AuditStore
	OutboxStore
	Close() error
}
