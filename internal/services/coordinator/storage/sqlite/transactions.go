package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/assetflow/internal/services/coordinator/domain/transaction"
	"github.com/louisbranch/assetflow/internal/services/coordinator/storage"
	"github.com/louisbranch/assetflow/internal/services/coordinator/storage/cursor"
)

const transactionColumns = `t.transaction_id, t.kind, t.status, t.jurisdiction, t.metadata_fingerprint,
        t.created_by, t.compliance_refs, t.created_at, t.updated_at, t.expires_at, t.version`

// GetTransaction returns one transaction aggregate with its parties and assets.
func (s *Store) GetTransaction(ctx context.Context, transactionID string) (transaction.State, error) {
	if err := s.ready(ctx); err != nil {
		return transaction.State{}, err
	}
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return transaction.State{}, fmt.Errorf("transaction id is required")
	}
	return getTransaction(ctx, s.sqlDB, transactionID)
}

func getTransaction(ctx context.Context, q queryer, transactionID string) (transaction.State, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+`
		   FROM transactions t
		  WHERE t.transaction_id = ?`,
		transactionID,
	)
	state, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return transaction.State{}, storage.ErrNotFound
		}
		return transaction.State{}, fmt.Errorf("get transaction: %w", err)
	}
	if err := loadChildren(ctx, q, &state); err != nil {
		return transaction.State{}, err
	}
	return state, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (transaction.State, error) {
	var (
		state     transaction.State
		kind      string
		status    string
		refs      string
		createdAt int64
		updatedAt int64
		expiresAt sql.NullInt64
	)
	if err := row.Scan(
		&state.ID,
		&kind,
		&status,
		&state.Jurisdiction,
		&state.MetadataFingerprint,
		&state.CreatedBy,
		&refs,
		&createdAt,
		&updatedAt,
		&expiresAt,
		&state.Version,
	); err != nil {
		return transaction.State{}, err
	}
	state.Created = true
	state.Kind = transaction.Kind(kind)
	state.Status = transaction.Status(status)
	state.CreatedAt = fromMillis(createdAt)
	state.UpdatedAt = fromMillis(updatedAt)
	state.ExpiresAt = fromNullMillis(expiresAt)
	if refs != "" {
		if err := json.Unmarshal([]byte(refs), &state.ComplianceRefs); err != nil {
			return transaction.State{}, fmt.Errorf("decode compliance refs: %w", err)
		}
	}
	return state, nil
}

func loadChildren(ctx context.Context, q queryer, state *transaction.State) error {
	rows, err := q.QueryContext(ctx,
		`SELECT principal, role, has_signed, signed_at
		   FROM transaction_parties
		  WHERE transaction_id = ?
		  ORDER BY position ASC`,
		state.ID,
	)
	if err != nil {
		return fmt.Errorf("load parties: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			party    transaction.Party
			signed   int
			signedAt sql.NullInt64
		)
		if err := rows.Scan(&party.Principal, &party.Role, &signed, &signedAt); err != nil {
			return fmt.Errorf("load parties: %w", err)
		}
		party.HasSigned = signed != 0
		if signedAt.Valid {
			party.SignedAt = fromMillis(signedAt.Int64)
		}
		state.Parties = append(state.Parties, party)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load parties: %w", err)
	}

	assetRows, err := q.QueryContext(ctx,
		`SELECT asset_id
		   FROM transaction_assets
		  WHERE transaction_id = ?
		  ORDER BY position ASC`,
		state.ID,
	)
	if err != nil {
		return fmt.Errorf("load assets: %w", err)
	}
	defer assetRows.Close()
	for assetRows.Next() {
		var assetID string
		if err := assetRows.Scan(&assetID); err != nil {
			return fmt.Errorf("load assets: %w", err)
		}
		state.AssetIDs = append(state.AssetIDs, assetID)
	}
	if err := assetRows.Err(); err != nil {
		return fmt.Errorf("load assets: %w", err)
	}
	return nil
}

// ListTransactionsByParty returns transactions naming principal, oldest first.
func (s *Store) ListTransactionsByParty(ctx context.Context, principal string, pageSize int, pageToken string) (storage.TransactionPage, error) {
	principal = strings.TrimSpace(principal)
	if principal == "" {
		return storage.TransactionPage{}, fmt.Errorf("principal is required")
	}
	return s.listByIndex(ctx, "transaction_parties", "principal", principal, pageSize, pageToken)
}

// ListTransactionsByAsset returns transactions covering assetID, oldest first.
func (s *Store) ListTransactionsByAsset(ctx context.Context, assetID string, pageSize int, pageToken string) (storage.TransactionPage, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return storage.TransactionPage{}, fmt.Errorf("asset id is required")
	}
	return s.listByIndex(ctx, "transaction_assets", "asset_id", assetID, pageSize, pageToken)
}

// listByIndex pages one secondary index keyed by (created_at, transaction_id).
// table and column are fixed identifiers, never caller input.
func (s *Store) listByIndex(ctx context.Context, table, column, key string, pageSize int, pageToken string) (storage.TransactionPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.TransactionPage{}, err
	}
	if pageSize <= 0 {
		return storage.TransactionPage{}, fmt.Errorf("page size must be greater than zero")
	}
	scope := column + ":" + key

	query := `SELECT ` + transactionColumns + `
	   FROM ` + table + ` i
	   JOIN transactions t ON t.transaction_id = i.transaction_id
	  WHERE i.` + column + ` = ?`
	args := []any{key}
	if token := strings.TrimSpace(pageToken); token != "" {
		c, err := cursor.Decode(token)
		if err != nil {
			return storage.TransactionPage{}, fmt.Errorf("%w: %v", storage.ErrInvalidQuery, err)
		}
		if err := cursor.ValidateFilterHash(c, scope); err != nil {
			return storage.TransactionPage{}, fmt.Errorf("%w: %v", storage.ErrInvalidQuery, err)
		}
		query += ` AND (i.created_at > ? OR (i.created_at = ? AND i.transaction_id > ?))`
		args = append(args, c.CreatedAt, c.CreatedAt, c.ID)
	}
	query += ` ORDER BY i.created_at ASC, i.transaction_id ASC LIMIT ?`
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.TransactionPage{}, fmt.Errorf("list transactions: %w", err)
	}
	page := storage.TransactionPage{Transactions: make([]transaction.State, 0, pageSize)}
	for rows.Next() {
		state, err := scanTransaction(rows)
		if err != nil {
			_ = rows.Close()
			return storage.TransactionPage{}, fmt.Errorf("list transactions: %w", err)
		}
		page.Transactions = append(page.Transactions, state)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return storage.TransactionPage{}, fmt.Errorf("list transactions: %w", err)
	}
	_ = rows.Close()

	if len(page.Transactions) > pageSize {
		last := page.Transactions[pageSize-1]
		token, err := cursor.Encode(cursor.NewKeysetCursor(toMillis(last.CreatedAt), last.ID, scope))
		if err != nil {
			return storage.TransactionPage{}, err
		}
		page.NextPageToken = token
		page.Transactions = page.Transactions[:pageSize]
	}
	for i := range page.Transactions {
		if err := loadChildren(ctx, s.sqlDB, &page.Transactions[i]); err != nil {
			return storage.TransactionPage{}, err
		}
	}
	return page, nil
}

// ApplyWrite stores the aggregate, its indices and audit events atomically.
func (s *Store) ApplyWrite(ctx context.Context, write storage.Write) (transaction.State, []storage.AuditEvent, error) {
	if err := s.ready(ctx); err != nil {
		return transaction.State{}, nil, err
	}
	state := write.State.Clone()
	if strings.TrimSpace(state.ID) == "" {
		return transaction.State{}, nil, fmt.Errorf("transaction id is required")
	}
	if len(write.Events) == 0 {
		return transaction.State{}, nil, fmt.Errorf("at least one event is required")
	}
	for _, evt := range write.Events {
		if evt.TransactionID != state.ID {
			return transaction.State{}, nil, fmt.Errorf("event transaction id %q does not match %q", evt.TransactionID, state.ID)
		}
	}

	var appended []storage.AuditEvent
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if write.ExpectedVersion == 0 {
			err = insertTransaction(ctx, tx, state)
			state.Version = 1
		} else {
			state.Version, err = updateTransaction(ctx, tx, state, write)
		}
		if err != nil {
			return err
		}
		appended, err = s.appendAudit(ctx, tx, state.ID, write.Events)
		return err
	})
	if err != nil {
		return transaction.State{}, nil, err
	}
	return state, appended, nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, state transaction.State) error {
	refs, err := encodeRefs(state.ComplianceRefs)
	if err != nil {
		return err
	}
	createdAt := toMillis(state.CreatedAt)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (
		   transaction_id, kind, status, jurisdiction, metadata_fingerprint,
		   created_by, compliance_refs, created_at, updated_at, expires_at, version
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		state.ID,
		string(state.Kind),
		string(state.Status),
		state.Jurisdiction,
		state.MetadataFingerprint,
		state.CreatedBy,
		refs,
		createdAt,
		toMillis(state.UpdatedAt),
		toNullMillis(state.ExpiresAt),
	); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	for i, party := range state.Parties {
		var signedAt sql.NullInt64
		if party.HasSigned {
			signedAt = sql.NullInt64{Int64: toMillis(party.SignedAt), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transaction_parties (transaction_id, principal, role, position, has_signed, signed_at, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			state.ID, party.Principal, party.Role, i, boolToInt(party.HasSigned), signedAt, createdAt,
		); err != nil {
			return fmt.Errorf("insert party: %w", err)
		}
	}
	for i, assetID := range state.AssetIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transaction_assets (transaction_id, asset_id, position, created_at)
			 VALUES (?, ?, ?, ?)`,
			state.ID, assetID, i, createdAt,
		); err != nil {
			return fmt.Errorf("insert asset: %w", err)
		}
	}
	return nil
}

// updateTransaction applies the optimistic version check and returns the
// version after the write.
func updateTransaction(ctx context.Context, tx *sql.Tx, state transaction.State, write storage.Write) (int64, error) {
	mutates := false
	for _, evt := range write.Events {
		if evt.MutatesState() {
			mutates = true
			break
		}
	}
	if !mutates {
		var current int64
		err := tx.QueryRowContext(ctx, `SELECT version FROM transactions WHERE transaction_id = ?`, state.ID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, storage.ErrNotFound
		}
		if err != nil {
			return 0, fmt.Errorf("read version: %w", err)
		}
		if current != write.ExpectedVersion {
			return 0, storage.ErrVersionConflict
		}
		return current, nil
	}

	refs, err := encodeRefs(state.ComplianceRefs)
	if err != nil {
		return 0, err
	}
	result, err := tx.ExecContext(ctx,
		`UPDATE transactions
		    SET status = ?, compliance_refs = ?, updated_at = ?, version = version + 1
		  WHERE transaction_id = ? AND version = ?`,
		string(state.Status), refs, toMillis(state.UpdatedAt), state.ID, write.ExpectedVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("update transaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update transaction: %w", err)
	}
	if affected == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM transactions WHERE transaction_id = ?`, state.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, storage.ErrNotFound
		}
		return 0, storage.ErrVersionConflict
	}

	// Signatures are monotonic: a signed row is never reset.
	for _, party := range state.Parties {
		if !party.HasSigned {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE transaction_parties
			    SET has_signed = 1, signed_at = ?
			  WHERE transaction_id = ? AND principal = ? AND has_signed = 0`,
			toMillis(party.SignedAt), state.ID, party.Principal,
		); err != nil {
			return 0, fmt.Errorf("update party: %w", err)
		}
	}
	return write.ExpectedVersion + 1, nil
}

func encodeRefs(refs []string) (string, error) {
	if refs == nil {
		refs = []string{}
	}
	data, err := json.Marshal(refs)
	if err != nil {
		return "", fmt.Errorf("encode compliance refs: %w", err)
	}
	return string(data), nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
