package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/assetflow/internal/platform/grpc/pagination"
	"github.com/louisbranch/assetflow/internal/services/coordinator/domain/transaction"
	"github.com/louisbranch/assetflow/internal/services/coordinator/storage"
	"github.com/louisbranch/assetflow/internal/services/coordinator/storage/cursor"
	"github.com/louisbranch/assetflow/internal/services/coordinator/storage/filter"
	"github.com/louisbranch/assetflow/internal/services/coordinator/storage/integrity"
)

const auditColumns = `transaction_id, seq, event_type, actor_id, from_status, to_status, payload_json,
        timestamp, event_hash, prev_hash, chain_hash, signature_key_id, signature`

var auditOrder = pagination.Ordering{
	Default: pagination.Order{Field: "seq"},
	Fields:  []string{"seq"},
}

// appendAudit chains, signs and inserts events after the transaction's last
// journal entry and queues each one for the relay.
func (s *Store) appendAudit(ctx context.Context, tx *sql.Tx, transactionID string, events []transaction.Event) ([]storage.AuditEvent, error) {
	var (
		lastSeq   int64
		prevChain string
	)
	err := tx.QueryRowContext(ctx,
		`SELECT seq, chain_hash FROM audit_events
		  WHERE transaction_id = ?
		  ORDER BY seq DESC LIMIT 1`,
		transactionID,
	).Scan(&lastSeq, &prevChain)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read audit head: %w", err)
	}

	appended := make([]storage.AuditEvent, 0, len(events))
	for _, evt := range events {
		record := storage.AuditEvent{Event: evt, Seq: lastSeq + 1, PrevHash: prevChain}
		record.EventHash, err = integrity.EventHash(evt)
		if err != nil {
			return nil, fmt.Errorf("event hash: %w", err)
		}
		record.ChainHash, err = integrity.ChainHash(transactionID, record.Seq, record.EventHash, record.PrevHash)
		if err != nil {
			return nil, fmt.Errorf("chain hash: %w", err)
		}
		record.Signature, record.SignatureKeyID, err = s.keyring.SignChainHash(transactionID, record.ChainHash)
		if err != nil {
			return nil, fmt.Errorf("sign chain hash: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO audit_events (`+auditColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			transactionID,
			record.Seq,
			string(evt.Type),
			evt.ActorID,
			string(evt.From),
			string(evt.To),
			[]byte(evt.PayloadJSON),
			toMillis(evt.Timestamp),
			record.EventHash,
			record.PrevHash,
			record.ChainHash,
			record.SignatureKeyID,
			record.Signature,
		); err != nil {
			return nil, fmt.Errorf("append audit event: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO audit_outbox (transaction_id, seq, next_attempt_at) VALUES (?, ?, ?)`,
			transactionID, record.Seq, toMillis(evt.Timestamp),
		); err != nil {
			return nil, fmt.Errorf("enqueue audit event: %w", err)
		}

		lastSeq = record.Seq
		prevChain = record.ChainHash
		appended = append(appended, record)
	}
	return appended, nil
}

func scanAuditEvent(row rowScanner) (storage.AuditEvent, error) {
	var (
		record    storage.AuditEvent
		eventType string
		from      string
		to        string
		payload   []byte
		timestamp int64
	)
	if err := row.Scan(
		&record.TransactionID,
		&record.Seq,
		&eventType,
		&record.ActorID,
		&from,
		&to,
		&payload,
		&timestamp,
		&record.EventHash,
		&record.PrevHash,
		&record.ChainHash,
		&record.SignatureKeyID,
		&record.Signature,
	); err != nil {
		return storage.AuditEvent{}, err
	}
	record.Type = transaction.EventType(eventType)
	record.From = transaction.Status(from)
	record.To = transaction.Status(to)
	record.Timestamp = fromMillis(timestamp)
	if len(payload) > 0 {
		record.PayloadJSON = append([]byte(nil), payload...)
	}
	return record, nil
}

// AuditEvents returns every audit event of a transaction in seq order.
func (s *Store) AuditEvents(ctx context.Context, transactionID string) ([]storage.AuditEvent, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, fmt.Errorf("transaction id is required")
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+auditColumns+`
		   FROM audit_events
		  WHERE transaction_id = ?
		  ORDER BY seq ASC`,
		transactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []storage.AuditEvent
	for rows.Next() {
		record, err := scanAuditEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("list audit events: %w", err)
		}
		events = append(events, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}

// ListAuditEvents returns one filtered page of a transaction's audit events.
func (s *Store) ListAuditEvents(ctx context.Context, query storage.AuditQuery) (storage.AuditEventPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.AuditEventPage{}, err
	}
	transactionID := strings.TrimSpace(query.TransactionID)
	if transactionID == "" {
		return storage.AuditEventPage{}, fmt.Errorf("transaction id is required")
	}
	if query.PageSize <= 0 {
		return storage.AuditEventPage{}, fmt.Errorf("page size must be greater than zero")
	}
	order, err := auditOrder.Parse(query.OrderBy)
	if err != nil {
		return storage.AuditEventPage{}, fmt.Errorf("%w: %v", storage.ErrInvalidQuery, err)
	}
	orderBy, descending := order.String(), order.Desc

	cond, err := filter.ParseAuditFilter(query.Filter)
	if err != nil {
		return storage.AuditEventPage{}, fmt.Errorf("%w: %v", storage.ErrInvalidQuery, err)
	}

	sqlQuery := `SELECT ` + auditColumns + ` FROM audit_events WHERE transaction_id = ?`
	args := []any{transactionID}
	if !cond.Empty() {
		sqlQuery += ` AND (` + cond.Clause + `)`
		args = append(args, cond.Params...)
	}
	if token := strings.TrimSpace(query.PageToken); token != "" {
		c, err := cursor.Decode(token)
		if err != nil {
			return storage.AuditEventPage{}, fmt.Errorf("%w: %v", storage.ErrInvalidQuery, err)
		}
		if err := cursor.ValidateFilterHash(c, query.Filter); err != nil {
			return storage.AuditEventPage{}, fmt.Errorf("%w: %v", storage.ErrInvalidQuery, err)
		}
		if err := cursor.ValidateOrderHash(c, orderBy); err != nil {
			return storage.AuditEventPage{}, fmt.Errorf("%w: %v", storage.ErrInvalidQuery, err)
		}
		if c.Dir == cursor.DirectionBackward {
			sqlQuery += ` AND seq < ?`
		} else {
			sqlQuery += ` AND seq > ?`
		}
		args = append(args, c.Seq)
	}
	if descending {
		sqlQuery += ` ORDER BY seq DESC`
	} else {
		sqlQuery += ` ORDER BY seq ASC`
	}
	sqlQuery += ` LIMIT ?`
	args = append(args, query.PageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return storage.AuditEventPage{}, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	page := storage.AuditEventPage{Events: make([]storage.AuditEvent, 0, query.PageSize)}
	for rows.Next() {
		record, err := scanAuditEvent(rows)
		if err != nil {
			return storage.AuditEventPage{}, fmt.Errorf("list audit events: %w", err)
		}
		page.Events = append(page.Events, record)
	}
	if err := rows.Err(); err != nil {
		return storage.AuditEventPage{}, fmt.Errorf("list audit events: %w", err)
	}
	if len(page.Events) > query.PageSize {
		last := page.Events[query.PageSize-1]
		token, err := cursor.Encode(cursor.NewSeqCursor(last.Seq, descending, query.Filter, orderBy))
		if err != nil {
			return storage.AuditEventPage{}, err
		}
		page.NextPageToken = token
		page.Events = page.Events[:query.PageSize]
	}
	return page, nil
}
