package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/louisbranch/assetflow/internal/services/coordinator/storage"
)

// ClaimOutbox leases up to limit unpublished entries that are due at now.
// A leased entry is not returned again until now+lease passes.
func (s *Store) ClaimOutbox(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]storage.OutboxEntry, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	var entries []storage.OutboxEntry
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT o.id, o.attempts,
			        e.transaction_id, e.seq, e.event_type, e.actor_id, e.from_status, e.to_status, e.payload_json,
			        e.timestamp, e.event_hash, e.prev_hash, e.chain_hash, e.signature_key_id, e.signature
			   FROM audit_outbox o
			   JOIN audit_events e ON e.transaction_id = o.transaction_id AND e.seq = o.seq
			  WHERE o.published_at IS NULL AND o.next_attempt_at <= ?
			  ORDER BY o.id ASC
			  LIMIT ?`,
			toMillis(now), limit,
		)
		if err != nil {
			return fmt.Errorf("claim outbox: %w", err)
		}
		for rows.Next() {
			var entry storage.OutboxEntry
			record, err := scanAuditEvent(outboxRow{rows: rows, entry: &entry})
			if err != nil {
				_ = rows.Close()
				return fmt.Errorf("claim outbox: %w", err)
			}
			entry.Event = record
			entries = append(entries, entry)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return fmt.Errorf("claim outbox: %w", err)
		}
		_ = rows.Close()

		leaseUntil := toMillis(now.Add(lease))
		for _, entry := range entries {
			if _, err := tx.ExecContext(ctx,
				`UPDATE audit_outbox SET next_attempt_at = ? WHERE id = ?`,
				leaseUntil, entry.ID,
			); err != nil {
				return fmt.Errorf("lease outbox entry: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// outboxRow prepends the outbox columns to an audit event scan.
type outboxRow struct {
	rows  *sql.Rows
	entry *storage.OutboxEntry
}

func (r outboxRow) Scan(dest ...any) error {
	return r.rows.Scan(append([]any{&r.entry.ID, &r.entry.Attempts}, dest...)...)
}

// MarkOutboxPublished records a successful publish.
func (s *Store) MarkOutboxPublished(ctx context.Context, id int64, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE audit_outbox SET published_at = ?, attempts = attempts + 1, last_error = '' WHERE id = ?`,
		toMillis(at), id,
	)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return requireAffected(result)
}

// MarkOutboxFailed records a failed publish and schedules the next attempt.
func (s *Store) MarkOutboxFailed(ctx context.Context, id int64, nextAttempt time.Time, cause string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE audit_outbox SET attempts = attempts + 1, next_attempt_at = ?, last_error = ? WHERE id = ?`,
		toMillis(nextAttempt), cause, id,
	)
	if err != nil {
		return fmt.Errorf("mark outbox failed: %w", err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
