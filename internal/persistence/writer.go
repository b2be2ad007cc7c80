package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
)

// OperationLogWriter writes committed pool operations to Postgres using
// multi-row INSERT batches. Writes are idempotent: replays of an already
// persisted sequence are no-ops.
type OperationLogWriter struct {
	db *sql.DB
}

// OperationRow represents a row in pool_log.operations.
type OperationRow struct {
	Sequence    int64
	EventType   string
	OperationID string
	Token       string // empty for global records
	Payload     []byte // JSON-encoded operation payload
	Timestamp   time.Time
}

// execer lets batches run against either the bare DB or a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func NewOperationLogWriter(db *sql.DB) *OperationLogWriter {
	return &OperationLogWriter{db: db}
}

// WriteBatch writes a batch of operation rows within exec.
func (w *OperationLogWriter) WriteBatch(ctx context.Context, exec execer, rows []OperationRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO pool_log.operations
		(sequence, event_type, operation_id, token, payload, created_at)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*6)

	for i, r := range rows {
		base := i * 6
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6,
		))
		args = append(args,
			r.Sequence, r.EventType, r.OperationID, r.Token, r.Payload, r.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING" // idempotent writes

	_, err := exec.ExecContext(ctx, query, args...)
	return err
}

// WriteBatchDB writes a batch directly against the DB, outside a
// transaction. The worker wraps batches in a tx; this is for callers
// that write a single batch.
func (w *OperationLogWriter) WriteBatchDB(ctx context.Context, rows []OperationRow) error {
	return w.WriteBatch(ctx, w.db, rows)
}

// LoadOperationsFrom reads persisted operations starting at fromSequence,
// oldest first, up to limit rows. Used by downstream indexers and the API's
// history endpoint.
func (w *OperationLogWriter) LoadOperationsFrom(ctx context.Context, fromSequence int64, limit int) ([]OperationRow, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT sequence, event_type, operation_id, token, payload, created_at
		FROM pool_log.operations
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OperationRow
	for rows.Next() {
		var r OperationRow
		if err := rows.Scan(&r.Sequence, &r.EventType, &r.OperationID, &r.Token, &r.Payload, &r.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LastSequence returns the highest persisted sequence, or 0 when the log
// is empty. Used at startup to resume record numbering.
func (w *OperationLogWriter) LastSequence(ctx context.Context) (int64, error) {
	var seq int64
	err := w.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) FROM pool_log.operations`,
	).Scan(&seq)
	return seq, err
}

// MarshalPayload JSON-encodes an operation payload for storage.
func MarshalPayload(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("WARN: failed to marshal payload: %v", err)
		return []byte("{}")
	}
	return data
}
