package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"
)

// Recorder appends entries to the audit_log table. It is a best-effort
// sink: a failed write is logged and swallowed, never surfaced to the
// business operation that triggered it.
type Recorder struct {
	db *sql.DB
}

func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

func (r *Recorder) Record(ctx context.Context, userID int64, entity string, entityID int64, payload Payload) {
	metadata, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[AUDIT] %s: failed to encode metadata: %v", payload.Action(), err)
		metadata = nil
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_log (user_id, action, entity, entity_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		userID, payload.Action(), entity, entityID, metadata, time.Now())
	if err != nil {
		log.Printf("[AUDIT] %s: write failed: %v", payload.Action(), err)
	}
}

// EventsByUser supports the audit export surface; reads never lock.
func (r *Recorder) EventsByUser(ctx context.Context, userID int64, limit, offset int) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, action, entity, entity_id, metadata, created_at
		FROM audit_log
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var entityID sql.NullInt64
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Entity, &entityID, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.EntityID = entityID.Int64
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type Entry struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Action    string          `json:"action"`
	Entity    string          `json:"entity"`
	EntityID  int64           `json:"entity_id,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
