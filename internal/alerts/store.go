package alerts

import (
	"context"
	"database/sql"
	"time"

	"github.com/evertrust/banking/internal/models"
)

// Store persists alerts. Rows are append-only apart from the read flag.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Insert(ctx context.Context, a *models.Alert) error {
	a.CreatedAt = time.Now()
	return s.db.QueryRowContext(ctx, `
		INSERT INTO alerts (user_id, type, message, read, created_at)
		VALUES ($1, $2, $3, false, $4)
		RETURNING id`,
		a.UserID, a.Type, a.Message, a.CreatedAt).Scan(&a.ID)
}

func (s *Store) ListByUser(ctx context.Context, userID int64, limit int) ([]models.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, message, read, created_at
		FROM alerts
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := []models.Alert{}
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &a.Message, &a.Read, &a.CreatedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// MarkRead flips the read flag; reports sql.ErrNoRows when the alert
// does not exist or belongs to another user.
func (s *Store) MarkRead(ctx context.Context, alertID, userID int64) (*models.Alert, error) {
	var a models.Alert
	err := s.db.QueryRowContext(ctx, `
		UPDATE alerts
		SET read = true
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, type, message, read, created_at`, alertID, userID).
		Scan(&a.ID, &a.UserID, &a.Type, &a.Message, &a.Read, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
