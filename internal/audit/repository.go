package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	ActionStatusToggled    = "CARWASH_STATUS_TOGGLED"
	ActionStatusNormalized = "CARWASH_STATUS_NORMALIZED"
)

type Entry struct {
	ID        int64           `json:"id"`
	CarwashID *int64          `json:"carwashId,omitempty"`
	Action    string          `json:"action"`
	Actor     string          `json:"actor"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

func Insert(ctx context.Context, tx pgx.Tx, carwashID *int64, action, actor string, metadata any) error {
	var s *string
	if metadata != nil {
		b, _ := json.Marshal(metadata)
		str := string(b)
		s = &str
	}
	const q = `
INSERT INTO audit_logs (carwash_id, action, actor, metadata)
VALUES ($1, $2, $3, CAST($4 AS jsonb))
`
	_, err := tx.Exec(ctx, q, carwashID, action, actor, s)
	return err
}

// ListByCarwash returns the newest entries first.
func ListByCarwash(ctx context.Context, db *pgxpool.Pool, carwashID int64, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const q = `
SELECT id, carwash_id, action, actor, COALESCE(metadata, '{}'::jsonb), created_at
FROM audit_logs
WHERE carwash_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`
	rows, err := db.Query(ctx, q, carwashID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.CarwashID, &e.Action, &e.Actor, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
