package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("service not found")

// Service is a priced offering of one carwash.
type Service struct {
	ID              int64           `json:"id"`
	CarwashID       int64           `json:"carwashId"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	Price           decimal.Decimal `json:"price"`
	DurationMinutes int             `json:"durationMinutes"`
	IsActive        bool            `json:"isActive"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const selectColumns = `
id, carwash_id, name, COALESCE(description, ''), price::text, duration_minutes, is_active, created_at, updated_at
`

func scan(row pgx.Row) (*Service, error) {
	var (
		s     Service
		price string
	)
	if err := row.Scan(
		&s.ID, &s.CarwashID, &s.Name, &s.Description, &price, &s.DurationMinutes, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, err
	}
	s.Price = p
	return &s, nil
}

// Get returns an active service only when it belongs to carwashID.
func (r *Repository) Get(ctx context.Context, carwashID, serviceID int64) (*Service, error) {
	q := `SELECT ` + selectColumns + ` FROM services WHERE id = $1 AND carwash_id = $2 AND is_active`
	return scan(r.db.QueryRow(ctx, q, serviceID, carwashID))
}

func (r *Repository) ListByCarwash(ctx context.Context, carwashID int64) ([]Service, error) {
	q := `SELECT ` + selectColumns + ` FROM services WHERE carwash_id = $1 AND is_active ORDER BY name ASC, id ASC`
	rows, err := r.db.Query(ctx, q, carwashID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Service{}
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *Repository) Create(ctx context.Context, carwashID int64, name string, price decimal.Decimal, durationMinutes int) (*Service, error) {
	if durationMinutes <= 0 {
		durationMinutes = 30
	}
	q := `
INSERT INTO services (carwash_id, name, price, duration_minutes)
VALUES ($1, $2, CAST($3 AS numeric), $4)
RETURNING ` + selectColumns
	return scan(r.db.QueryRow(ctx, q, carwashID, name, price.StringFixed(2), durationMinutes))
}
