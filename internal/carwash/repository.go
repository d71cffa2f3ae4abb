package carwash

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"carwash/internal/audit"
	"carwash/pkg/db"
)

var ErrNotFound = errors.New("carwash not found")

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const selectColumns = `
id, user_id, name, COALESCE(status, ''), COALESCE(is_active, 0) = 1,
COALESCE(phone, ''), COALESCE(address, ''), COALESCE(logo_path, ''), created_at, updated_at
`

func scan(row pgx.Row) (*Carwash, error) {
	c := &Carwash{}
	if err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.Status, &c.IsActive,
		&c.Phone, &c.Address, &c.LogoPath, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*Carwash, error) {
	q := `SELECT ` + selectColumns + ` FROM carwashes WHERE id = $1`
	return scan(r.db.QueryRow(ctx, q, id))
}

func (r *Repository) GetByOwner(ctx context.Context, userID int64) (*Carwash, error) {
	q := `SELECT ` + selectColumns + ` FROM carwashes WHERE user_id = $1`
	return scan(r.db.QueryRow(ctx, q, userID))
}

// Create registers a carwash with its status written in canonical form.
func (r *Repository) Create(ctx context.Context, userID int64, name string, st OpenState) (*Carwash, error) {
	token, active := Canonical(st)
	q := `
INSERT INTO carwashes (user_id, name, status, is_active)
VALUES ($1, $2, $3, $4)
RETURNING ` + selectColumns
	return scan(r.db.QueryRow(ctx, q, userID, name, token, boolToInt(active)))
}

// ListVisible returns carwashes customers may book, ordered by name. Filtering goes through
// Visible so listing and booking validation cannot disagree.
func (r *Repository) ListVisible(ctx context.Context) ([]Carwash, error) {
	q := `SELECT ` + selectColumns + ` FROM carwashes ORDER BY name ASC, id ASC`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Carwash{}
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, err
		}
		if c.Visible() {
			out = append(out, *c)
		}
	}
	return out, rows.Err()
}

// SetStatus writes the canonical token for st and keeps is_active in sync.
func (r *Repository) SetStatus(ctx context.Context, id int64, st OpenState, actor string) (*Carwash, error) {
	if st == StateUnknown {
		return nil, ErrUnknownToken
	}
	token, active := Canonical(st)

	var out *Carwash
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var prev string
		if err := tx.QueryRow(ctx, `SELECT COALESCE(status, '') FROM carwashes WHERE id = $1 FOR UPDATE`, id).Scan(&prev); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		q := `
UPDATE carwashes SET status = $2, is_active = $3, updated_at = NOW()
WHERE id = $1
RETURNING ` + selectColumns
		c, err := scan(tx.QueryRow(ctx, q, id, token, boolToInt(active)))
		if err != nil {
			return err
		}
		out = c

		cid := id
		return audit.Insert(ctx, tx, &cid, audit.ActionStatusToggled, actor, map[string]any{"from": prev, "to": token})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Normalize collapses legacy status tokens into the canonical ones. Each row is rewritten in
// its own transaction guarded by the status it was read with; a row that changed meanwhile is
// left for the next run.
func (r *Repository) Normalize(ctx context.Context, actor string, log logrus.FieldLogger) (NormalizeReport, error) {
	rows, err := r.db.Query(ctx, `SELECT id, COALESCE(status, ''), COALESCE(is_active, 0) = 1 FROM carwashes ORDER BY id`)
	if err != nil {
		return NormalizeReport{}, err
	}
	var all []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.ID, &row.Status, &row.IsActive); err != nil {
			rows.Close()
			return NormalizeReport{}, err
		}
		all = append(all, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return NormalizeReport{}, err
	}

	changes, rep := PlanNormalization(all)
	for _, ch := range changes {
		if err := r.applyChange(ctx, ch, actor); err != nil {
			rep.Failed++
			log.WithFields(logrus.Fields{"carwash_id": ch.ID, "from": ch.From}).WithError(err).Warn("normalize: row failed")
			continue
		}
		log.WithFields(logrus.Fields{"carwash_id": ch.ID, "from": ch.From, "to": ch.To}).Info("normalize: row rewritten")
	}
	return rep, nil
}

func (r *Repository) applyChange(ctx context.Context, ch Change, actor string) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		const q = `
UPDATE carwashes SET status = $2, is_active = $3, updated_at = NOW()
WHERE id = $1 AND COALESCE(status, '') = $4
`
		tag, err := tx.Exec(ctx, q, ch.ID, ch.To, boolToInt(ch.IsActive), ch.From)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("status changed concurrently")
		}
		cid := ch.ID
		return audit.Insert(ctx, tx, &cid, audit.ActionStatusNormalized, actor, map[string]any{"from": ch.From, "to": ch.To})
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
