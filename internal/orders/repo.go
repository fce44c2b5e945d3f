package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists order documents. Lookups by id return (nil, nil) when
// the order does not exist.
type Repository interface {
	FindAll(ctx context.Context) ([]Order, error)
	FindByID(ctx context.Context, id string) (*Order, error)
	Insert(ctx context.Context, f Fields) (*Order, error)
	UpdateByID(ctx context.Context, id string, f Fields) (*Order, error)
	DeleteByID(ctx context.Context, id string) (*Order, error)
}

// PostgresRepo keeps each order as a JSONB document in the orders table.
type PostgresRepo struct{ DB *pgxpool.Pool }

const orderColumns = `id::text, doc, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var (
		o   Order
		doc []byte
	)
	if err := row.Scan(&o.ID, &doc, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(doc, &o.Fields); err != nil {
		return nil, fmt.Errorf("decode order %s: %w", o.ID, err)
	}
	return &o, nil
}

// parseID reports whether id can name a stored order at all. Anything that
// is not a UUID simply does not exist.
func parseID(id string) (string, bool) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return u.String(), true
}

func (r *PostgresRepo) FindAll(ctx context.Context) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) FindByID(ctx context.Context, id string) (*Order, error) {
	uid, ok := parseID(id)
	if !ok {
		return nil, nil
	}
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, uid))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

func (r *PostgresRepo) Insert(ctx context.Context, f Fields) (*Order, error) {
	doc, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return scanOrder(r.DB.QueryRow(ctx, `
		INSERT INTO orders (doc) VALUES ($1::jsonb)
		RETURNING `+orderColumns, doc))
}

// UpdateByID merges f into the stored document.
func (r *PostgresRepo) UpdateByID(ctx context.Context, id string, f Fields) (*Order, error) {
	uid, ok := parseID(id)
	if !ok {
		return nil, nil
	}
	doc, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	o, err := scanOrder(r.DB.QueryRow(ctx, `
		UPDATE orders SET doc = doc || $2::jsonb, updated_at = now()
		WHERE id=$1
		RETURNING `+orderColumns, uid, doc))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

func (r *PostgresRepo) DeleteByID(ctx context.Context, id string) (*Order, error) {
	uid, ok := parseID(id)
	if !ok {
		return nil, nil
	}
	o, err := scanOrder(r.DB.QueryRow(ctx, `DELETE FROM orders WHERE id=$1 RETURNING `+orderColumns, uid))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return o, err
}
