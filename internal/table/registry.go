package table

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

var ErrNotFound = errors.New("table not found")

// Filter narrows ListTables. Zero values match everything.
type Filter struct {
	Zone   string
	Status Status
}

// Registry owns the set of known tables. It performs pure reads and status
// writes; the order/table consistency invariant is enforced one layer up by
// the order service.
type Registry interface {
	GetTable(ctx context.Context, id string) (*Table, error)
	ListTables(ctx context.Context, filter Filter) ([]Table, error)
	SetStatus(ctx context.Context, id string, status Status) (*Table, error)
	Ensure(ctx context.Context, t Table) error
}

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresRegistry struct {
	db DB
}

func NewRegistry(db DB) Registry {
	return &postgresRegistry{db: db}
}

func (r *postgresRegistry) GetTable(ctx context.Context, id string) (*Table, error) {
	query := `
		SELECT id, number, capacity, zone, status
		FROM tpv.tables
		WHERE id = $1
	`

	var t Table
	err := r.db.QueryRow(ctx, query, id).Scan(&t.ID, &t.Number, &t.Capacity, &t.Zone, &t.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("registry: failed to select table %s: %w", id, err)
	}

	return &t, nil
}

func (r *postgresRegistry) ListTables(ctx context.Context, filter Filter) ([]Table, error) {
	query := `
		SELECT id, number, capacity, zone, status
		FROM tpv.tables
		WHERE ($1 = '' OR zone = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY number
	`

	rows, err := r.db.Query(ctx, query, filter.Zone, string(filter.Status))
	if err != nil {
		return nil, fmt.Errorf("registry: failed to query tables: %w", err)
	}
	defer rows.Close()

	tables := make([]Table, 0)
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.ID, &t.Number, &t.Capacity, &t.Zone, &t.Status); err != nil {
			return nil, fmt.Errorf("registry: failed to scan table row: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("registry: error iterating tables: %w", err)
	}

	return tables, nil
}

func (r *postgresRegistry) SetStatus(ctx context.Context, id string, status Status) (*Table, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("registry: unknown table status %q", status)
	}

	query := `
		UPDATE tpv.tables
		SET status = $1
		WHERE id = $2
	`

	cmdTag, err := r.db.Exec(ctx, query, string(status), id)
	if err != nil {
		log.Error().Err(err).Str("table_id", id).Str("status", string(status)).Msg("registry: failed to update table status")
		return nil, fmt.Errorf("registry: failed to update status of table %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	return r.GetTable(ctx, id)
}

// Ensure upserts a table definition from the floor plan. Status is left
// untouched on existing rows so reseeding never frees an occupied table.
func (r *postgresRegistry) Ensure(ctx context.Context, t Table) error {
	query := `
		INSERT INTO tpv.tables (id, number, capacity, zone, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET number = EXCLUDED.number, capacity = EXCLUDED.capacity, zone = EXCLUDED.zone
	`

	status := t.Status
	if status == "" {
		status = StatusFree
	}

	_, err := r.db.Exec(ctx, query, t.ID, t.Number, t.Capacity, t.Zone, string(status))
	if err != nil {
		return fmt.Errorf("registry: failed to upsert table %s: %w", t.ID, err)
	}
	return nil
}
