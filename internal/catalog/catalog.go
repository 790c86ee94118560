package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("product not found")

// Product is a catalog entry at lookup time. Orders denormalize Name and
// Price into their lines, so later catalog edits never rewrite history.
type Product struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Catalog is the product lookup collaborator consumed by the order service.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
}

type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresCatalog struct {
	db DB
}

func NewCatalog(db DB) Catalog {
	return &postgresCatalog{db: db}
}

func (c *postgresCatalog) GetProduct(ctx context.Context, id string) (*Product, error) {
	query := `
		SELECT id, name, price
		FROM tpv.products
		WHERE id = $1 AND active
	`

	var p Product
	err := c.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("catalog: failed to select product %s: %w", id, err)
	}

	return &p, nil
}
