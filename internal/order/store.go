package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// Store is the thin persistence mapping for orders and their lines. No
// business rules live here: the service decides what may happen, the store
// records it. Every line write recomputes the stored total in the same
// transaction, so readers never observe lines that disagree with the total.
type Store interface {
	CreateOrder(ctx context.Context, tableID, openedBy string) (*Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	FindActiveOrder(ctx context.Context, tableID string) (*Order, error)
	AppendLine(ctx context.Context, orderID uuid.UUID, line Line) (*Order, error)
	RemoveLine(ctx context.Context, orderID uuid.UUID, productID string) (*Order, error)
	SetLineQuantity(ctx context.Context, orderID uuid.UUID, productID string, quantity int) (*Order, error)
	SetStatus(ctx context.Context, orderID uuid.UUID, status Status) (*Order, error)
}

type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// querier is the read surface shared by DB and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresStore struct {
	db DB
}

func NewStore(db DB) Store {
	return &postgresStore{db: db}
}

func (s *postgresStore) CreateOrder(ctx context.Context, tableID, openedBy string) (*Order, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("store: failed to generate order id: %w", err)
	}

	openedAt := time.Now().UTC()

	query := `
		INSERT INTO tpv.orders (id, table_id, opened_by, opened_at, status, total)
		VALUES ($1, $2, $3, $4, $5, 0)
	`

	_, err = s.db.Exec(ctx, query, id, tableID, openedBy, openedAt, string(StatusOpen))
	if err != nil {
		// The partial unique index on (table_id) WHERE status IN
		// ('open','saved') backs the one-active-order-per-table invariant.
		// Losing that race means another caller opened the table first, so
		// their order is the authoritative one.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			log.Warn().Str("table_id", tableID).Msg("store: active order already exists, returning it")
			existing, findErr := s.FindActiveOrder(ctx, tableID)
			if findErr != nil {
				return nil, findErr
			}
			if existing != nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("store: failed to insert order for table %s: %w", tableID, err)
	}

	return s.GetOrder(ctx, id)
}

func (s *postgresStore) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	return getOrder(ctx, s.db, id)
}

func (s *postgresStore) FindActiveOrder(ctx context.Context, tableID string) (*Order, error) {
	query := `
		SELECT id
		FROM tpv.orders
		WHERE table_id = $1 AND status IN ($2, $3)
		ORDER BY opened_at DESC
		LIMIT 1
	`

	var id uuid.UUID
	err := s.db.QueryRow(ctx, query, tableID, string(StatusOpen), string(StatusSaved)).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// A table with no current order is a normal state, not an error.
			return nil, nil
		}
		return nil, fmt.Errorf("store: failed to find active order for table %s: %w", tableID, err)
	}

	return s.GetOrder(ctx, id)
}

func (s *postgresStore) AppendLine(ctx context.Context, orderID uuid.UUID, line Line) (*Order, error) {
	return s.mutateLines(ctx, orderID, func(tx pgx.Tx) error {
		query := `
			INSERT INTO tpv.order_lines (order_id, product_id, product_name, unit_price, quantity, added_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (order_id, product_id) DO UPDATE
			SET quantity = order_lines.quantity + EXCLUDED.quantity
		`
		_, err := tx.Exec(ctx, query, orderID, line.ProductID, line.ProductName, line.UnitPrice, line.Quantity, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("store: failed to append line %s to order %s: %w", line.ProductID, orderID, err)
		}
		return nil
	})
}

func (s *postgresStore) RemoveLine(ctx context.Context, orderID uuid.UUID, productID string) (*Order, error) {
	return s.mutateLines(ctx, orderID, func(tx pgx.Tx) error {
		// Deleting an absent line is a no-op by contract.
		query := `DELETE FROM tpv.order_lines WHERE order_id = $1 AND product_id = $2`
		_, err := tx.Exec(ctx, query, orderID, productID)
		if err != nil {
			return fmt.Errorf("store: failed to remove line %s from order %s: %w", productID, orderID, err)
		}
		return nil
	})
}

func (s *postgresStore) SetLineQuantity(ctx context.Context, orderID uuid.UUID, productID string, quantity int) (*Order, error) {
	if quantity <= 0 {
		return s.RemoveLine(ctx, orderID, productID)
	}

	return s.mutateLines(ctx, orderID, func(tx pgx.Tx) error {
		query := `
			UPDATE tpv.order_lines
			SET quantity = $1
			WHERE order_id = $2 AND product_id = $3
		`
		_, err := tx.Exec(ctx, query, quantity, orderID, productID)
		if err != nil {
			return fmt.Errorf("store: failed to set quantity of line %s on order %s: %w", productID, orderID, err)
		}
		return nil
	})
}

func (s *postgresStore) SetStatus(ctx context.Context, orderID uuid.UUID, status Status) (*Order, error) {
	// Only a live order may change status. The guard makes a lost race
	// against a concurrent close surface as OrderClosed instead of
	// silently re-closing the row.
	query := `
		UPDATE tpv.orders
		SET status = $1
		WHERE id = $2 AND status IN ('open', 'saved')
	`

	cmdTag, err := s.db.Exec(ctx, query, string(status), orderID)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Str("status", string(status)).Msg("store: failed to update order status")
		return nil, fmt.Errorf("store: failed to update status of order %s: %w", orderID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		current, getErr := s.GetOrder(ctx, orderID)
		if getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: order %s is %s", ErrOrderClosed, orderID, current.Status)
	}

	return s.GetOrder(ctx, orderID)
}

// mutateLines runs a line mutation and the total recompute in one
// transaction and returns the resulting order as the transaction saw it.
func (s *postgresStore) mutateLines(ctx context.Context, orderID uuid.UUID, mutate func(tx pgx.Tx) error) (result *Order, err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Stringer("order_id", orderID).Msg("store: failed to rollback transaction")
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			result = nil
			err = fmt.Errorf("store: failed to commit transaction: %w", commitErr)
		}
	}()

	// Existence check up front so an unknown order id surfaces as not-found
	// instead of a silent zero-row mutation.
	var exists bool
	if err = tx.QueryRow(ctx, `SELECT true FROM tpv.orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = ErrOrderNotFound
		} else {
			err = fmt.Errorf("store: failed to lock order %s: %w", orderID, err)
		}
		return nil, err
	}

	if err = mutate(tx); err != nil {
		return nil, err
	}

	recompute := `
		UPDATE tpv.orders
		SET total = COALESCE((
			SELECT SUM(unit_price * quantity)
			FROM tpv.order_lines
			WHERE order_id = $1
		), 0)
		WHERE id = $1
	`
	if _, err = tx.Exec(ctx, recompute, orderID); err != nil {
		return nil, fmt.Errorf("store: failed to recompute total of order %s: %w", orderID, err)
	}

	result, err = getOrder(ctx, tx, orderID)
	return result, err
}

func getOrder(ctx context.Context, q querier, id uuid.UUID) (*Order, error) {
	query := `
		SELECT id, table_id, opened_by, opened_at, status, total
		FROM tpv.orders
		WHERE id = $1
	`

	var o Order
	err := q.QueryRow(ctx, query, id).Scan(&o.ID, &o.TableID, &o.OpenedBy, &o.OpenedAt, &o.Status, &o.Total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("store: failed to select order %s: %w", id, err)
	}

	linesQuery := `
		SELECT product_id, product_name, unit_price, quantity
		FROM tpv.order_lines
		WHERE order_id = $1
		ORDER BY added_at, product_id
	`

	rows, err := q.Query(ctx, linesQuery, id)
	if err != nil {
		return nil, fmt.Errorf("store: failed to query lines of order %s: %w", id, err)
	}
	defer rows.Close()

	lines := make([]Line, 0)
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ProductID, &l.ProductName, &l.UnitPrice, &l.Quantity); err != nil {
			return nil, fmt.Errorf("store: failed to scan line of order %s: %w", id, err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: error iterating lines of order %s: %w", id, err)
	}

	o.Lines = lines
	return &o, nil
}
