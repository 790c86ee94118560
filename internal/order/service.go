package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jortega-dev/comandero/internal/catalog"
	"github.com/jortega-dev/comandero/internal/table"
)

// Service owns the order lifecycle rules: when a table may be opened, which
// mutations a status permits, and the table status side effects of paying or
// cancelling. Operations that change the table return it alongside the order
// so callers can report both without a second read.
type Service interface {
	OpenTable(ctx context.Context, tableID, openedBy string) (*Order, *table.Table, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	ActiveOrder(ctx context.Context, tableID string) (*Order, error)
	AddLine(ctx context.Context, orderID uuid.UUID, productID string, quantity int) (*Order, error)
	RemoveLine(ctx context.Context, orderID uuid.UUID, productID string) (*Order, error)
	SetQuantity(ctx context.Context, orderID uuid.UUID, productID string, quantity int) (*Order, error)
	SaveOrder(ctx context.Context, orderID uuid.UUID) (*Order, error)
	PayOrder(ctx context.Context, orderID uuid.UUID) (*Order, *table.Table, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID) (*Order, *table.Table, error)
}

type service struct {
	store    Store
	tables   table.Registry
	products catalog.Catalog
}

func NewService(store Store, tables table.Registry, products catalog.Catalog) Service {
	return &service{
		store:    store,
		tables:   tables,
		products: products,
	}
}

// OpenTable returns the table's active order, creating one and occupying the
// table when none exists. Opening an already-open table is idempotent.
func (s *service) OpenTable(ctx context.Context, tableID, openedBy string) (*Order, *table.Table, error) {
	if tableID == "" {
		return nil, nil, fmt.Errorf("%w: table id is required", ErrValidation)
	}

	tbl, err := s.tables.GetTable(ctx, tableID)
	if err != nil {
		if errors.Is(err, table.ErrNotFound) {
			log.Warn().Str("table_id", tableID).Msg("service: cannot open unknown table")
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("service: failed to fetch table %s: %w", tableID, err)
	}

	existing, err := s.store.FindActiveOrder(ctx, tableID)
	if err != nil {
		return nil, nil, fmt.Errorf("service: failed to look up active order for table %s: %w", tableID, err)
	}
	if existing != nil {
		// An earlier open may have crashed between creating the order and
		// occupying the table. Re-assert occupied here so a retry repairs
		// the table instead of returning with the order live and the
		// table still free.
		if tbl.Status != table.StatusOccupied {
			tbl, err = s.tables.SetStatus(ctx, tableID, table.StatusOccupied)
			if err != nil {
				return nil, nil, fmt.Errorf("service: failed to occupy table %s: %w", tableID, err)
			}
		}
		return existing, tbl, nil
	}

	created, err := s.store.CreateOrder(ctx, tableID, openedBy)
	if err != nil {
		log.Error().Err(err).Str("table_id", tableID).Msg("service: failed to create order")
		return nil, nil, fmt.Errorf("service: failed to create order for table %s: %w", tableID, err)
	}

	tbl, err = s.tables.SetStatus(ctx, tableID, table.StatusOccupied)
	if err != nil {
		return nil, nil, fmt.Errorf("service: failed to occupy table %s: %w", tableID, err)
	}

	log.Info().Stringer("order_id", created.ID).Str("table_id", tableID).Str("opened_by", openedBy).Msg("service: table opened")
	return created, tbl, nil
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service: failed to fetch order %s: %w", id, err)
	}
	return o, nil
}

// ActiveOrder returns the table's current open or saved order, or
// ErrOrderNotFound when the table has none.
func (s *service) ActiveOrder(ctx context.Context, tableID string) (*Order, error) {
	o, err := s.store.FindActiveOrder(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to look up active order for table %s: %w", tableID, err)
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (s *service) AddLine(ctx context.Context, orderID uuid.UUID, productID string, quantity int) (*Order, error) {
	if productID == "" {
		return nil, fmt.Errorf("%w: product id is required", ErrValidation)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive, got %d", ErrValidation, quantity)
	}

	if _, err := s.mutableOrder(ctx, orderID); err != nil {
		return nil, err
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			log.Warn().Str("product_id", productID).Stringer("order_id", orderID).Msg("service: product rejected by catalog")
			return nil, err
		}
		return nil, fmt.Errorf("service: failed to fetch product %s: %w", productID, err)
	}

	updated, err := s.store.AppendLine(ctx, orderID, Line{
		ProductID:   product.ID,
		ProductName: product.Name,
		UnitPrice:   product.Price,
		Quantity:    quantity,
	})
	if err != nil {
		return nil, fmt.Errorf("service: failed to add line to order %s: %w", orderID, err)
	}

	return updated, nil
}

// RemoveLine deletes a product's line. Removing an absent line succeeds and
// leaves the order unchanged.
func (s *service) RemoveLine(ctx context.Context, orderID uuid.UUID, productID string) (*Order, error) {
	if _, err := s.mutableOrder(ctx, orderID); err != nil {
		return nil, err
	}

	updated, err := s.store.RemoveLine(ctx, orderID, productID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to remove line from order %s: %w", orderID, err)
	}
	return updated, nil
}

func (s *service) SetQuantity(ctx context.Context, orderID uuid.UUID, productID string, quantity int) (*Order, error) {
	if _, err := s.mutableOrder(ctx, orderID); err != nil {
		return nil, err
	}

	updated, err := s.store.SetLineQuantity(ctx, orderID, productID, quantity)
	if err != nil {
		return nil, fmt.Errorf("service: failed to set quantity on order %s: %w", orderID, err)
	}
	return updated, nil
}

// SaveOrder checkpoints an open order. Saving an already-saved order is a
// no-op success.
func (s *service) SaveOrder(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	current, err := s.mutableOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusSaved {
		return current, nil
	}

	return s.transition(ctx, current, StatusSaved)
}

// PayOrder closes the order and frees its table. A second pay of the same
// order fails with ErrOrderClosed.
func (s *service) PayOrder(ctx context.Context, orderID uuid.UUID) (*Order, *table.Table, error) {
	return s.close(ctx, orderID, StatusPaid)
}

func (s *service) CancelOrder(ctx context.Context, orderID uuid.UUID) (*Order, *table.Table, error) {
	return s.close(ctx, orderID, StatusCancelled)
}

func (s *service) close(ctx context.Context, orderID uuid.UUID, terminal Status) (*Order, *table.Table, error) {
	current, err := s.mutableOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	closed, err := s.transition(ctx, current, terminal)
	if err != nil {
		return nil, nil, err
	}

	tbl, err := s.tables.SetStatus(ctx, closed.TableID, table.StatusFree)
	if err != nil {
		return nil, nil, fmt.Errorf("service: failed to release table %s: %w", closed.TableID, err)
	}

	log.Info().Stringer("order_id", orderID).Str("table_id", closed.TableID).Str("status", string(terminal)).Msg("service: order closed, table released")
	return closed, tbl, nil
}

// mutableOrder fetches the order and rejects terminal ones.
func (s *service) mutableOrder(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	current, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service: failed to fetch order %s: %w", orderID, err)
	}

	if current.Closed() {
		log.Warn().Stringer("order_id", orderID).Str("status", string(current.Status)).Msg("service: mutation attempted on closed order")
		return nil, fmt.Errorf("%w: order %s is %s", ErrOrderClosed, orderID, current.Status)
	}

	return current, nil
}

func (s *service) transition(ctx context.Context, current *Order, to Status) (*Order, error) {
	if !CanTransition(current.Status, to) {
		log.Warn().
			Stringer("order_id", current.ID).
			Str("current_status", string(current.Status)).
			Str("new_status", string(to)).
			Msg("service: invalid status transition attempt")
		return nil, fmt.Errorf("service: invalid status transition from %s to %s", current.Status, to)
	}

	updated, err := s.store.SetStatus(ctx, current.ID, to)
	if err != nil {
		return nil, fmt.Errorf("service: failed to update status of order %s: %w", current.ID, err)
	}

	log.Info().Stringer("order_id", current.ID).Str("old_status", string(current.Status)).Str("new_status", string(to)).Msg("service: order status updated")
	return updated, nil
}
