package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/jortega-dev/comandero/internal/catalog"
	"github.com/jortega-dev/comandero/internal/order"
	"github.com/jortega-dev/comandero/internal/table"
)

// Payment describes how a bill was settled. Capture itself happens outside
// this core; the controller only records the reference in its notifications.
type Payment struct {
	Method    string `json:"method"`
	Reference string `json:"reference,omitempty"`
}

// Controller is the orchestration layer between the presentation
// collaborator and the order service. It owns the process-wide cache of
// active orders keyed by table id and is the only component that mutates it.
//
// Operations on the same table are serialized by a per-table lock, so a
// concurrent add and pay cannot interleave; distinct tables never contend.
// The cache is write-through: an entry is only ever replaced with the
// authoritative order returned by the service, and is left untouched when an
// operation fails.
type Controller struct {
	svc    order.Service
	events Events

	mu     sync.Mutex
	active map[string]*tableEntry
}

type tableEntry struct {
	mu    sync.Mutex
	order *order.Order
}

func New(svc order.Service, events Events) *Controller {
	if events == nil {
		events = NopEvents{}
	}
	return &Controller{
		svc:    svc,
		active: make(map[string]*tableEntry),
		events: events,
	}
}

// lockTable returns the table's live cache entry with its lock held. An
// entry can be evicted while a goroutine waits on its mutex; acquiring an
// orphaned entry would let a second operation on the same table run under a
// fresh one, so the entry is re-verified against the map after acquisition
// and the wait starts over on mismatch.
func (c *Controller) lockTable(tableID string) *tableEntry {
	for {
		c.mu.Lock()
		e, ok := c.active[tableID]
		if !ok {
			e = &tableEntry{}
			c.active[tableID] = e
		}
		c.mu.Unlock()

		e.mu.Lock()

		c.mu.Lock()
		live := c.active[tableID] == e
		c.mu.Unlock()
		if live {
			return e
		}
		e.mu.Unlock()
	}
}

// OpenTable returns the cached order for the table, opening one through the
// service on a miss. At most one order is ever cached per table: a second
// call returns the same instance instead of creating another order.
func (c *Controller) OpenTable(ctx context.Context, tableID, openedBy string) (*order.Order, error) {
	e := c.lockTable(tableID)
	defer e.mu.Unlock()

	if e.order != nil {
		return e.order, nil
	}

	o, tbl, err := c.svc.OpenTable(ctx, tableID, openedBy)
	if err != nil {
		c.report(err)
		return nil, err
	}

	e.order = o
	c.events.TableUpdated(*tbl)
	c.events.OrderUpdated(*o)
	c.events.StatusMessage(fmt.Sprintf("table %s opened", tableID))
	return o, nil
}

// AddProduct rings up a product on the table's order, opening the table
// first if no order is cached. A zero quantity means one unit.
func (c *Controller) AddProduct(ctx context.Context, tableID, productID string, quantity int) (*order.Order, error) {
	if quantity == 0 {
		quantity = 1
	}

	e := c.lockTable(tableID)
	defer e.mu.Unlock()

	if err := c.ensureOrder(ctx, e, tableID); err != nil {
		return nil, err
	}

	updated, err := c.svc.AddLine(ctx, e.order.ID, productID, quantity)
	if err != nil {
		c.report(err)
		return nil, err
	}

	e.order = updated
	c.events.OrderUpdated(*updated)
	return updated, nil
}

func (c *Controller) RemoveProduct(ctx context.Context, tableID, productID string) (*order.Order, error) {
	e := c.lockTable(tableID)
	defer e.mu.Unlock()

	if err := c.ensureOrder(ctx, e, tableID); err != nil {
		return nil, err
	}

	updated, err := c.svc.RemoveLine(ctx, e.order.ID, productID)
	if err != nil {
		c.report(err)
		return nil, err
	}

	e.order = updated
	c.events.OrderUpdated(*updated)
	return updated, nil
}

func (c *Controller) SetQuantity(ctx context.Context, tableID, productID string, quantity int) (*order.Order, error) {
	e := c.lockTable(tableID)
	defer e.mu.Unlock()

	if err := c.ensureOrder(ctx, e, tableID); err != nil {
		return nil, err
	}

	updated, err := c.svc.SetQuantity(ctx, e.order.ID, productID, quantity)
	if err != nil {
		c.report(err)
		return nil, err
	}

	e.order = updated
	c.events.OrderUpdated(*updated)
	return updated, nil
}

func (c *Controller) Save(ctx context.Context, tableID string) (*order.Order, error) {
	e := c.lockTable(tableID)
	defer e.mu.Unlock()

	if err := c.lookupOrder(ctx, e, tableID); err != nil {
		return nil, err
	}

	updated, err := c.svc.SaveOrder(ctx, e.order.ID)
	if err != nil {
		c.report(err)
		return nil, err
	}

	e.order = updated
	c.events.OrderUpdated(*updated)
	c.events.StatusMessage(fmt.Sprintf("order for table %s saved", tableID))
	return updated, nil
}

// Pay settles the table's order and evicts its cache entry: the table is
// free afterwards, there is nothing left to cache.
func (c *Controller) Pay(ctx context.Context, tableID string, payment Payment) (*order.Order, error) {
	e := c.lockTable(tableID)
	defer e.mu.Unlock()

	if err := c.lookupOrder(ctx, e, tableID); err != nil {
		return nil, err
	}

	paid, tbl, err := c.svc.PayOrder(ctx, e.order.ID)
	if err != nil {
		c.report(err)
		return nil, err
	}

	c.evict(tableID, e)
	c.events.OrderUpdated(*paid)
	c.events.TableUpdated(*tbl)
	c.events.StatusMessage(fmt.Sprintf("table %s paid (%s), total %s", tableID, payment.Method, paid.Total.StringFixed(2)))
	return paid, nil
}

func (c *Controller) Cancel(ctx context.Context, tableID string) (*order.Order, error) {
	e := c.lockTable(tableID)
	defer e.mu.Unlock()

	if err := c.lookupOrder(ctx, e, tableID); err != nil {
		return nil, err
	}

	cancelled, tbl, err := c.svc.CancelOrder(ctx, e.order.ID)
	if err != nil {
		c.report(err)
		return nil, err
	}

	c.evict(tableID, e)
	c.events.OrderUpdated(*cancelled)
	c.events.TableUpdated(*tbl)
	c.events.StatusMessage(fmt.Sprintf("order for table %s cancelled", tableID))
	return cancelled, nil
}

// ClearCache drops every cached order. Persisted state is unaffected; the
// next access to a table repopulates its entry from the store. Entries are
// removed one at a time under their own locks, so an operation in flight
// finishes before its table is dropped.
func (c *Controller) ClearCache() {
	c.mu.Lock()
	snapshot := make(map[string]*tableEntry, len(c.active))
	for id, e := range c.active {
		snapshot[id] = e
	}
	c.mu.Unlock()

	for id, e := range snapshot {
		e.mu.Lock()
		c.evict(id, e)
		e.mu.Unlock()
	}
	log.Info().Msg("controller: active order cache cleared")
}

// ensureOrder fills the entry, opening the table when it has no active
// order. Used by line mutations, which may ring up on a fresh table.
func (c *Controller) ensureOrder(ctx context.Context, e *tableEntry, tableID string) error {
	if e.order != nil {
		return nil
	}

	o, tbl, err := c.svc.OpenTable(ctx, tableID, "")
	if err != nil {
		c.report(err)
		return err
	}

	e.order = o
	c.events.TableUpdated(*tbl)
	c.events.OrderUpdated(*o)
	return nil
}

// lookupOrder fills the entry from the table's existing active order but
// never creates one. Used by save/pay/cancel, which must not conjure an
// empty order on a free table.
func (c *Controller) lookupOrder(ctx context.Context, e *tableEntry, tableID string) error {
	if e.order != nil {
		return nil
	}

	o, err := c.svc.ActiveOrder(ctx, tableID)
	if err != nil {
		c.report(err)
		return err
	}

	e.order = o
	return nil
}

func (c *Controller) evict(tableID string, e *tableEntry) {
	e.order = nil
	c.mu.Lock()
	if c.active[tableID] == e {
		delete(c.active, tableID)
	}
	c.mu.Unlock()
}

// report is the error boundary: every failure surfacing from the service is
// converted into an error event and a status message, never swallowed.
func (c *Controller) report(err error) {
	kind := classify(err)
	log.Warn().Err(err).Str("kind", string(kind)).Msg("controller: operation failed")
	c.events.Error(kind, err.Error())
	c.events.StatusMessage(fmt.Sprintf("operation failed: %v", err))
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, table.ErrNotFound),
		errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, catalog.ErrNotFound):
		return KindNotFound
	case errors.Is(err, order.ErrValidation):
		return KindValidation
	case errors.Is(err, order.ErrOrderClosed):
		return KindOrderClosed
	default:
		return KindPersistence
	}
}
