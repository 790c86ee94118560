package order

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusOpen      Status = "open"
	StatusSaved     Status = "saved"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

// Terminal reports whether the status freezes the order. Paid and cancelled
// orders are immutable: no line mutation, no further transition.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

var allowedTransitions = map[Status]map[Status]bool{
	StatusOpen: {
		StatusSaved:     true,
		StatusPaid:      true,
		StatusCancelled: true,
	},
	StatusSaved: {
		StatusPaid:      true,
		StatusCancelled: true,
	},
	StatusPaid:      {},
	StatusCancelled: {},
}

// CanTransition reports whether the state machine permits moving from one
// status to another.
func CanTransition(from, to Status) bool {
	return allowedTransitions[from][to]
}

// Line is one product entry within an order. ProductName and UnitPrice are
// captured when the line is added, not re-read from the catalog.
type Line struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is one table visit's bill. Lines keep ring-up order.
type Order struct {
	ID       uuid.UUID       `json:"id"`
	TableID  string          `json:"table_id"`
	OpenedBy string          `json:"opened_by"`
	OpenedAt time.Time       `json:"opened_at"`
	Status   Status          `json:"status"`
	Lines    []Line          `json:"lines"`
	Total    decimal.Decimal `json:"total"`
}

func (o *Order) Closed() bool {
	return o.Status.Terminal()
}

// ComputeTotal derives the order total from its lines. The stored total must
// always equal this sum; the store recomputes it on every line write.
func ComputeTotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
