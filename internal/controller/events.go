package controller

import (
	"github.com/rs/zerolog/log"

	"github.com/jortega-dev/comandero/internal/order"
	"github.com/jortega-dev/comandero/internal/table"
)

// ErrorKind classifies failures for the presentation collaborator.
type ErrorKind string

const (
	KindNotFound    ErrorKind = "not_found"
	KindValidation  ErrorKind = "validation"
	KindOrderClosed ErrorKind = "order_closed"
	KindPersistence ErrorKind = "persistence"
)

// Events is the callback surface exposed to the presentation collaborator.
// Implementations must not block: callbacks fire inside controller
// operations while the table's lock is held.
type Events interface {
	TableUpdated(t table.Table)
	OrderUpdated(o order.Order)
	Error(kind ErrorKind, message string)
	StatusMessage(text string)
}

// NopEvents discards all notifications.
type NopEvents struct{}

func (NopEvents) TableUpdated(table.Table) {}
func (NopEvents) OrderUpdated(order.Order) {}
func (NopEvents) Error(ErrorKind, string)  {}
func (NopEvents) StatusMessage(string)     {}

// LogEvents writes every notification to the global logger. It is the sink
// used when no interactive presentation layer is attached.
type LogEvents struct{}

func (LogEvents) TableUpdated(t table.Table) {
	log.Info().Str("table_id", t.ID).Str("status", string(t.Status)).Msg("event: table updated")
}

func (LogEvents) OrderUpdated(o order.Order) {
	log.Info().Stringer("order_id", o.ID).Str("table_id", o.TableID).Str("status", string(o.Status)).Str("total", o.Total.String()).Msg("event: order updated")
}

func (LogEvents) Error(kind ErrorKind, message string) {
	log.Warn().Str("kind", string(kind)).Str("message", message).Msg("event: error")
}

func (LogEvents) StatusMessage(text string) {
	log.Info().Str("text", text).Msg("event: status")
}
