// Package queue defines message payloads exchanged over the message broker.
package queue

// LifecycleQueue is the durable queue lifecycle events are published to.
const LifecycleQueue = "reservation.lifecycle"

// Lifecycle event types.
const (
	EventCreated        = "reservation.created"
	EventUpdated        = "reservation.updated"
	EventTablesAssigned = "reservation.tables_assigned"
	EventConfirmed      = "reservation.confirmed"
	EventRemoved        = "reservation.removed"
)

// LifecycleEvent is published after a reservation workflow commits.  It
// carries enough state for downstream consumers to log or notify without
// querying the primary database.
type LifecycleEvent struct {
	Type          string   `json:"type"`
	ReservationID uint64   `json:"reservation_id"`
	DinerID       uint64   `json:"diner_id"`
	Status        string   `json:"status,omitempty"`
	Tables        []uint64 `json:"tables,omitempty"`
	GuestsCount   int      `json:"guests_count,omitempty"`
	DateReserved  string   `json:"date_reserved,omitempty"`
	TotalAmount   *float64 `json:"total_amount,omitempty"`
	DepositFee    *float64 `json:"deposit_fee,omitempty"`
	OccurredAt    string   `json:"occurred_at"`
}
