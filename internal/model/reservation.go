package model

import "time"

// Status is the lifecycle label of a reservation.
type Status string

const (
	// StatusCreated is the initial state: no tables, no payment.
	StatusCreated Status = "created"
	// StatusPending means tables are assigned and no payment exists.
	StatusPending Status = "pending"
	// StatusConfirmed means a payment is attached.
	StatusConfirmed Status = "confirmed"
)

// Reservation is the central aggregate.  It references exactly one
// diner, a set of tables and at most one payment.
//
// Fields:
//
//	ID           – primary key identifier.
//	DinerID      – diner who booked the reservation.
//	Tables       – ids of assigned tables (set semantics).
//	PaymentID    – payment attached to the reservation (nullable).
//	GuestsCount  – number of guests.
//	TableCount   – denormalized size of Tables.
//	DateReserved – when the diner is expected.
//	Status       – lifecycle label.
//	CreatedAt    – creation timestamp.
//	UpdatedAt    – last update timestamp.
type Reservation struct {
	ID           uint64
	DinerID      uint64
	Tables       []uint64
	PaymentID    *uint64
	GuestsCount  int
	TableCount   int
	DateReserved time.Time
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ReservationPatch carries the fields that may be edited outside the
// lifecycle workflows.  Nil fields are left untouched.
type ReservationPatch struct {
	GuestsCount  *int
	DateReserved *time.Time
}

// ReservationView is a reservation with its relations resolved.  Which
// relations are present depends on the populate options used to build it.
type ReservationView struct {
	ID           uint64      `json:"id"`
	Diner        *DinerRef   `json:"diner,omitempty"`
	DinerID      uint64      `json:"diner_id"`
	Tables       []TableRef  `json:"tables,omitempty"`
	Payment      *PaymentRef `json:"payment,omitempty"`
	PaymentID    *uint64     `json:"payment_id,omitempty"`
	GuestsCount  int         `json:"guests_count"`
	TableCount   int         `json:"table_count"`
	DateReserved time.Time   `json:"date_reserved"`
	Status       Status      `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}
