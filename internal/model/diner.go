package model

import "time"

// Diner is a guest who books reservations.  Reservations is a
// back-reference set maintained by the lifecycle workflows; it is not
// ownership.  ReservationCount mirrors len(Reservations).
//
// Fields:
//
//	ID               – primary key identifier.
//	FName, LName     – first and last name.
//	Email, Phone     – contact details, stored as given.
//	DateRegistered   – registration timestamp (UTC).
//	Reservations     – ids of reservations booked by this diner.
//	ReservationCount – denormalized size of Reservations.
type Diner struct {
	ID               uint64    `json:"id"`
	FName            string    `json:"fname"`
	LName            string    `json:"lname"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone"`
	DateRegistered   time.Time `json:"date_registered"`
	Reservations     []uint64  `json:"reservations"`
	ReservationCount int       `json:"reservation_count"`
}

// DinerRef is the projection of a diner embedded in a populated
// reservation.  Back-references are never included; DateRegistered is
// dropped by projections that hide it.
type DinerRef struct {
	ID             uint64     `json:"id"`
	FName          string     `json:"fname"`
	LName          string     `json:"lname"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	DateRegistered *time.Time `json:"date_registered,omitempty"`
}
