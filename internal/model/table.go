package model

// Table is a seating resource.  Reservations holds the ids of the
// reservations seated at this table and ReservationCount its size.
type Table struct {
	ID               uint64   `json:"id"`
	Number           int      `json:"number"`
	Capacity         int      `json:"capacity"`
	Reservations     []uint64 `json:"reservations,omitempty"`
	ReservationCount int      `json:"reservation_count"`
}

// TableRef is a table without its back-references.
type TableRef struct {
	ID               uint64 `json:"id"`
	Number           int    `json:"number"`
	Capacity         int    `json:"capacity"`
	ReservationCount int    `json:"reservation_count"`
}
