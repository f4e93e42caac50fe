package model

import "time"

// Payment records the charge for one reservation.  ID equals the owning
// reservation's ID.  GuestsCount is copied from the reservation when the
// payment is created and never follows later edits.  TotalAmount and
// DepositFee are derived and stay nil until computed.
type Payment struct {
	ID                uint64    `json:"id"`
	GuestsCount       int       `json:"guests_count"`
	ChargePerHead     float64   `json:"charge_per_head"`
	DepositPercentage float64   `json:"deposit_percentage"`
	TotalAmount       *float64  `json:"total_amount"`
	DepositFee        *float64  `json:"deposit_fee"`
	DateOfPayment     time.Time `json:"date_of_payment"`
	CreatedAt         time.Time `json:"created_at"`
}

// PaymentRef is a payment as embedded in a reservation view, without the
// guests snapshot.
type PaymentRef struct {
	ID                uint64    `json:"id"`
	ChargePerHead     float64   `json:"charge_per_head"`
	DepositPercentage float64   `json:"deposit_percentage"`
	TotalAmount       *float64  `json:"total_amount"`
	DepositFee        *float64  `json:"deposit_fee"`
	DateOfPayment     time.Time `json:"date_of_payment"`
}
