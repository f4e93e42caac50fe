package repository

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/iliyamo/dining-reservation/internal/model"
)

// Tx is the set of record operations available inside one unit of work.
// Every set-valued field (Reservation.Tables, Table.Reservations,
// Diner.Reservations) has add-to-set semantics and every denormalized
// counter is recomputed from its set, so repeating an operation never
// double-counts.
type Tx interface {
	CreateDiner(ctx context.Context, d *model.Diner) error
	Diner(ctx context.Context, id uint64) (*model.Diner, error)
	ListDiners(ctx context.Context, q PageQuery) ([]model.Diner, int, error)
	// LinkDinerReservation adds reservationID to the diner's set.
	LinkDinerReservation(ctx context.Context, dinerID, reservationID uint64) error
	// UnlinkDinerReservation pulls reservationID out of every diner set
	// that contains it and returns the number of diners touched.
	UnlinkDinerReservation(ctx context.Context, reservationID uint64) (int64, error)

	CreateTable(ctx context.Context, t *model.Table) error
	Table(ctx context.Context, id uint64) (*model.Table, error)
	// Tables returns the tables whose ids are in ids, ordered by id,
	// without back-references.  Unknown ids are skipped.
	Tables(ctx context.Context, ids []uint64) ([]model.Table, error)
	ListTables(ctx context.Context, q PageQuery) ([]model.Table, int, error)
	// LinkTableReservation adds reservationID to the set of every table
	// in tableIDs and returns the number of tables matched.
	LinkTableReservation(ctx context.Context, tableIDs []uint64, reservationID uint64) (int64, error)
	// UnlinkTableReservation pulls reservationID out of every table set
	// that contains it and returns the number of tables touched.
	UnlinkTableReservation(ctx context.Context, reservationID uint64) (int64, error)

	CreateReservation(ctx context.Context, r *model.Reservation) error
	// Reservation loads a reservation without locking it.
	Reservation(ctx context.Context, id uint64) (*model.Reservation, error)
	// ReservationForUpdate loads a reservation and locks it until the unit
	// of work ends.  Workflows read through it before writing.
	ReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error)
	ListReservations(ctx context.Context, q PageQuery) ([]model.Reservation, int, error)
	// AddReservationTables adds tableIDs to the reservation's set,
	// recomputes TableCount and sets status.
	AddReservationTables(ctx context.Context, id uint64, tableIDs []uint64, status model.Status) error
	SetReservationPayment(ctx context.Context, id, paymentID uint64, status model.Status) error
	UpdateReservationDetails(ctx context.Context, id uint64, patch model.ReservationPatch) error
	// DeleteReservation removes the reservation and its forward table set.
	DeleteReservation(ctx context.Context, id uint64) error

	CreatePayment(ctx context.Context, p *model.Payment) error
	Payment(ctx context.Context, id uint64) (*model.Payment, error)
	SetPaymentTotal(ctx context.Context, id uint64, total float64) error
	SetPaymentDepositFee(ctx context.Context, id uint64, fee float64) error
	DeletePayment(ctx context.Context, id uint64) (int64, error)
}

// Store runs fn as one unit of work.  When fn returns an error every
// write it issued is discarded; otherwise all of them become visible
// together.
type Store interface {
	Tx(ctx context.Context, fn func(tx Tx) error) error
}

// Pagination defaults shared by every listing.
const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// PageQuery describes a paginated listing request.  Sort names a column,
// optionally prefixed with "-" for descending order.
type PageQuery struct {
	Page  int
	Limit int
	Sort  string
}

// Normalize fills defaults and clamps the limit.  Page is capped so the
// offset of the page after it still fits in an int; such pages are empty.
func (q PageQuery) Normalize(defaultSort string) PageQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if maxPage := math.MaxInt / q.Limit; q.Page > maxPage {
		q.Page = maxPage
	}
	if strings.TrimSpace(q.Sort) == "" {
		q.Sort = defaultSort
	}
	return q
}

// Offset returns the number of rows to skip.
func (q PageQuery) Offset() int { return (q.Page - 1) * q.Limit }

// sortKey splits Sort into a column name and direction and checks it
// against the allowed columns.
func (q PageQuery) sortKey(allowed ...string) (string, bool, error) {
	s := strings.TrimSpace(q.Sort)
	desc := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	for _, a := range allowed {
		if a == s {
			return s, desc, nil
		}
	}
	return "", false, fmt.Errorf("%w: %q", ErrInvalidSort, s)
}

// orderBy renders the ORDER BY clause for the sort key.  Ties are broken
// by id so pages are stable.
func (q PageQuery) orderBy(allowed ...string) (string, error) {
	col, desc, err := q.sortKey(allowed...)
	if err != nil {
		return "", err
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	return fmt.Sprintf("ORDER BY %s %s, id %s", col, dir, dir), nil
}
