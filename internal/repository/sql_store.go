package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/dining-reservation/internal/model"
)

// SQLStore is the MySQL-backed Store.  Each unit of work runs in one
// database transaction spanning all four repositories.
type SQLStore struct {
	db           *sql.DB
	Diners       *DinerRepo
	Tables       *TableRepo
	Reservations *ReservationRepo
	Payments     *PaymentRepo
}

// NewSQLStore builds the repositories on top of db.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:           db,
		Diners:       NewDinerRepo(),
		Tables:       NewTableRepo(),
		Reservations: NewReservationRepo(),
		Payments:     NewPaymentRepo(),
	}
}

// DB exposes the underlying sql.DB.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Tx begins a transaction, runs fn and commits.  The transaction is
// rolled back when fn fails or panics.
func (s *SQLStore) Tx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&sqlTx{tx: tx, s: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

// sqlTx adapts the repositories to the Tx interface for one *sql.Tx.
type sqlTx struct {
	tx *sql.Tx
	s  *SQLStore
}

func (t *sqlTx) CreateDiner(ctx context.Context, d *model.Diner) error {
	return t.s.Diners.CreateTx(ctx, t.tx, d)
}

func (t *sqlTx) Diner(ctx context.Context, id uint64) (*model.Diner, error) {
	return t.s.Diners.GetTx(ctx, t.tx, id)
}

func (t *sqlTx) ListDiners(ctx context.Context, q PageQuery) ([]model.Diner, int, error) {
	return t.s.Diners.ListTx(ctx, t.tx, q)
}

func (t *sqlTx) LinkDinerReservation(ctx context.Context, dinerID, reservationID uint64) error {
	return t.s.Diners.LinkReservationTx(ctx, t.tx, dinerID, reservationID)
}

func (t *sqlTx) UnlinkDinerReservation(ctx context.Context, reservationID uint64) (int64, error) {
	return t.s.Diners.UnlinkReservationTx(ctx, t.tx, reservationID)
}

func (t *sqlTx) CreateTable(ctx context.Context, tb *model.Table) error {
	return t.s.Tables.CreateTx(ctx, t.tx, tb)
}

func (t *sqlTx) Table(ctx context.Context, id uint64) (*model.Table, error) {
	return t.s.Tables.GetTx(ctx, t.tx, id)
}

func (t *sqlTx) Tables(ctx context.Context, ids []uint64) ([]model.Table, error) {
	return t.s.Tables.ByIDsTx(ctx, t.tx, ids)
}

func (t *sqlTx) ListTables(ctx context.Context, q PageQuery) ([]model.Table, int, error) {
	return t.s.Tables.ListTx(ctx, t.tx, q)
}

func (t *sqlTx) LinkTableReservation(ctx context.Context, tableIDs []uint64, reservationID uint64) (int64, error) {
	return t.s.Tables.LinkReservationTx(ctx, t.tx, tableIDs, reservationID)
}

func (t *sqlTx) UnlinkTableReservation(ctx context.Context, reservationID uint64) (int64, error) {
	return t.s.Tables.UnlinkReservationTx(ctx, t.tx, reservationID)
}

func (t *sqlTx) CreateReservation(ctx context.Context, r *model.Reservation) error {
	return t.s.Reservations.CreateTx(ctx, t.tx, r)
}

func (t *sqlTx) Reservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	return t.s.Reservations.GetTx(ctx, t.tx, id)
}

func (t *sqlTx) ReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error) {
	return t.s.Reservations.GetForUpdateTx(ctx, t.tx, id)
}

func (t *sqlTx) ListReservations(ctx context.Context, q PageQuery) ([]model.Reservation, int, error) {
	return t.s.Reservations.ListTx(ctx, t.tx, q)
}

func (t *sqlTx) AddReservationTables(ctx context.Context, id uint64, tableIDs []uint64, status model.Status) error {
	return t.s.Reservations.AddTablesTx(ctx, t.tx, id, tableIDs, status)
}

func (t *sqlTx) SetReservationPayment(ctx context.Context, id, paymentID uint64, status model.Status) error {
	return t.s.Reservations.SetPaymentTx(ctx, t.tx, id, paymentID, status)
}

func (t *sqlTx) UpdateReservationDetails(ctx context.Context, id uint64, patch model.ReservationPatch) error {
	return t.s.Reservations.UpdateDetailsTx(ctx, t.tx, id, patch)
}

func (t *sqlTx) DeleteReservation(ctx context.Context, id uint64) error {
	return t.s.Reservations.DeleteTx(ctx, t.tx, id)
}

func (t *sqlTx) CreatePayment(ctx context.Context, p *model.Payment) error {
	return t.s.Payments.CreateTx(ctx, t.tx, p)
}

func (t *sqlTx) Payment(ctx context.Context, id uint64) (*model.Payment, error) {
	return t.s.Payments.GetTx(ctx, t.tx, id)
}

func (t *sqlTx) SetPaymentTotal(ctx context.Context, id uint64, total float64) error {
	return t.s.Payments.SetTotalTx(ctx, t.tx, id, total)
}

func (t *sqlTx) SetPaymentDepositFee(ctx context.Context, id uint64, fee float64) error {
	return t.s.Payments.SetDepositFeeTx(ctx, t.tx, id, fee)
}

func (t *sqlTx) DeletePayment(ctx context.Context, id uint64) (int64, error) {
	return t.s.Payments.DeleteTx(ctx, t.tx, id)
}
