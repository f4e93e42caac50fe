package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/dining-reservation/internal/model"
)

// ReservationRepo provides CRUD operations for reservations and their
// table sets.  Tables assigned to a reservation are stored in the
// reservation_tables table; reservations.table_count is recomputed from
// it whenever the set changes.  All timestamp fields are stored in UTC.
type ReservationRepo struct{}

// NewReservationRepo returns a ReservationRepo.
func NewReservationRepo() *ReservationRepo { return &ReservationRepo{} }

const reservationColumns = `id, diner_id, payment_id, guests_count, table_count, date_reserved, status, created_at, updated_at`

// CreateTx inserts a new reservation within the scope of an existing
// transaction.  It populates the generated ID and timestamps on res.
// The caller must commit or rollback the transaction.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations (diner_id, guests_count, table_count, status, date_reserved) VALUES (?, ?, 0, ?, ?)`
	result, err := tx.ExecContext(ctx, q, res.DinerID, res.GuestsCount, string(res.Status), res.DateReserved.UTC())
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	res.Tables = []uint64{}
	res.TableCount = 0
	const sel = `SELECT created_at, updated_at FROM reservations WHERE id = ?`
	return tx.QueryRowContext(ctx, sel, res.ID).Scan(&res.CreatedAt, &res.UpdatedAt)
}

// GetTx loads a reservation and its table ids without locking the row.
// ErrNotFound is returned when no row matches.
func (r *ReservationRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	return r.getTx(ctx, tx, id, "")
}

// GetForUpdateTx is GetTx holding the row lock for the rest of the
// transaction.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	return r.getTx(ctx, tx, id, " FOR UPDATE")
}

func (r *ReservationRepo) getTx(ctx context.Context, tx *sql.Tx, id uint64, suffix string) (*model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?` + suffix
	res, err := scanReservation(tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	res.Tables, err = collectIDs(tx.QueryContext(ctx,
		`SELECT table_id FROM reservation_tables WHERE reservation_id = ? ORDER BY table_id`, id))
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ListTx returns one page of reservations without their table sets.
// The default order is most recent date_reserved first.
func (r *ReservationRepo) ListTx(ctx context.Context, tx *sql.Tx, q PageQuery) ([]model.Reservation, int, error) {
	q = q.Normalize("-date_reserved")
	order, err := q.orderBy("date_reserved", "guests_count", "status", "created_at")
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations `+order+` LIMIT ? OFFSET ?`, q.Limit, q.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	list := make([]model.Reservation, 0, q.Limit)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// AddTablesTx adds tableIDs to the reservation's table set, sets
// table_count to the size of the set and sets the status, all within
// the caller's transaction.  Ids already in the set are ignored.
func (r *ReservationRepo) AddTablesTx(ctx context.Context, tx *sql.Tx, id uint64, tableIDs []uint64, status model.Status) error {
	if len(tableIDs) > 0 {
		query := `INSERT IGNORE INTO reservation_tables (reservation_id, table_id) VALUES `
		args := make([]interface{}, 0, len(tableIDs)*2)
		for i, tid := range tableIDs {
			if i > 0 {
				query += ","
			}
			query += "(?, ?)"
			args = append(args, id, tid)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	const upd = `UPDATE reservations
	             SET table_count = (SELECT COUNT(*) FROM reservation_tables WHERE reservation_id = ?), status = ?
	             WHERE id = ?`
	_, err := tx.ExecContext(ctx, upd, id, string(status), id)
	return err
}

// SetPaymentTx links a payment to the reservation and sets its status.
func (r *ReservationRepo) SetPaymentTx(ctx context.Context, tx *sql.Tx, id, paymentID uint64, status model.Status) error {
	const q = `UPDATE reservations SET payment_id = ?, status = ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, paymentID, string(status), id)
	return err
}

// UpdateDetailsTx applies the non-nil fields of patch.  An empty patch
// is a no-op.
func (r *ReservationRepo) UpdateDetailsTx(ctx context.Context, tx *sql.Tx, id uint64, patch model.ReservationPatch) error {
	sets := make([]string, 0, 2)
	args := make([]interface{}, 0, 3)
	if patch.GuestsCount != nil {
		sets = append(sets, "guests_count = ?")
		args = append(args, *patch.GuestsCount)
	}
	if patch.DateReserved != nil {
		sets = append(sets, "date_reserved = ?")
		args = append(args, patch.DateReserved.UTC())
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	_, err := tx.ExecContext(ctx, `UPDATE reservations SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	return err
}

// DeleteTx removes the reservation and its forward table references.
// ErrNotFound is returned when the reservation does not exist.
func (r *ReservationRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM reservation_tables WHERE reservation_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReservation(s rowScanner) (*model.Reservation, error) {
	var (
		res       model.Reservation
		paymentID sql.NullInt64
		status    string
	)
	if err := s.Scan(&res.ID, &res.DinerID, &paymentID, &res.GuestsCount, &res.TableCount,
		&res.DateReserved, &status, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return nil, err
	}
	if paymentID.Valid {
		pid := uint64(paymentID.Int64)
		res.PaymentID = &pid
	}
	res.Status = model.Status(status)
	return &res, nil
}
