package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/dining-reservation/internal/model"
)

// DinerRepo provides persistence for diners and their reservation
// back-references.  The back-reference set lives in diner_reservations;
// diners.reservation_count is recomputed from it on every change.
//
// The repository holds no connection: every method runs on the caller's
// transaction so one unit of work can span all repositories.
type DinerRepo struct{}

// NewDinerRepo returns a DinerRepo.
func NewDinerRepo() *DinerRepo { return &DinerRepo{} }

// CreateTx inserts a diner and populates the generated ID and the
// DB-default fields on d.
func (r *DinerRepo) CreateTx(ctx context.Context, tx *sql.Tx, d *model.Diner) error {
	const q = `INSERT INTO diners (fname, lname, email, phone) VALUES (?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, d.FName, d.LName, d.Email, d.Phone)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = uint64(id)
	d.Reservations = []uint64{}
	const sel = `SELECT date_registered, reservation_count FROM diners WHERE id = ?`
	return tx.QueryRowContext(ctx, sel, d.ID).Scan(&d.DateRegistered, &d.ReservationCount)
}

// GetTx returns the diner with its reservation ids.  ErrNotFound is
// returned when no diner has the given id.
func (r *DinerRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Diner, error) {
	const q = `SELECT id, fname, lname, email, phone, date_registered, reservation_count FROM diners WHERE id = ?`
	var d model.Diner
	err := tx.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.FName, &d.LName, &d.Email, &d.Phone, &d.DateRegistered, &d.ReservationCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d.Reservations, err = collectIDs(tx.QueryContext(ctx,
		`SELECT reservation_id FROM diner_reservations WHERE diner_id = ? ORDER BY reservation_id`, id))
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListTx returns one page of diners without their back-references and
// the total number of diners.
func (r *DinerRepo) ListTx(ctx context.Context, tx *sql.Tx, q PageQuery) ([]model.Diner, int, error) {
	q = q.Normalize("-date_registered")
	order, err := q.orderBy("date_registered", "lname", "fname", "reservation_count")
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM diners`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT id, fname, lname, email, phone, date_registered, reservation_count FROM diners `+order+` LIMIT ? OFFSET ?`,
		q.Limit, q.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	diners := make([]model.Diner, 0, q.Limit)
	for rows.Next() {
		var d model.Diner
		if err := rows.Scan(&d.ID, &d.FName, &d.LName, &d.Email, &d.Phone, &d.DateRegistered, &d.ReservationCount); err != nil {
			return nil, 0, err
		}
		diners = append(diners, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return diners, total, nil
}

// LinkReservationTx adds reservationID to the diner's reservation set and
// recomputes the diner's reservation_count.
func (r *DinerRepo) LinkReservationTx(ctx context.Context, tx *sql.Tx, dinerID, reservationID uint64) error {
	const ins = `INSERT IGNORE INTO diner_reservations (diner_id, reservation_id) VALUES (?, ?)`
	if _, err := tx.ExecContext(ctx, ins, dinerID, reservationID); err != nil {
		return err
	}
	return r.recountTx(ctx, tx, []uint64{dinerID})
}

// UnlinkReservationTx pulls reservationID out of every diner set that
// contains it and recomputes the affected counters.  It returns the
// number of diners touched.
func (r *DinerRepo) UnlinkReservationTx(ctx context.Context, tx *sql.Tx, reservationID uint64) (int64, error) {
	dinerIDs, err := collectIDs(tx.QueryContext(ctx,
		`SELECT diner_id FROM diner_reservations WHERE reservation_id = ?`, reservationID))
	if err != nil {
		return 0, err
	}
	if len(dinerIDs) == 0 {
		return 0, nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM diner_reservations WHERE reservation_id = ?`, reservationID); err != nil {
		return 0, err
	}
	if err := r.recountTx(ctx, tx, dinerIDs); err != nil {
		return 0, err
	}
	return int64(len(dinerIDs)), nil
}

// recountTx sets reservation_count to the size of each diner's set.
func (r *DinerRepo) recountTx(ctx context.Context, tx *sql.Tx, dinerIDs []uint64) error {
	q := `UPDATE diners d SET d.reservation_count =
	        (SELECT COUNT(*) FROM diner_reservations dr WHERE dr.diner_id = d.id)
	      WHERE d.id IN (` + placeholders(len(dinerIDs)) + `)`
	_, err := tx.ExecContext(ctx, q, idArgs(dinerIDs)...)
	return err
}
