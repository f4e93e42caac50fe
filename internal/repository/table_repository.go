package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/dining-reservation/internal/model"
)

// TableRepo provides persistence for dining tables.  Reservations seated
// at a table are tracked in table_reservations, and
// dining_tables.reservation_count is always recomputed from that set.
type TableRepo struct{}

// NewTableRepo returns a TableRepo.
func NewTableRepo() *TableRepo { return &TableRepo{} }

// CreateTx inserts a table.  A duplicate table number yields ErrConflict.
func (r *TableRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Table) error {
	const q = `INSERT INTO dining_tables (number, capacity) VALUES (?, ?)`
	res, err := tx.ExecContext(ctx, q, t.Number, t.Capacity)
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
	t.ID = uint64(id)
	t.Reservations = []uint64{}
	t.ReservationCount = 0
	return nil
}

// GetTx returns a table with its reservation ids, or ErrNotFound.
func (r *TableRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Table, error) {
	const q = `SELECT id, number, capacity, reservation_count FROM dining_tables WHERE id = ?`
	var t model.Table
	err := tx.QueryRowContext(ctx, q, id).Scan(&t.ID, &t.Number, &t.Capacity, &t.ReservationCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Reservations, err = collectIDs(tx.QueryContext(ctx,
		`SELECT reservation_id FROM table_reservations WHERE table_id = ? ORDER BY reservation_id`, id))
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ByIDsTx returns the tables in ids ordered by id.  Back-references are
// not loaded.  Ids with no matching row are skipped.
func (r *TableRepo) ByIDsTx(ctx context.Context, tx *sql.Tx, ids []uint64) ([]model.Table, error) {
	if len(ids) == 0 {
		return []model.Table{}, nil
	}
	q := `SELECT id, number, capacity, reservation_count FROM dining_tables
	      WHERE id IN (` + placeholders(len(ids)) + `) ORDER BY id`
	rows, err := tx.QueryContext(ctx, q, idArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTables(rows)
}

// ListTx returns one page of tables ordered by the requested column.
func (r *TableRepo) ListTx(ctx context.Context, tx *sql.Tx, q PageQuery) ([]model.Table, int, error) {
	q = q.Normalize("number")
	order, err := q.orderBy("number", "capacity", "reservation_count")
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM dining_tables`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT id, number, capacity, reservation_count FROM dining_tables `+order+` LIMIT ? OFFSET ?`,
		q.Limit, q.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	tables, err := scanTables(rows)
	if err != nil {
		return nil, 0, err
	}
	return tables, total, nil
}

// LinkReservationTx adds reservationID to the reservation set of every
// table in tableIDs (a bulk update matching all ids) and recomputes
// their reservation_count.  It returns the number of tables matched.
func (r *TableRepo) LinkReservationTx(ctx context.Context, tx *sql.Tx, tableIDs []uint64, reservationID uint64) (int64, error) {
	if len(tableIDs) == 0 {
		return 0, nil
	}
	query := `INSERT IGNORE INTO table_reservations (table_id, reservation_id) VALUES `
	args := make([]interface{}, 0, len(tableIDs)*2)
	for i, id := range tableIDs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?)"
		args = append(args, id, reservationID)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, err
	}
	return r.recountTx(ctx, tx, tableIDs)
}

// UnlinkReservationTx pulls reservationID out of every table set that
// contains it and recomputes the affected counters.
func (r *TableRepo) UnlinkReservationTx(ctx context.Context, tx *sql.Tx, reservationID uint64) (int64, error) {
	tableIDs, err := collectIDs(tx.QueryContext(ctx,
		`SELECT table_id FROM table_reservations WHERE reservation_id = ?`, reservationID))
	if err != nil {
		return 0, err
	}
	if len(tableIDs) == 0 {
		return 0, nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM table_reservations WHERE reservation_id = ?`, reservationID); err != nil {
		return 0, err
	}
	if _, err := r.recountTx(ctx, tx, tableIDs); err != nil {
		return 0, err
	}
	return int64(len(tableIDs)), nil
}

// recountTx sets reservation_count to the size of each table's set and
// returns the number of tables matched by tableIDs.
func (r *TableRepo) recountTx(ctx context.Context, tx *sql.Tx, tableIDs []uint64) (int64, error) {
	q := `UPDATE dining_tables t SET t.reservation_count =
	        (SELECT COUNT(*) FROM table_reservations tr WHERE tr.table_id = t.id)
	      WHERE t.id IN (` + placeholders(len(tableIDs)) + `)`
	if _, err := tx.ExecContext(ctx, q, idArgs(tableIDs)...); err != nil {
		return 0, err
	}
	// RowsAffected only counts changed rows, so count matches explicitly.
	var matched int64
	cq := `SELECT COUNT(*) FROM dining_tables WHERE id IN (` + placeholders(len(tableIDs)) + `)`
	if err := tx.QueryRowContext(ctx, cq, idArgs(tableIDs)...).Scan(&matched); err != nil {
		return 0, err
	}
	return matched, nil
}

func scanTables(rows *sql.Rows) ([]model.Table, error) {
	tables := make([]model.Table, 0)
	for rows.Next() {
		var t model.Table
		if err := rows.Scan(&t.ID, &t.Number, &t.Capacity, &t.ReservationCount); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tables, nil
}
