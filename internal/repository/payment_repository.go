package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/dining-reservation/internal/model"
)

// PaymentRepo persists payments.  A payment's id is the id of the
// reservation it belongs to, so at most one payment exists per
// reservation.  total_amount and deposit_fee are NULL until computed.
type PaymentRepo struct{}

// NewPaymentRepo returns a PaymentRepo.
func NewPaymentRepo() *PaymentRepo { return &PaymentRepo{} }

// CreateTx inserts the payment without derived fields.  A second payment
// for the same reservation yields ErrConflict.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	const q = `INSERT INTO payments (id, guests_count, charge_per_head, deposit_percentage, date_of_payment) VALUES (?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, q, p.ID, p.GuestsCount, p.ChargePerHead, p.DepositPercentage, p.DateOfPayment.UTC()); err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	p.TotalAmount = nil
	p.DepositFee = nil
	const sel = `SELECT created_at FROM payments WHERE id = ?`
	return tx.QueryRowContext(ctx, sel, p.ID).Scan(&p.CreatedAt)
}

// GetTx returns the payment or ErrNotFound.
func (r *PaymentRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Payment, error) {
	const q = `SELECT id, guests_count, charge_per_head, deposit_percentage, total_amount, deposit_fee, date_of_payment, created_at
	           FROM payments WHERE id = ?`
	var (
		p          model.Payment
		total, fee sql.NullFloat64
	)
	err := tx.QueryRowContext(ctx, q, id).Scan(
		&p.ID, &p.GuestsCount, &p.ChargePerHead, &p.DepositPercentage, &total, &fee, &p.DateOfPayment, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if total.Valid {
		v := total.Float64
		p.TotalAmount = &v
	}
	if fee.Valid {
		v := fee.Float64
		p.DepositFee = &v
	}
	return &p, nil
}

// SetTotalTx persists total_amount.
func (r *PaymentRepo) SetTotalTx(ctx context.Context, tx *sql.Tx, id uint64, total float64) error {
	_, err := tx.ExecContext(ctx, `UPDATE payments SET total_amount = ? WHERE id = ?`, total, id)
	return err
}

// SetDepositFeeTx persists deposit_fee.
func (r *PaymentRepo) SetDepositFeeTx(ctx context.Context, tx *sql.Tx, id uint64, fee float64) error {
	_, err := tx.ExecContext(ctx, `UPDATE payments SET deposit_fee = ? WHERE id = ?`, fee, id)
	return err
}

// DeleteTx removes the payment and returns the number of rows deleted.
func (r *PaymentRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
