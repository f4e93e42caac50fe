package repository

import (
	"context"
	"errors"

	"github.com/iliyamo/dining-reservation/internal/model"
)

// PopulateOptions selects the relations resolved into a ReservationView
// and the fields kept on them.  Back-references are never copied.
type PopulateOptions struct {
	Diner bool
	// DinerRegistered keeps the diner's registration date.
	DinerRegistered bool
	Tables          bool
	Payment         bool
}

// Populate loads reservation id and resolves the relations selected by
// opts.
func Populate(ctx context.Context, tx Tx, id uint64, opts PopulateOptions) (*model.ReservationView, error) {
	r, err := tx.Reservation(ctx, id)
	if err != nil {
		return nil, err
	}
	return PopulateReservation(ctx, tx, r, opts)
}

// PopulateReservation resolves the relations of an already loaded
// reservation.  A dangling reference leaves the relation empty instead of
// failing the read.
func PopulateReservation(ctx context.Context, tx Tx, r *model.Reservation, opts PopulateOptions) (*model.ReservationView, error) {
	v := &model.ReservationView{
		ID:           r.ID,
		DinerID:      r.DinerID,
		PaymentID:    r.PaymentID,
		GuestsCount:  r.GuestsCount,
		TableCount:   r.TableCount,
		DateReserved: r.DateReserved,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if opts.Diner {
		d, err := tx.Diner(ctx, r.DinerID)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return nil, err
		default:
			ref := &model.DinerRef{ID: d.ID, FName: d.FName, LName: d.LName, Email: d.Email, Phone: d.Phone}
			if opts.DinerRegistered {
				reg := d.DateRegistered
				ref.DateRegistered = &reg
			}
			v.Diner = ref
		}
	}
	if opts.Tables {
		tables, err := tx.Tables(ctx, r.Tables)
		if err != nil {
			return nil, err
		}
		v.Tables = make([]model.TableRef, 0, len(tables))
		for _, t := range tables {
			v.Tables = append(v.Tables, model.TableRef{
				ID: t.ID, Number: t.Number, Capacity: t.Capacity, ReservationCount: t.ReservationCount,
			})
		}
	}
	if opts.Payment && r.PaymentID != nil {
		p, err := tx.Payment(ctx, *r.PaymentID)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return nil, err
		default:
			v.Payment = &model.PaymentRef{
				ID:                p.ID,
				ChargePerHead:     p.ChargePerHead,
				DepositPercentage: p.DepositPercentage,
				TotalAmount:       p.TotalAmount,
				DepositFee:        p.DepositFee,
				DateOfPayment:     p.DateOfPayment,
			}
		}
	}
	return v, nil
}
