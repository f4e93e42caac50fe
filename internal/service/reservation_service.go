// Package service implements the reservation lifecycle.  Every workflow
// that mutates a reservation runs under the reservation's lock and inside
// one store unit of work, so either all of its steps become visible or
// none do.  Lifecycle events are published after commit on a best-effort
// basis.
package service

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"github.com/iliyamo/dining-reservation/internal/lock"
	"github.com/iliyamo/dining-reservation/internal/model"
	q "github.com/iliyamo/dining-reservation/internal/queue"
	"github.com/iliyamo/dining-reservation/internal/repository"
)

// Workflow names used in StepError.
const (
	WorkflowCreate  = "create reservation"
	WorkflowTables  = "assign tables"
	WorkflowPayment = "capture payment"
	WorkflowUpdate  = "update reservation"
	WorkflowRemove  = "remove reservation"
)

// publishTimeout bounds event delivery after a workflow commits.
const publishTimeout = 3 * time.Second

// NewReservation is the input of CreateReservation.
type NewReservation struct {
	DinerID      uint64
	GuestsCount  int
	DateReserved time.Time
}

// PaymentInput is the input of CapturePayment.  ChargePerHead and
// DepositPercentage are required; DateOfPayment defaults to now.
type PaymentInput struct {
	ChargePerHead     *float64
	DepositPercentage *float64
	DateOfPayment     *time.Time
}

// ReservationService orchestrates reservations, tables, diners and
// payments.
type ReservationService struct {
	store  repository.Store
	locker lock.Locker
	events Publisher
	now    func() time.Time
}

// NewReservationService wires the service.  A nil locker serializes
// workflows in process; a nil publisher drops events.
func NewReservationService(store repository.Store, locker lock.Locker, events Publisher) *ReservationService {
	if locker == nil {
		locker = lock.NewLocal(3 * time.Second)
	}
	if events == nil {
		events = NopPublisher{}
	}
	return &ReservationService{
		store:  store,
		locker: locker,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateReservation inserts a reservation in status created for an
// existing diner and adds it to the diner's reservations.
func (s *ReservationService) CreateReservation(ctx context.Context, in NewReservation) (*model.ReservationView, error) {
	if in.DinerID == 0 {
		return nil, ValidationError{Field: "diner", Msg: "is required"}
	}
	if in.GuestsCount <= 0 {
		return nil, ValidationError{Field: "guests_count", Msg: "must be greater than zero"}
	}
	if in.DateReserved.IsZero() {
		return nil, ValidationError{Field: "date_reserved", Msg: "is required"}
	}

	var view *model.ReservationView
	err := s.unitOfWork(ctx, WorkflowCreate, func(tx repository.Tx) error {
		if _, err := tx.Diner(ctx, in.DinerID); err != nil {
			return notFound("diner", err, WorkflowCreate, "load diner")
		}
		r := &model.Reservation{
			DinerID:      in.DinerID,
			GuestsCount:  in.GuestsCount,
			DateReserved: in.DateReserved.UTC(),
			Status:       model.StatusCreated,
		}
		if err := tx.CreateReservation(ctx, r); err != nil {
			return StepError{Workflow: WorkflowCreate, Step: "insert reservation", Err: err}
		}
		if err := tx.LinkDinerReservation(ctx, r.DinerID, r.ID); err != nil {
			return StepError{Workflow: WorkflowCreate, Step: "link reservation to diner", Err: err}
		}
		v, err := repository.PopulateReservation(ctx, tx, r, repository.PopulateOptions{Diner: true})
		if err != nil {
			return StepError{Workflow: WorkflowCreate, Step: "read back", Err: err}
		}
		view = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(q.EventCreated, view)
	return view, nil
}

// GetReservation returns a reservation with its diner, tables and payment.
func (s *ReservationService) GetReservation(ctx context.Context, id uint64) (*model.ReservationView, error) {
	var view *model.ReservationView
	err := s.store.Tx(ctx, func(tx repository.Tx) error {
		v, err := repository.Populate(ctx, tx, id, repository.PopulateOptions{
			Diner: true, DinerRegistered: true, Tables: true, Payment: true,
		})
		if err != nil {
			return err
		}
		view = v
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NotFoundError{Resource: "reservation", Err: err}
	}
	return view, err
}

// ListReservations returns one page of reservations with their diners.
// Tables are not resolved.
func (s *ReservationService) ListReservations(ctx context.Context, pq repository.PageQuery) (model.Page[model.ReservationView], error) {
	pq = pq.Normalize("-date_reserved")
	var page model.Page[model.ReservationView]
	err := s.store.Tx(ctx, func(tx repository.Tx) error {
		items, total, err := tx.ListReservations(ctx, pq)
		if err != nil {
			return err
		}
		docs := make([]model.ReservationView, 0, len(items))
		for i := range items {
			v, err := repository.PopulateReservation(ctx, tx, &items[i], repository.PopulateOptions{Diner: true})
			if err != nil {
				return err
			}
			docs = append(docs, *v)
		}
		page = model.NewPage(docs, total, pq.Page, pq.Limit)
		return nil
	})
	return page, sortError(err)
}

// UpdateReservation edits the guests count and date of a reservation.
// Status, tables and payment are owned by the lifecycle workflows and
// cannot be changed here; an existing payment keeps its guests snapshot.
func (s *ReservationService) UpdateReservation(ctx context.Context, id uint64, patch model.ReservationPatch) (*model.ReservationView, error) {
	if patch.GuestsCount != nil && *patch.GuestsCount <= 0 {
		return nil, ValidationError{Field: "guests_count", Msg: "must be greater than zero"}
	}
	if patch.DateReserved != nil {
		if patch.DateReserved.IsZero() {
			return nil, ValidationError{Field: "date_reserved", Msg: "is invalid"}
		}
		d := patch.DateReserved.UTC()
		patch.DateReserved = &d
	}

	var view *model.ReservationView
	err := s.withLock(ctx, id, func() error {
		return s.unitOfWork(ctx, WorkflowUpdate, func(tx repository.Tx) error {
			if _, err := tx.ReservationForUpdate(ctx, id); err != nil {
				return notFound("reservation", err, WorkflowUpdate, "load reservation")
			}
			if patch.GuestsCount != nil || patch.DateReserved != nil {
				if err := tx.UpdateReservationDetails(ctx, id, patch); err != nil {
					return StepError{Workflow: WorkflowUpdate, Step: "update reservation", Err: err}
				}
			}
			v, err := repository.Populate(ctx, tx, id, repository.PopulateOptions{Diner: true, Payment: true})
			if err != nil {
				return StepError{Workflow: WorkflowUpdate, Step: "read back", Err: err}
			}
			view = v
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.publish(q.EventUpdated, view)
	return view, nil
}

// AssignTables attaches tableIDs to the reservation, attaches the
// reservation to each table and moves it to pending.  Ids already
// assigned are not counted twice.
func (s *ReservationService) AssignTables(ctx context.Context, id uint64, tableIDs []uint64) (*model.ReservationView, error) {
	if len(tableIDs) == 0 {
		return nil, ValidationError{Field: "tables", Msg: "must not be empty"}
	}
	seen := make(map[uint64]struct{}, len(tableIDs))
	for _, tid := range tableIDs {
		if tid == 0 {
			return nil, ValidationError{Field: "tables", Msg: "ids must be positive"}
		}
		if _, dup := seen[tid]; dup {
			return nil, ValidationError{Field: "tables", Msg: "ids must be distinct"}
		}
		seen[tid] = struct{}{}
	}

	var view *model.ReservationView
	err := s.withLock(ctx, id, func() error {
		return s.unitOfWork(ctx, WorkflowTables, func(tx repository.Tx) error {
			r, err := tx.ReservationForUpdate(ctx, id)
			if err != nil {
				return notFound("reservation", err, WorkflowTables, "load reservation")
			}
			if r.Status == model.StatusConfirmed {
				return ConflictError{Resource: "reservation", Msg: "tables of a confirmed reservation cannot change"}
			}
			tables, err := tx.Tables(ctx, tableIDs)
			if err != nil {
				return StepError{Workflow: WorkflowTables, Step: "load tables", Err: err}
			}
			if missing := missingIDs(tableIDs, tables); len(missing) > 0 {
				return NotFoundError{Resource: "table", IDs: missing, Err: repository.ErrNotFound}
			}

			if err := tx.AddReservationTables(ctx, id, tableIDs, model.StatusPending); err != nil {
				return StepError{Workflow: WorkflowTables, Step: "add tables to reservation", Err: err}
			}
			n, err := tx.LinkTableReservation(ctx, tableIDs, id)
			if err != nil {
				return StepError{Workflow: WorkflowTables, Step: "link reservation to tables", Err: err}
			}
			if int(n) != len(tableIDs) {
				return StepError{Workflow: WorkflowTables, Step: "link reservation to tables", Err: repository.ErrNotFound}
			}
			v, err := repository.Populate(ctx, tx, id, repository.PopulateOptions{Diner: true, Tables: true})
			if err != nil {
				return StepError{Workflow: WorkflowTables, Step: "read back", Err: err}
			}
			view = v
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.publish(q.EventTablesAssigned, view)
	return view, nil
}

// CapturePayment creates the reservation's payment, computes its total
// and deposit fee and confirms the reservation.  The payment copies the
// reservation's guests count at this moment.
func (s *ReservationService) CapturePayment(ctx context.Context, id uint64, in PaymentInput) (*model.ReservationView, error) {
	if in.ChargePerHead == nil {
		return nil, ValidationError{Field: "charge_per_head", Msg: "is required"}
	}
	if c := *in.ChargePerHead; c < 0 || math.IsNaN(c) || math.IsInf(c, 0) {
		return nil, ValidationError{Field: "charge_per_head", Msg: "must be a non-negative number"}
	}
	if in.DepositPercentage == nil {
		return nil, ValidationError{Field: "deposit_percentage", Msg: "is required"}
	}
	if p := *in.DepositPercentage; !(p >= 0 && p <= 1) {
		return nil, ValidationError{Field: "deposit_percentage", Msg: "must be between 0 and 1"}
	}
	paidAt := s.now()
	if in.DateOfPayment != nil && !in.DateOfPayment.IsZero() {
		paidAt = in.DateOfPayment.UTC()
	}

	var view *model.ReservationView
	err := s.withLock(ctx, id, func() error {
		return s.unitOfWork(ctx, WorkflowPayment, func(tx repository.Tx) error {
			r, err := tx.ReservationForUpdate(ctx, id)
			if err != nil {
				return notFound("reservation", err, WorkflowPayment, "load reservation")
			}
			if r.PaymentID != nil {
				return ConflictError{Resource: "payment", Msg: "reservation is already paid"}
			}
			if r.Status != model.StatusPending {
				return ConflictError{Resource: "reservation", Msg: "tables must be assigned before payment"}
			}

			p := &model.Payment{
				ID:                r.ID,
				GuestsCount:       r.GuestsCount,
				ChargePerHead:     *in.ChargePerHead,
				DepositPercentage: *in.DepositPercentage,
				DateOfPayment:     paidAt,
			}
			if err := tx.CreatePayment(ctx, p); err != nil {
				if errors.Is(err, repository.ErrConflict) {
					return ConflictError{Resource: "payment", Msg: "reservation is already paid", Err: err}
				}
				return StepError{Workflow: WorkflowPayment, Step: "insert payment", Err: err}
			}
			total := float64(p.GuestsCount) * p.ChargePerHead
			if err := tx.SetPaymentTotal(ctx, p.ID, total); err != nil {
				return StepError{Workflow: WorkflowPayment, Step: "set total amount", Err: err}
			}
			stored, err := tx.Payment(ctx, p.ID)
			if err != nil {
				return StepError{Workflow: WorkflowPayment, Step: "reload payment", Err: err}
			}
			if stored.TotalAmount == nil {
				return StepError{Workflow: WorkflowPayment, Step: "reload payment", Err: errors.New("total amount not persisted")}
			}
			fee := *stored.TotalAmount - *stored.TotalAmount*stored.DepositPercentage
			if err := tx.SetPaymentDepositFee(ctx, p.ID, fee); err != nil {
				return StepError{Workflow: WorkflowPayment, Step: "set deposit fee", Err: err}
			}
			if err := tx.SetReservationPayment(ctx, id, p.ID, model.StatusConfirmed); err != nil {
				return StepError{Workflow: WorkflowPayment, Step: "link payment to reservation", Err: err}
			}
			v, err := repository.Populate(ctx, tx, id, repository.PopulateOptions{Diner: true, Payment: true})
			if err != nil {
				return StepError{Workflow: WorkflowPayment, Step: "read back", Err: err}
			}
			view = v
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.publish(q.EventConfirmed, view)
	return view, nil
}

// RemoveReservation deletes a reservation after pulling it out of its
// diner's and tables' reservations and deleting its payment.
func (s *ReservationService) RemoveReservation(ctx context.Context, id uint64) error {
	var removed *model.Reservation
	err := s.withLock(ctx, id, func() error {
		return s.unitOfWork(ctx, WorkflowRemove, func(tx repository.Tx) error {
			r, err := tx.ReservationForUpdate(ctx, id)
			if err != nil {
				return notFound("reservation", err, WorkflowRemove, "load reservation")
			}
			if _, err := tx.UnlinkDinerReservation(ctx, id); err != nil {
				return StepError{Workflow: WorkflowRemove, Step: "unlink diner", Err: err}
			}
			if _, err := tx.UnlinkTableReservation(ctx, id); err != nil {
				return StepError{Workflow: WorkflowRemove, Step: "unlink tables", Err: err}
			}
			if _, err := tx.DeletePayment(ctx, id); err != nil {
				return StepError{Workflow: WorkflowRemove, Step: "delete payment", Err: err}
			}
			if err := tx.DeleteReservation(ctx, id); err != nil {
				return StepError{Workflow: WorkflowRemove, Step: "delete reservation", Err: err}
			}
			removed = r
			return nil
		})
	})
	if err != nil {
		return err
	}
	s.publishEvent(q.LifecycleEvent{
		Type:          q.EventRemoved,
		ReservationID: removed.ID,
		DinerID:       removed.DinerID,
		Tables:        removed.Tables,
	})
	return nil
}

// GetPayment returns a payment by id.
func (s *ReservationService) GetPayment(ctx context.Context, id uint64) (*model.Payment, error) {
	var p *model.Payment
	err := s.store.Tx(ctx, func(tx repository.Tx) error {
		var err error
		p, err = tx.Payment(ctx, id)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NotFoundError{Resource: "payment", Err: err}
	}
	return p, err
}

// withLock runs fn while holding the reservation's lock.
func (s *ReservationService) withLock(ctx context.Context, id uint64, fn func() error) error {
	release, err := s.locker.Acquire(ctx, lock.Key("reservation", id))
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return ConflictError{Resource: "reservation", Msg: "reservation is busy", Err: err}
		}
		return err
	}
	defer release()
	return fn()
}

// unitOfWork runs fn in one store transaction.  Failures of the
// transaction itself (begin, commit) are reported as steps of workflow.
func (s *ReservationService) unitOfWork(ctx context.Context, workflow string, fn func(tx repository.Tx) error) error {
	err := s.store.Tx(ctx, fn)
	if err == nil || IsNotFound(err) || IsValidation(err) || IsConflict(err) || IsStep(err) {
		return err
	}
	log.Printf("reservation-service: %s: %v", workflow, err)
	return StepError{Workflow: workflow, Step: "transaction", Err: err}
}

// notFound maps a failed lookup.  Store errors other than ErrNotFound are
// reported as a failed step.
func notFound(resource string, err error, workflow, step string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return NotFoundError{Resource: resource, Err: err}
	}
	return StepError{Workflow: workflow, Step: step, Err: err}
}

// missingIDs returns the ids in want that are absent from got, in request
// order.
func missingIDs(want []uint64, got []model.Table) []uint64 {
	found := make(map[uint64]struct{}, len(got))
	for _, t := range got {
		found[t.ID] = struct{}{}
	}
	var missing []uint64
	for _, id := range want {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func (s *ReservationService) publish(kind string, v *model.ReservationView) {
	ev := q.LifecycleEvent{
		Type:          kind,
		ReservationID: v.ID,
		DinerID:       v.DinerID,
		Status:        string(v.Status),
		GuestsCount:   v.GuestsCount,
		DateReserved:  v.DateReserved.Format(time.RFC3339),
	}
	for _, t := range v.Tables {
		ev.Tables = append(ev.Tables, t.ID)
	}
	if v.Payment != nil {
		ev.TotalAmount = v.Payment.TotalAmount
		ev.DepositFee = v.Payment.DepositFee
	}
	s.publishEvent(ev)
}

// publishEvent delivers ev detached from the request context.  A failed
// delivery is logged and never fails the committed workflow.
func (s *ReservationService) publishEvent(ev q.LifecycleEvent) {
	ev.OccurredAt = s.now().Format(time.RFC3339)
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.events.Publish(ctx, ev); err != nil {
		log.Printf("reservation-service: publish %s for reservation %d failed: %v", ev.Type, ev.ReservationID, err)
	}
}
