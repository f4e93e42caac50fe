package repository

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/dining-reservation/internal/model"
)

type idSet map[uint64]struct{}

func (s idSet) sorted() []uint64 {
	ids := make([]uint64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// memState holds every record kind.  Set-valued fields are kept beside
// the records so that cloning for rollback stays cheap.
type memState struct {
	seq          uint64
	diners       map[uint64]model.Diner
	dinerRes     map[uint64]idSet
	tables       map[uint64]model.Table
	tableRes     map[uint64]idSet
	reservations map[uint64]model.Reservation
	resTables    map[uint64]idSet
	payments     map[uint64]model.Payment
}

func newMemState() memState {
	return memState{
		diners:       map[uint64]model.Diner{},
		dinerRes:     map[uint64]idSet{},
		tables:       map[uint64]model.Table{},
		tableRes:     map[uint64]idSet{},
		reservations: map[uint64]model.Reservation{},
		resTables:    map[uint64]idSet{},
		payments:     map[uint64]model.Payment{},
	}
}

func cloneSets(in map[uint64]idSet) map[uint64]idSet {
	out := make(map[uint64]idSet, len(in))
	for k, set := range in {
		cp := make(idSet, len(set))
		for id := range set {
			cp[id] = struct{}{}
		}
		out[k] = cp
	}
	return out
}

func cloneMap[V any](in map[uint64]V) map[uint64]V {
	out := make(map[uint64]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// clone copies the state deeply enough to restore it after a failed unit
// of work.  Stored pointers (payment totals, payment ids) are never
// mutated in place, so sharing them is safe.
func (st memState) clone() memState {
	return memState{
		seq:          st.seq,
		diners:       cloneMap(st.diners),
		dinerRes:     cloneSets(st.dinerRes),
		tables:       cloneMap(st.tables),
		tableRes:     cloneSets(st.tableRes),
		reservations: cloneMap(st.reservations),
		resTables:    cloneSets(st.resTables),
		payments:     cloneMap(st.payments),
	}
}

// MemoryStore is an in-process Store.  Units of work are serialized and
// a failed unit of work restores the state it started from.  It backs
// the test suites and the server when no database is configured.
type MemoryStore struct {
	mu    sync.Mutex
	state memState
	now   func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: newMemState(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Tx runs fn against the store.  When fn returns an error or panics the
// state is rolled back.
func (s *MemoryStore) Tx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.state.clone()
	committed := false
	defer func() {
		if !committed {
			s.state = snapshot
		}
	}()
	if err := fn(&memTx{st: &s.state, now: s.now}); err != nil {
		return err
	}
	committed = true
	return nil
}

type memTx struct {
	st  *memState
	now func() time.Time
}

func (t *memTx) nextID() uint64 {
	t.st.seq++
	return t.st.seq
}

func (t *memTx) CreateDiner(ctx context.Context, d *model.Diner) error {
	for _, other := range t.st.diners {
		if strings.EqualFold(other.Email, d.Email) {
			return ErrConflict
		}
	}
	d.ID = t.nextID()
	d.DateRegistered = t.now()
	d.ReservationCount = 0
	d.Reservations = []uint64{}
	stored := *d
	stored.Reservations = nil
	t.st.diners[d.ID] = stored
	t.st.dinerRes[d.ID] = idSet{}
	return nil
}

func (t *memTx) Diner(ctx context.Context, id uint64) (*model.Diner, error) {
	d, ok := t.st.diners[id]
	if !ok {
		return nil, ErrNotFound
	}
	d.Reservations = t.st.dinerRes[id].sorted()
	return &d, nil
}

func (t *memTx) ListDiners(ctx context.Context, q PageQuery) ([]model.Diner, int, error) {
	q = q.Normalize("-date_registered")
	col, desc, err := q.sortKey("date_registered", "lname", "fname", "reservation_count")
	if err != nil {
		return nil, 0, err
	}
	all := make([]model.Diner, 0, len(t.st.diners))
	for _, d := range t.st.diners {
		all = append(all, d)
	}
	slices.SortStableFunc(all, func(a, b model.Diner) int {
		var c int
		switch col {
		case "date_registered":
			c = a.DateRegistered.Compare(b.DateRegistered)
		case "lname":
			c = cmp.Compare(a.LName, b.LName)
		case "fname":
			c = cmp.Compare(a.FName, b.FName)
		case "reservation_count":
			c = cmp.Compare(a.ReservationCount, b.ReservationCount)
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if desc {
			return -c
		}
		return c
	})
	return pageOf(all, q), len(all), nil
}

func (t *memTx) LinkDinerReservation(ctx context.Context, dinerID, reservationID uint64) error {
	d, ok := t.st.diners[dinerID]
	if !ok {
		return ErrNotFound
	}
	t.st.dinerRes[dinerID][reservationID] = struct{}{}
	d.ReservationCount = len(t.st.dinerRes[dinerID])
	t.st.diners[dinerID] = d
	return nil
}

func (t *memTx) UnlinkDinerReservation(ctx context.Context, reservationID uint64) (int64, error) {
	var n int64
	for id, set := range t.st.dinerRes {
		if _, ok := set[reservationID]; !ok {
			continue
		}
		delete(set, reservationID)
		d := t.st.diners[id]
		d.ReservationCount = len(set)
		t.st.diners[id] = d
		n++
	}
	return n, nil
}

func (t *memTx) CreateTable(ctx context.Context, tb *model.Table) error {
	for _, other := range t.st.tables {
		if other.Number == tb.Number {
			return ErrConflict
		}
	}
	tb.ID = t.nextID()
	tb.ReservationCount = 0
	tb.Reservations = []uint64{}
	stored := *tb
	stored.Reservations = nil
	t.st.tables[tb.ID] = stored
	t.st.tableRes[tb.ID] = idSet{}
	return nil
}

func (t *memTx) Table(ctx context.Context, id uint64) (*model.Table, error) {
	tb, ok := t.st.tables[id]
	if !ok {
		return nil, ErrNotFound
	}
	tb.Reservations = t.st.tableRes[id].sorted()
	return &tb, nil
}

func (t *memTx) Tables(ctx context.Context, ids []uint64) ([]model.Table, error) {
	seen := idSet{}
	for _, id := range ids {
		if _, ok := t.st.tables[id]; ok {
			seen[id] = struct{}{}
		}
	}
	out := make([]model.Table, 0, len(seen))
	for _, id := range seen.sorted() {
		out = append(out, t.st.tables[id])
	}
	return out, nil
}

func (t *memTx) ListTables(ctx context.Context, q PageQuery) ([]model.Table, int, error) {
	q = q.Normalize("number")
	col, desc, err := q.sortKey("number", "capacity", "reservation_count")
	if err != nil {
		return nil, 0, err
	}
	all := make([]model.Table, 0, len(t.st.tables))
	for _, tb := range t.st.tables {
		all = append(all, tb)
	}
	slices.SortStableFunc(all, func(a, b model.Table) int {
		var c int
		switch col {
		case "number":
			c = cmp.Compare(a.Number, b.Number)
		case "capacity":
			c = cmp.Compare(a.Capacity, b.Capacity)
		case "reservation_count":
			c = cmp.Compare(a.ReservationCount, b.ReservationCount)
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if desc {
			return -c
		}
		return c
	})
	return pageOf(all, q), len(all), nil
}

func (t *memTx) LinkTableReservation(ctx context.Context, tableIDs []uint64, reservationID uint64) (int64, error) {
	var matched int64
	for _, id := range tableIDs {
		tb, ok := t.st.tables[id]
		if !ok {
			continue
		}
		set := t.st.tableRes[id]
		set[reservationID] = struct{}{}
		tb.ReservationCount = len(set)
		t.st.tables[id] = tb
		matched++
	}
	return matched, nil
}

func (t *memTx) UnlinkTableReservation(ctx context.Context, reservationID uint64) (int64, error) {
	var n int64
	for id, set := range t.st.tableRes {
		if _, ok := set[reservationID]; !ok {
			continue
		}
		delete(set, reservationID)
		tb := t.st.tables[id]
		tb.ReservationCount = len(set)
		t.st.tables[id] = tb
		n++
	}
	return n, nil
}

func (t *memTx) CreateReservation(ctx context.Context, r *model.Reservation) error {
	now := t.now()
	r.ID = t.nextID()
	r.Tables = []uint64{}
	r.TableCount = 0
	r.CreatedAt = now
	r.UpdatedAt = now
	stored := *r
	stored.Tables = nil
	t.st.reservations[r.ID] = stored
	t.st.resTables[r.ID] = idSet{}
	return nil
}

func (t *memTx) Reservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	r, ok := t.st.reservations[id]
	if !ok {
		return nil, ErrNotFound
	}
	r.Tables = t.st.resTables[id].sorted()
	return &r, nil
}

// ReservationForUpdate is Reservation: the store mutex already serializes
// units of work.
func (t *memTx) ReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error) {
	return t.Reservation(ctx, id)
}

func (t *memTx) ListReservations(ctx context.Context, q PageQuery) ([]model.Reservation, int, error) {
	q = q.Normalize("-date_reserved")
	col, desc, err := q.sortKey("date_reserved", "guests_count", "status", "created_at")
	if err != nil {
		return nil, 0, err
	}
	all := make([]model.Reservation, 0, len(t.st.reservations))
	for _, r := range t.st.reservations {
		all = append(all, r)
	}
	slices.SortStableFunc(all, func(a, b model.Reservation) int {
		var c int
		switch col {
		case "date_reserved":
			c = a.DateReserved.Compare(b.DateReserved)
		case "guests_count":
			c = cmp.Compare(a.GuestsCount, b.GuestsCount)
		case "status":
			c = cmp.Compare(a.Status, b.Status)
		case "created_at":
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if desc {
			return -c
		}
		return c
	})
	return pageOf(all, q), len(all), nil
}

func (t *memTx) AddReservationTables(ctx context.Context, id uint64, tableIDs []uint64, status model.Status) error {
	r, ok := t.st.reservations[id]
	if !ok {
		return ErrNotFound
	}
	set := t.st.resTables[id]
	for _, tid := range tableIDs {
		set[tid] = struct{}{}
	}
	r.TableCount = len(set)
	r.Status = status
	r.UpdatedAt = t.now()
	t.st.reservations[id] = r
	return nil
}

func (t *memTx) SetReservationPayment(ctx context.Context, id, paymentID uint64, status model.Status) error {
	r, ok := t.st.reservations[id]
	if !ok {
		return ErrNotFound
	}
	pid := paymentID
	r.PaymentID = &pid
	r.Status = status
	r.UpdatedAt = t.now()
	t.st.reservations[id] = r
	return nil
}

func (t *memTx) UpdateReservationDetails(ctx context.Context, id uint64, patch model.ReservationPatch) error {
	r, ok := t.st.reservations[id]
	if !ok {
		return ErrNotFound
	}
	if patch.GuestsCount != nil {
		r.GuestsCount = *patch.GuestsCount
	}
	if patch.DateReserved != nil {
		r.DateReserved = patch.DateReserved.UTC()
	}
	r.UpdatedAt = t.now()
	t.st.reservations[id] = r
	return nil
}

func (t *memTx) DeleteReservation(ctx context.Context, id uint64) error {
	if _, ok := t.st.reservations[id]; !ok {
		return ErrNotFound
	}
	delete(t.st.reservations, id)
	delete(t.st.resTables, id)
	return nil
}

func (t *memTx) CreatePayment(ctx context.Context, p *model.Payment) error {
	if _, ok := t.st.payments[p.ID]; ok {
		return ErrConflict
	}
	p.TotalAmount = nil
	p.DepositFee = nil
	p.DateOfPayment = p.DateOfPayment.UTC()
	p.CreatedAt = t.now()
	t.st.payments[p.ID] = *p
	return nil
}

func (t *memTx) Payment(ctx context.Context, id uint64) (*model.Payment, error) {
	p, ok := t.st.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (t *memTx) SetPaymentTotal(ctx context.Context, id uint64, total float64) error {
	p, ok := t.st.payments[id]
	if !ok {
		return ErrNotFound
	}
	v := total
	p.TotalAmount = &v
	t.st.payments[id] = p
	return nil
}

func (t *memTx) SetPaymentDepositFee(ctx context.Context, id uint64, fee float64) error {
	p, ok := t.st.payments[id]
	if !ok {
		return ErrNotFound
	}
	v := fee
	p.DepositFee = &v
	t.st.payments[id] = p
	return nil
}

func (t *memTx) DeletePayment(ctx context.Context, id uint64) (int64, error) {
	if _, ok := t.st.payments[id]; !ok {
		return 0, nil
	}
	delete(t.st.payments, id)
	return 1, nil
}

func pageOf[T any](all []T, q PageQuery) []T {
	start := q.Offset()
	if start < 0 || start >= len(all) {
		return []T{}
	}
	end := start + q.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}
