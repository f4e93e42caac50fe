package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/dining-reservation/internal/model"
	"github.com/iliyamo/dining-reservation/internal/repository"
)

// NewDiner is the input of CreateDiner.  Fields are stored trimmed, as
// given.
type NewDiner struct {
	FName string
	LName string
	Email string
	Phone string
}

// NewTable is the input of CreateTable.
type NewTable struct {
	Number   int
	Capacity int
}

// CatalogService manages diners and tables outside the reservation
// lifecycle.
type CatalogService struct {
	store repository.Store
}

func NewCatalogService(store repository.Store) *CatalogService {
	return &CatalogService{store: store}
}

func (s *CatalogService) CreateDiner(ctx context.Context, in NewDiner) (*model.Diner, error) {
	d := &model.Diner{
		FName: strings.TrimSpace(in.FName),
		LName: strings.TrimSpace(in.LName),
		Email: strings.TrimSpace(in.Email),
		Phone: strings.TrimSpace(in.Phone),
	}
	switch {
	case d.FName == "":
		return nil, ValidationError{Field: "fname", Msg: "is required"}
	case d.LName == "":
		return nil, ValidationError{Field: "lname", Msg: "is required"}
	case d.Email == "":
		return nil, ValidationError{Field: "email", Msg: "is required"}
	}
	err := s.store.Tx(ctx, func(tx repository.Tx) error {
		return tx.CreateDiner(ctx, d)
	})
	if errors.Is(err, repository.ErrConflict) {
		return nil, ConflictError{Resource: "diner", Msg: "email already registered", Err: err}
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *CatalogService) GetDiner(ctx context.Context, id uint64) (*model.Diner, error) {
	var d *model.Diner
	err := s.store.Tx(ctx, func(tx repository.Tx) error {
		var err error
		d, err = tx.Diner(ctx, id)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NotFoundError{Resource: "diner", Err: err}
	}
	return d, err
}

func (s *CatalogService) ListDiners(ctx context.Context, pq repository.PageQuery) (model.Page[model.Diner], error) {
	pq = pq.Normalize("-date_registered")
	var page model.Page[model.Diner]
	err := s.store.Tx(ctx, func(tx repository.Tx) error {
		items, total, err := tx.ListDiners(ctx, pq)
		if err != nil {
			return err
		}
		page = model.NewPage(items, total, pq.Page, pq.Limit)
		return nil
	})
	return page, sortError(err)
}

func (s *CatalogService) CreateTable(ctx context.Context, in NewTable) (*model.Table, error) {
	if in.Number <= 0 {
		return nil, ValidationError{Field: "number", Msg: "must be greater than zero"}
	}
	if in.Capacity <= 0 {
		return nil, ValidationError{Field: "capacity", Msg: "must be greater than zero"}
	}
	t := &model.Table{Number: in.Number, Capacity: in.Capacity}
	err := s.store.Tx(ctx, func(tx repository.Tx) error {
		return tx.CreateTable(ctx, t)
	})
	if errors.Is(err, repository.ErrConflict) {
		return nil, ConflictError{Resource: "table", Msg: "number already in use", Err: err}
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *CatalogService) GetTable(ctx context.Context, id uint64) (*model.Table, error) {
	var t *model.Table
	err := s.store.Tx(ctx, func(tx repository.Tx) error {
		var err error
		t, err = tx.Table(ctx, id)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NotFoundError{Resource: "table", Err: err}
	}
	return t, err
}

func (s *CatalogService) ListTables(ctx context.Context, pq repository.PageQuery) (model.Page[model.Table], error) {
	pq = pq.Normalize("number")
	var page model.Page[model.Table]
	err := s.store.Tx(ctx, func(tx repository.Tx) error {
		items, total, err := tx.ListTables(ctx, pq)
		if err != nil {
			return err
		}
		page = model.NewPage(items, total, pq.Page, pq.Limit)
		return nil
	})
	return page, sortError(err)
}

func sortError(err error) error {
	if errors.Is(err, repository.ErrInvalidSort) {
		return ValidationError{Field: "sort", Msg: err.Error(), Err: err}
	}
	return err
}
