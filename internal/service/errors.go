package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// NotFoundError reports a referenced record that does not exist.  IDs
// lists the missing ids when more than one record was looked up.
type NotFoundError struct {
	Resource string
	IDs      []uint64
	Err      error
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	if len(e.IDs) == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = strconv.FormatUint(id, 10)
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, strings.Join(ids, ", "))
}

func (e NotFoundError) Unwrap() error { return e.Err }

// ValidationError reports malformed input detected before any write.
type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e ValidationError) Error() string {
	if e.Msg != "" && e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

func (e ValidationError) Unwrap() error { return e.Err }

// ConflictError reports a request that contradicts the current state of
// a record, such as paying twice or waiting on a busy reservation.
type ConflictError struct {
	Resource string
	Msg      string
	Err      error
}

func (e ConflictError) Error() string {
	switch {
	case e.Msg != "" && e.Resource != "":
		return fmt.Sprintf("%s conflict: %s", e.Resource, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	default:
		return "conflict"
	}
}

func (e ConflictError) Unwrap() error { return e.Err }

// StepError reports a store failure inside a workflow.  The unit of work
// it ran in was rolled back, so none of the workflow's writes are visible.
type StepError struct {
	Workflow string
	Step     string
	Err      error
}

func (e StepError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Workflow, e.Step, e.Err)
}

func (e StepError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsStep(err error) bool {
	var target StepError
	return errors.As(err, &target)
}
