package backupmgr

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failed operations
type ErrorKind string

const (
	KindUnknownSet         ErrorKind = "UNKNOWN_SET"
	KindPreconditionFailed ErrorKind = "PRECONDITION_FAILED"
	KindIOFailure          ErrorKind = "IO_FAILURE"
)

var (
	ErrUnknownSet         = errors.New("unknown backup set")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrIOFailure          = errors.New("io failure")
)

// OperationError is returned by every scheduler and backup set operation that fails
type OperationError struct {
	Kind ErrorKind
	Op   string
	Set  string
	Err  error
}

func (e *OperationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Set, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Set, e.Kind)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match an OperationError against the kind sentinels.
func (e *OperationError) Is(target error) bool {
	switch target {
	case ErrUnknownSet:
		return e.Kind == KindUnknownSet
	case ErrPreconditionFailed:
		return e.Kind == KindPreconditionFailed
	case ErrIOFailure:
		return e.Kind == KindIOFailure
	}
	return false
}

func unknownSet(op, set string) *OperationError {
	return &OperationError{Kind: KindUnknownSet, Op: op, Set: set}
}

func preconditionFailed(op, set, format string, args ...any) *OperationError {
	return &OperationError{Kind: KindPreconditionFailed, Op: op, Set: set, Err: fmt.Errorf(format, args...)}
}

func ioFailure(op, set string, err error) *OperationError {
	return &OperationError{Kind: KindIOFailure, Op: op, Set: set, Err: err}
}
