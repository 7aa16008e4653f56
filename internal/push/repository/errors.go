package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	bolterrors "go.etcd.io/bbolt/errors"
	"gorm.io/gorm"
)

// ErrNotFound indicates the requested record does not exist for the caller
var ErrNotFound = errors.New("not found")

// ErrorKind tags a store failure so callers can decide about retries
// without knowing which database produced it.
type ErrorKind int

const (
	// KindTransient covers network and availability failures; retrying may succeed.
	KindTransient ErrorKind = iota + 1
	// KindConflict is a uniqueness violation the store could not resolve itself.
	KindConflict
	// KindFatal covers programming-level failures; retrying will not help.
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindConflict:
		return "conflict"
	case KindFatal:
		return "fatal"
	}
	return "unknown"
}

// StoreError is the tagged error returned by token and notification stores
type StoreError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError wraps err with an explicit kind
func NewStoreError(kind ErrorKind, op string, err error) error {
	return &StoreError{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of a store error; untagged errors count as transient
func KindOf(err error) ErrorKind {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindTransient
}

func IsConflict(err error) bool {
	return err != nil && KindOf(err) == KindConflict
}

func IsTransient(err error) bool {
	return err != nil && KindOf(err) == KindTransient
}

func IsFatal(err error) bool {
	return err != nil && KindOf(err) == KindFatal
}

// classify tags a raw driver error.
// gorm is opened with TranslateError so duplicate keys arrive as gorm.ErrDuplicatedKey
// regardless of the SQL dialect.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}

	var netErr net.Error
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return NewStoreError(KindConflict, op, err)
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, bolterrors.ErrTimeout),
		errors.Is(err, bolterrors.ErrDatabaseNotOpen),
		errors.As(err, &netErr):
		return NewStoreError(KindTransient, op, err)
	case errors.Is(err, gorm.ErrInvalidData),
		errors.Is(err, gorm.ErrInvalidField),
		errors.Is(err, gorm.ErrInvalidValue),
		errors.Is(err, gorm.ErrMissingWhereClause),
		errors.Is(err, gorm.ErrModelValueRequired),
		errors.Is(err, bolterrors.ErrDatabaseReadOnly),
		errors.Is(err, bolterrors.ErrBucketNotFound):
		return NewStoreError(KindFatal, op, err)
	}
	// Remote databases fail mostly through availability problems.
	return NewStoreError(KindTransient, op, err)
}
