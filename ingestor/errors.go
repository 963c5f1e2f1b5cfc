package ingestor

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"

	"github.com/traindw/ingestor/irail"
)

// ValidationError is returned by the Normalizer when a raw record is
// malformed. The record is rejected individually; the batch goes on.
type ValidationError struct {
	Category Category
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s record: %s: %s", e.Category, e.Field, e.Reason)
}

// ResolutionError is returned by the Resolver when a dimension key cannot be
// established, typically because the natural key is absent. The dependent
// fact is skipped rather than inserted with a dangling reference.
type ResolutionError struct {
	Kind       string
	NaturalKey string
	Reason     string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %s %q: %s", e.Kind, e.NaturalKey, e.Reason)
}

// StoreError wraps a failure from the store. Transient failures (dropped
// connections, lock timeouts, serialization aborts) are retried with
// backoff; permanent ones (constraint violations, schema mismatches) are
// surfaced immediately.
type StoreError struct {
	Op        string
	Transient bool
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %s", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Temporary tells whether retrying the operation can succeed
func (e *StoreError) Temporary() bool {
	return e.Transient
}

// Postgres error classes that indicate a condition worth retrying:
// connection exceptions, transaction rollbacks (serialization failures,
// deadlocks), insufficient resources and lock timeouts.
var transientPqClasses = map[string]bool{
	"08": true,
	"40": true,
	"53": true,
	"55": true,
	"57": true,
}

func storeError(op string, err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		class := string(pqErr.Code.Class())
		return &StoreError{Op: op, Transient: transientPqClasses[class], Err: err}
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return &StoreError{Op: op, Transient: true, Err: err}
	}
	return &StoreError{Op: op, Transient: false, Err: err}
}

// IsTransient tells whether err is worth retrying
func IsTransient(err error) bool {
	var fetchErr *irail.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Temporary()
	}
	var stErr *StoreError
	if errors.As(err, &stErr) {
		return stErr.Temporary()
	}
	return false
}

func errorKind(err error) string {
	var fetchErr *irail.FetchError
	var valErr *ValidationError
	var resErr *ResolutionError
	var stErr *StoreError
	switch {
	case errors.As(err, &fetchErr):
		return "fetch"
	case errors.As(err, &valErr):
		return "validation"
	case errors.As(err, &resErr):
		return "resolution"
	case errors.As(err, &stErr):
		return "store"
	default:
		return "other"
	}
}
