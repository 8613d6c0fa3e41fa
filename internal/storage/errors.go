// ABOUTME: Error values returned by the store.
// ABOUTME: Sentinels cover lifecycle and constraint failures; BackendError wraps engine faults.
package storage

import (
	"errors"
	"fmt"

	"github.com/harperreed/trackle/internal/models"
)

var (
	// ErrUnavailable is returned when no live connection exists.
	ErrUnavailable = errors.New("database unavailable")
	// ErrConstraint is returned when a write would duplicate a unique key.
	ErrConstraint = errors.New("constraint violation")
	// ErrUpgrade is returned when the upgrade step fails.
	ErrUpgrade = errors.New("upgrade failed")
	// ErrVersion is returned for a version below 1 or below the stored one.
	ErrVersion = errors.New("invalid version")
	// ErrNoName is returned when opening a database without a name.
	ErrNoName = errors.New("database name required")
	// ErrUnknownTable is returned for a table the schema never created.
	ErrUnknownTable = errors.New("unknown table")
	// ErrUnknownIndex is returned for an index the table does not declare.
	ErrUnknownIndex = errors.New("unknown index")
	// ErrInvalidRecord is returned when a record fails validation.
	ErrInvalidRecord = models.ErrInvalidRecord
)

// BackendError wraps a failure reported by the storage engine.
type BackendError struct {
	Op    string
	Table string
	Err   error
}

func (e *BackendError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func backendErr(op, table string, err error) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{Op: op, Table: table, Err: err}
}

// IsBackendError reports whether err came from the storage engine.
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}
