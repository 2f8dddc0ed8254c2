package dispatch

import (
	"errors"
	"fmt"

	"github.com/atoms-tech/gridsync/internal/grid"
)

// ErrNotFound indicates the targeted entity is absent from the overlay,
// either because it never existed or because a local delete tombstoned
// it. Not a persistence failure; nothing was rolled back.
var ErrNotFound = errors.New("entity not found")

// Op identifies a dispatcher operation for error reporting.
type Op string

const (
	OpAddColumn    Op = "add_column"
	OpRenameColumn Op = "rename_column"
	OpDeleteColumn Op = "delete_column"
	OpAddRow       Op = "add_row"
	OpDeleteRow    Op = "delete_row"
	OpEditCell     Op = "edit_cell"
)

// PersistError reports a failed persistence call. By the time the caller
// sees it the optimistic mutation has already been rolled back; the view
// is in its pre-mutation state. Transient by nature - the caller decides
// how to surface it (a toast, a retry), never this package.
type PersistError struct {
	Op       Op
	Table    grid.TableID
	EntityID string
	Err      error
}

// Error implements the error interface.
func (e *PersistError) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("%s failed for table %s, entity %s: %v", e.Op, e.Table, e.EntityID, e.Err)
	}
	return fmt.Sprintf("%s failed for table %s: %v", e.Op, e.Table, e.Err)
}

// Unwrap returns the underlying persistence error.
func (e *PersistError) Unwrap() error {
	return e.Err
}

// IsPersistError reports whether err is a rolled-back persistence
// failure. Uses errors.As to handle wrapped errors.
func IsPersistError(err error) bool {
	var pe *PersistError
	return errors.As(err, &pe)
}
