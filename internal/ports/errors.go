package ports

import (
	"errors"

	"pharmatrace/internal/errs"
)

var (
	ErrShipmentNotFound    = errs.Kind(errs.ErrNotFound, errors.New("shipment not found"))
	ErrPackageNotFound     = errs.Kind(errs.ErrNotFound, errors.New("package not found"))
	ErrBatchNotFound       = errs.Kind(errs.ErrNotFound, errors.New("batch not found"))
	ErrConsignmentNotFound = errs.Kind(errs.ErrNotFound, errors.New("consignment not found"))

	// ErrDuplicateKey reports a unique index violation on insert, such as an
	// SSCC already held by another container.
	ErrDuplicateKey = errs.Kind(errs.ErrConflict, errors.New("unique key already exists"))
	// ErrStaleAssignment reports that a guarded parent update matched fewer
	// rows than requested because a concurrent writer got there first.
	ErrStaleAssignment = errs.Kind(errs.ErrConflict, errors.New("containers changed state concurrently"))
	// ErrBatchOwnedElsewhere reports a GTIN and batch number already recorded
	// for a different owner.
	ErrBatchOwnedElsewhere = errs.Kind(errs.ErrConflict, errors.New("batch belongs to another owner"))
)
