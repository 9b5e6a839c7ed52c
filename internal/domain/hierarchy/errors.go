package hierarchy

import (
	"errors"

	"pharmatrace/internal/errs"
)

var (
	ErrNoCases            = errs.Kind(errs.ErrValidation, errors.New("at least one case id is required"))
	ErrActorRequired      = errs.Kind(errs.ErrValidation, errors.New("actor id is required"))
	ErrUnknownOperation   = errs.Kind(errs.ErrValidation, errors.New("unknown hierarchy operation"))
	ErrCaseNotFound       = errs.Kind(errs.ErrNotFound, errors.New("case not found or not owned by actor"))
	ErrPackageNotFound    = errs.Kind(errs.ErrNotFound, errors.New("package not found or not owned by actor"))
	ErrShipmentNotFound   = errs.Kind(errs.ErrNotFound, errors.New("shipment not found"))
	ErrCaseAlreadyPacked  = errs.Kind(errs.ErrConflict, errors.New("case already assigned to a package"))
	ErrContainerFrozen    = errs.Kind(errs.ErrConflict, errors.New("dispatched container cannot be re-parented"))
	ErrPackageEmpty       = errs.Kind(errs.ErrConflict, errors.New("package has no cases"))
	ErrPackRetriesReached = errs.Kind(errs.ErrExhaustedRetries, errors.New("pack kept colliding on sscc"))
)
