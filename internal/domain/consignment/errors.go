package consignment

import (
	"errors"

	"pharmatrace/internal/errs"
)

var (
	ErrEventIDRequired       = errs.Kind(errs.ErrValidation, errors.New("header.event_id is required"))
	ErrConsignmentIDRequired = errs.Kind(errs.ErrValidation, errors.New("consignment.consignment_id is required"))
	ErrNoItems               = errs.Kind(errs.ErrValidation, errors.New("consignment.items must not be empty"))
	ErrUnknownItemType       = errs.Kind(errs.ErrValidation, errors.New("unknown item type"))
	ErrBatchFieldMissing     = errs.Kind(errs.ErrValidation, errors.New("batch item requires gtin, batch_no and quantity"))
	ErrNegativeQuantity      = errs.Kind(errs.ErrValidation, errors.New("quantity must not be negative"))
	ErrDuplicateSSCC         = errs.Kind(errs.ErrValidation, errors.New("sscc appears on more than one item"))
	ErrInvalidDate           = errs.Kind(errs.ErrValidation, errors.New("invalid date"))
	ErrInvalidRange          = errs.Kind(errs.ErrValidation, errors.New("invalid serialization range"))

	ErrDuplicateEvent   = errs.Kind(errs.ErrConflict, errors.New("consignment event already imported"))
	ErrUnknownProduct   = errs.Kind(errs.ErrNotFound, errors.New("gtin not found in product catalog"))
	ErrOrphanPackage    = errs.Kind(errs.ErrBadHierarchy, errors.New("package parent cannot be resolved to a shipment"))
	ErrOrphanCase       = errs.Kind(errs.ErrBadHierarchy, errors.New("case parent cannot be resolved to a package"))
	ErrBatchNeedsCase   = errs.Kind(errs.ErrBadHierarchy, errors.New("batch parent must be a case created in the same import"))
	ErrLabelsExhausted  = errs.Kind(errs.ErrExhaustedRetries, errors.New("no free case label within attempt bound"))
	ErrQuantityExceeded = errs.Kind(errs.ErrConflict, errors.New("allocated quantity exceeds batch total"))
)
