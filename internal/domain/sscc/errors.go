package sscc

import (
	"errors"

	"pharmatrace/internal/errs"
)

var (
	ErrInvalidPrefix    = errs.Kind(errs.ErrValidation, errors.New("company prefix must be 6-12 digits"))
	ErrInvalidExtension = errs.Kind(errs.ErrValidation, errors.New("extension digit must be 0-9"))
	ErrInvalidCode      = errs.Kind(errs.ErrValidation, errors.New("sscc must be 18 digits with a valid check digit"))
	ErrInvalidBase      = errs.Kind(errs.ErrValidation, errors.New("sscc base must be 17 digits"))
	ErrExhausted        = errs.Kind(errs.ErrExhaustedRetries, errors.New("no unique sscc within attempt bound"))
)
