package uow

import (
	"context"

	"gorm.io/gorm"

	"pharmatrace/internal/errs"
	"pharmatrace/internal/ports"
)

// UnitOfWork implements ports.UnitOfWork with gorm.
type UnitOfWork struct {
	db *gorm.DB
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// WithTx joins the transaction already carried by ctx, or opens a new one.
// Begin and commit failures carry a stack; fn's own error is returned as is.
func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ports.InTx(ctx) {
		return fn(ctx)
	}
	var fnErr error
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(ports.WithTxContext(ctx, tx))
		return fnErr
	})
	if err != nil && fnErr == nil {
		return errs.WithStack(errs.Wrap(err, "run transaction"))
	}
	return err
}
