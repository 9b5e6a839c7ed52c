package ports

import "context"

// Tx is the storage-specific transaction a repository runs on. The gorm
// adapters store a *gorm.DB here.
type Tx any

// UnitOfWork runs fn as one pack, unpack, repack or import step. fn's error
// rolls the step back; nil commits it. Repositories reached with fn's ctx
// share the transaction, and nested WithTx calls join the outer one.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// WithTxContext returns a ctx whose repository calls run on tx.
func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the transaction carried by ctx, or nil.
func TxFromContext(ctx context.Context) Tx {
	return ctx.Value(txKey{})
}

// InTx reports whether ctx carries a transaction.
func InTx(ctx context.Context) bool {
	return TxFromContext(ctx) != nil
}

// Detach masks any transaction on ctx, for writes that must outlive the
// caller's commit or rollback.
func Detach(ctx context.Context) context.Context {
	if !InTx(ctx) {
		return ctx
	}
	return WithTxContext(ctx, nil)
}
