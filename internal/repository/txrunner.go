package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hredostate/yebo-transport/internal/repository/base"
)

// TxRunner runs service operations inside a database transaction carried on
// the context.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

func (t *TxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return base.RunInTx(ctx, t.pool, fn)
}
