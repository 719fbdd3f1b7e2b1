package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ inventory.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool             *pgxpool.Pool
	lockTimeout      time.Duration
	statementTimeout time.Duration
	onLockWait       func(time.Duration)
}

// TxOption configura el TxRunner.
type TxOption func(*TxRunner)

// WithTimeouts acota la espera de bloqueos (lock_timeout) y la duración de cada sentencia.
func WithTimeouts(lock, statement time.Duration) TxOption {
	return func(r *TxRunner) {
		r.lockTimeout = lock
		r.statementTimeout = statement
	}
}

// WithLockWaitHook recibe el tiempo que tardó cada SELECT FOR UPDATE.
func WithLockWaitHook(fn func(time.Duration)) TxOption {
	return func(r *TxRunner) { r.onLockWait = fn }
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool, opts ...TxOption) *TxRunner {
	r := &TxRunner{pool: pool}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(
	stockRepo repository.StockRecordRepository,
	movRepo repository.MovementRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// set_config(..., true) equivale a SET LOCAL: vale solo para esta transacción.
	if r.lockTimeout > 0 {
		if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, millis(r.lockTimeout)); err != nil {
			return fmt.Errorf("set lock_timeout: %w", err)
		}
	}
	if r.statementTimeout > 0 {
		if _, err := tx.Exec(ctx, `SELECT set_config('statement_timeout', $1, true)`, millis(r.statementTimeout)); err != nil {
			return fmt.Errorf("set statement_timeout: %w", err)
		}
	}

	stockRepo := NewStockRecordRepository(tx)
	stockRepo.onLockWait = r.onLockWait
	movRepo := NewMovementRepository(tx)

	if err := fn(stockRepo, movRepo); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapLockError("commit transaction", err)
	}
	return nil
}

func millis(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}
