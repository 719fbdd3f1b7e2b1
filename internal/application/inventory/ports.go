package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción, pasando repositorios atados a esa tx.
// Si fn devuelve error se hace Rollback; si no, Commit. Los bloqueos tomados con
// GetForUpdate se liberan al terminar la transacción.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		stockRepo repository.StockRecordRepository,
		movRepo repository.MovementRepository,
	) error) error
}

// Observer recibe el resultado de cada operación del motor (métricas).
type Observer interface {
	ObserveOperation(operation string, kind domain.ErrorKind, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, domain.ErrorKind, time.Duration) {}
