package repository

import (
	"context"
	"iter"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// MovementRepository define el puerto del libro de movimientos (solo inserción).
type MovementRepository interface {
	// Append inserta el movimiento y le asigna ID y CreatedAt si vienen vacíos.
	// domain.ErrDuplicateMovement si ya existe un movimiento con la misma llave de idempotencia.
	Append(ctx context.Context, movement *entity.Movement) error
	ExistsByKey(ctx context.Context, key entity.IdempotencyKey) (bool, error)

	// FindByProductAndDateRange recorre los movimientos de un producto en orden de creación ascendente.
	// La secuencia es perezosa y puede recorrerse varias veces (cada recorrido repite la consulta).
	// Un from/to cero significa sin límite.
	FindByProductAndDateRange(ctx context.Context, tenantID, productID int64, from, to time.Time) iter.Seq2[entity.Movement, error]
	// FindByTenantAndDateRange igual que FindByProductAndDateRange pero para todos los productos del tenant.
	FindByTenantAndDateRange(ctx context.Context, tenantID int64, from, to time.Time) iter.Seq2[entity.Movement, error]
}
