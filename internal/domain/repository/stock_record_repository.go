package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// StockRecordRepository define el puerto de persistencia de StockRecord (una fila por tenant+producto).
// Las mutaciones se hacen siempre dentro de una transacción (ver ledger.TxRunner).
type StockRecordRepository interface {
	// Get lee el registro sin bloquear. domain.ErrNotFound si no existe.
	Get(ctx context.Context, tenantID, productID int64) (*entity.StockRecord, error)
	// GetForUpdate lee y bloquea la fila hasta el fin de la transacción (SELECT FOR UPDATE).
	// domain.ErrLockTimeout si la espera supera el límite configurado.
	GetForUpdate(ctx context.Context, tenantID, productID int64) (*entity.StockRecord, error)
	// Save persiste ambos contadores e incrementa Version.
	// domain.ErrConcurrencyConflict si el registro cambió desde que se leyó.
	Save(ctx context.Context, record *entity.StockRecord) error
	// Create inserta un registro nuevo. domain.ErrDuplicate si ya existe.
	Create(ctx context.Context, record *entity.StockRecord) error
	ListByTenant(ctx context.Context, tenantID int64) ([]*entity.StockRecord, error)
}
