package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// ProductRepository puerto hacia la réplica local del catálogo (los productos se administran fuera de este servicio).
type ProductRepository interface {
	// GetByIDs devuelve los productos encontrados indexados por ID; los IDs inexistentes se omiten.
	GetByIDs(ctx context.Context, tenantID int64, ids []int64) (map[int64]*entity.Product, error)
	// Upsert sincroniza SKU, nombre y precio vigente de un producto.
	Upsert(ctx context.Context, p *entity.Product) error
}
