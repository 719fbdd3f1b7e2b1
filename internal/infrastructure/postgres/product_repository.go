package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.ProductRepository = (*ProductRepo)(nil)

// ProductRepo lectura del catálogo sobre PostgreSQL. price es NUMERIC → decimal.Decimal
// gracias al codec registrado en el pool.
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador. Pasar pool o tx (Querier).
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

// GetByIDs obtiene los productos del tenant con los IDs indicados.
func (r *ProductRepo) GetByIDs(ctx context.Context, tenantID int64, ids []int64) (map[int64]*entity.Product, error) {
	out := make(map[int64]*entity.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := `
		SELECT id, tenant_id, sku, name, price, updated_at
		FROM products WHERE tenant_id = $1 AND id = ANY($2)`
	rows, err := r.q.Query(ctx, query, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p entity.Product
		if err := rows.Scan(&p.ID, &p.TenantID, &p.SKU, &p.Name, &p.Price, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.ID] = &p
	}
	return out, rows.Err()
}

// Upsert registra el producto en la réplica local del catálogo (semillas y sincronización).
func (r *ProductRepo) Upsert(ctx context.Context, p *entity.Product) error {
	query := `
		INSERT INTO products (tenant_id, id, sku, name, price, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (tenant_id, id)
		DO UPDATE SET sku = EXCLUDED.sku, name = EXCLUDED.name, price = EXCLUDED.price, updated_at = now()`
	if _, err := r.q.Exec(ctx, query, p.TenantID, p.ID, p.SKU, p.Name, p.Price); err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}
