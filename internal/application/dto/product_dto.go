package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// SyncProductRequest body para PUT /api/catalog/products/:product_id.
// El catálogo se administra fuera; aquí solo se replica lo que usan los reportes.
type SyncProductRequest struct {
	SKU   string          `json:"sku"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// ProductResponse producto de la réplica local.
type ProductResponse struct {
	ID        int64           `json:"id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewProductResponse mapea la entidad.
func NewProductResponse(p entity.Product) ProductResponse {
	return ProductResponse{ID: p.ID, SKU: p.SKU, Name: p.Name, Price: p.Price, UpdatedAt: p.UpdatedAt}
}
