package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product vista de solo lectura del catálogo externo; los reportes la usan para valorizar.
type Product struct {
	ID        int64
	TenantID  int64
	SKU       string
	Name      string
	Price     decimal.Decimal // precio de venta vigente
	UpdatedAt time.Time
}
