package entity

import "time"

// StockRecord representa el stock de un producto para un tenant (una fila por tenant+producto).
// Quantity es el stock físico; ReservedQuantity lo comprometido y aún no consumido.
// MinQuantity y MaxQuantity son límites de alerta, no restricciones.
type StockRecord struct {
	TenantID         int64
	ProductID        int64
	Quantity         int64
	ReservedQuantity int64
	MinQuantity      int64
	MaxQuantity      int64
	Version          int64 // control optimista: se incrementa en cada Save
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AvailableQuantity cantidad que aún puede comprometerse (físico - reservado).
func (s StockRecord) AvailableQuantity() int64 {
	return s.Quantity - s.ReservedQuantity
}

// StockKey identifica una fila de stock.
type StockKey struct {
	TenantID  int64
	ProductID int64
}

// Key devuelve la llave (tenant, producto) del registro.
func (s StockRecord) Key() StockKey {
	return StockKey{TenantID: s.TenantID, ProductID: s.ProductID}
}
