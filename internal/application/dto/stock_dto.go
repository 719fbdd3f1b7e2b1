package dto

import (
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// OpenStockRecordRequest body para POST /api/stock/records.
type OpenStockRecordRequest struct {
	ProductID       int64 `json:"product_id"`
	InitialQuantity int64 `json:"initial_quantity"`
	MinQuantity     int64 `json:"min_quantity"`
	MaxQuantity     int64 `json:"max_quantity"` // 0 = sin límite superior
}

// StockMovementRequest body de consume/add/reserve/release/return.
// ReferenceType y ReferenceID van juntos: si vienen, identifican el evento de negocio (idempotencia).
type StockMovementRequest struct {
	Quantity      int64  `json:"quantity"`
	Reason        string `json:"reason"`
	ReferenceType string `json:"reference_type,omitempty"`
	ReferenceID   *int64 `json:"reference_id,omitempty"`
}

// AdjustStockRequest body para POST /api/stock/:product_id/adjust (conteo físico).
type AdjustStockRequest struct {
	NewQuantity int64  `json:"new_quantity"`
	Reason      string `json:"reason"`
}

// StockRecordDTO estado del registro de stock.
type StockRecordDTO struct {
	ProductID         int64     `json:"product_id"`
	Quantity          int64     `json:"quantity"`
	ReservedQuantity  int64     `json:"reserved_quantity"`
	AvailableQuantity int64     `json:"available_quantity"`
	MinQuantity       int64     `json:"min_quantity"`
	MaxQuantity       int64     `json:"max_quantity"`
	Version           int64     `json:"version"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// MovementDTO entrada del libro de movimientos.
type MovementDTO struct {
	ID               int64     `json:"id"`
	TransactionID    string    `json:"transaction_id"`
	ProductID        int64     `json:"product_id"`
	Type             string    `json:"type"`
	Quantity         int64     `json:"quantity"`
	PreviousQuantity int64     `json:"previous_quantity"`
	CurrentQuantity  int64     `json:"current_quantity"`
	Reason           string    `json:"reason,omitempty"`
	ReferenceType    string    `json:"reference_type,omitempty"`
	ReferenceID      *int64    `json:"reference_id,omitempty"`
	ActorID          string    `json:"actor_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// StockOperationResponse respuesta de una operación confirmada.
type StockOperationResponse struct {
	Record   StockRecordDTO `json:"record"`
	Movement MovementDTO    `json:"movement"`
}

// MovementListResponse historial de un producto.
type MovementListResponse struct {
	ProductID int64         `json:"product_id"`
	Items     []MovementDTO `json:"items"`
}

// NewStockRecordDTO mapea la entidad.
func NewStockRecordDTO(r entity.StockRecord) StockRecordDTO {
	return StockRecordDTO{
		ProductID:         r.ProductID,
		Quantity:          r.Quantity,
		ReservedQuantity:  r.ReservedQuantity,
		AvailableQuantity: r.AvailableQuantity(),
		MinQuantity:       r.MinQuantity,
		MaxQuantity:       r.MaxQuantity,
		Version:           r.Version,
		UpdatedAt:         r.UpdatedAt,
	}
}

// NewMovementDTO mapea la entidad.
func NewMovementDTO(m entity.Movement) MovementDTO {
	out := MovementDTO{
		ID:               m.ID,
		TransactionID:    m.TransactionID,
		ProductID:        m.ProductID,
		Type:             m.Type,
		Quantity:         m.Quantity,
		PreviousQuantity: m.PreviousQuantity,
		CurrentQuantity:  m.CurrentQuantity,
		Reason:           m.Reason,
		ActorID:          m.ActorID,
		CreatedAt:        m.CreatedAt,
	}
	if m.Reference != nil {
		id := m.Reference.ID
		out.ReferenceType = m.Reference.Type
		out.ReferenceID = &id
	}
	return out
}
