package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReportRequest parámetros comunes de los reportes (query string).
type ReportRequest struct {
	StartDate string `query:"start_date"` // YYYY-MM-DD o RFC3339; vacío = sin límite
	EndDate   string `query:"end_date"`   // YYYY-MM-DD (inclusive) o RFC3339
	Limit     int    `query:"limit"`      // solo most-used; <= 0 usa 10
}

// ── Rotación ─────────────────────────────────────────────────────────────────

// TurnoverItemDTO rotación de un producto en el período.
type TurnoverItemDTO struct {
	ProductID   int64           `json:"product_id"`
	SKU         string          `json:"sku,omitempty"`
	ProductName string          `json:"product_name,omitempty"`
	Entries     int64           `json:"entries"`  // Σ cantidades entry
	Exits       int64           `json:"exits"`    // Σ cantidades exit
	Turnover    decimal.Decimal `json:"turnover"` // exits / max(entries, 1)
}

// StockTurnoverReportDTO foto de la rotación del tenant.
type StockTurnoverReportDTO struct {
	StartDate       *time.Time        `json:"start_date,omitempty"`
	EndDate         *time.Time        `json:"end_date,omitempty"`
	Products        []TurnoverItemDTO `json:"products"`
	TotalEntries    int64             `json:"total_entries"`
	TotalExits      int64             `json:"total_exits"`
	AverageTurnover decimal.Decimal   `json:"average_turnover"`
	GeneratedAt     time.Time         `json:"generated_at"`
}

// ── Más usados ───────────────────────────────────────────────────────────────

// MostUsedProductDTO consumo acumulado de un producto.
// TotalValue se valoriza con el precio vigente, no con el del momento del consumo.
type MostUsedProductDTO struct {
	ProductID   int64           `json:"product_id"`
	SKU         string          `json:"sku,omitempty"`
	ProductName string          `json:"product_name,omitempty"`
	TotalUsage  int64           `json:"total_usage"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalValue  decimal.Decimal `json:"total_value"` // TotalUsage * UnitPrice
}

// MostUsedProductsReportDTO ranking de consumo.
type MostUsedProductsReportDTO struct {
	StartDate   *time.Time           `json:"start_date,omitempty"`
	EndDate     *time.Time           `json:"end_date,omitempty"`
	Limit       int                  `json:"limit"`
	Products    []MostUsedProductDTO `json:"products"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// ── Alertas ──────────────────────────────────────────────────────────────────

// Estados de alerta de stock.
const (
	StockAlertLow  = "low"  // disponible bajo el mínimo
	StockAlertOver = "over" // físico sobre el máximo
)

// StockAlertDTO registro fuera de sus límites de alerta.
type StockAlertDTO struct {
	ProductID         int64  `json:"product_id"`
	SKU               string `json:"sku,omitempty"`
	ProductName       string `json:"product_name,omitempty"`
	Quantity          int64  `json:"quantity"`
	ReservedQuantity  int64  `json:"reserved_quantity"`
	AvailableQuantity int64  `json:"available_quantity"`
	MinQuantity       int64  `json:"min_quantity"`
	MaxQuantity       int64  `json:"max_quantity"`
	Status            string `json:"status"`
}

// ── Conciliación ─────────────────────────────────────────────────────────────

// ChainBreakDTO movimiento que no encadena con el historial.
type ChainBreakDTO struct {
	MovementID       int64  `json:"movement_id"`
	Type             string `json:"type"`
	ExpectedPrevious int64  `json:"expected_previous"`
	PreviousQuantity int64  `json:"previous_quantity"`
	CurrentQuantity  int64  `json:"current_quantity"`
}

// ReconciliationDTO compara el registro guardado con el reconstruido desde el libro.
type ReconciliationDTO struct {
	ProductID                int64           `json:"product_id"`
	StoredQuantity           int64           `json:"stored_quantity"`
	StoredReservedQuantity   int64           `json:"stored_reserved_quantity"`
	ReplayedQuantity         int64           `json:"replayed_quantity"`
	ReplayedReservedQuantity int64           `json:"replayed_reserved_quantity"`
	Movements                int             `json:"movements"`
	Entries                  int64           `json:"entries"`
	Exits                    int64           `json:"exits"`
	Returns                  int64           `json:"returns"`
	Adjustments              int64           `json:"adjustments"`
	Breaks                   []ChainBreakDTO `json:"breaks"`
	Consistent               bool            `json:"consistent"`
}
