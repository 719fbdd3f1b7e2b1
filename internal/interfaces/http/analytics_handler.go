package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/stock-ledger/internal/application/analytics"
	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// ReportHandler maneja los reportes de solo lectura del libro de stock.
type ReportHandler struct {
	uc  *analytics.ReportUseCase
	log *logger.Logger
}

// NewReportHandler construye el handler.
func NewReportHandler(uc *analytics.ReportUseCase, log *logger.Logger) *ReportHandler {
	return &ReportHandler{uc: uc, log: log}
}

func (h *ReportHandler) filters(c *fiber.Ctx) (analytics.Filters, error) {
	var req dto.ReportRequest
	if err := c.QueryParser(&req); err != nil {
		return analytics.Filters{}, err
	}
	from, err := parseDate(req.StartDate, false)
	if err != nil {
		return analytics.Filters{}, err
	}
	to, err := parseDate(req.EndDate, true)
	if err != nil {
		return analytics.Filters{}, err
	}
	return analytics.Filters{StartDate: from, EndDate: to}, nil
}

// GetTurnover godoc
// @Summary      Rotación de stock por producto
// @Description  entries/exits por producto con movimientos en el rango; turnover = exits / max(entries,1).
// @Tags         reports
// @Security     Bearer
// @Produce      json
// @Param        start_date  query  string  false  "YYYY-MM-DD o RFC3339. Vacío = sin límite."
// @Param        end_date    query  string  false  "YYYY-MM-DD (inclusive) o RFC3339."
// @Success      200  {object}  dto.StockTurnoverReportDTO
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /api/reports/turnover [get]
func (h *ReportHandler) GetTurnover(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == 0 {
		return unauthorized(c)
	}
	f, err := h.filters(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	report, err := h.uc.GetStockTurnoverReport(c.Context(), tenantID, f)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(report)
}

// GetMostUsed godoc
// @Summary      Productos más consumidos
// @Description  Ranking por cantidad de salidas; total_value usa el precio vigente.
// @Tags         reports
// @Security     Bearer
// @Produce      json
// @Param        limit       query  int     false  "Máx. productos (default 10)."
// @Param        start_date  query  string  false  "YYYY-MM-DD o RFC3339."
// @Param        end_date    query  string  false  "YYYY-MM-DD (inclusive) o RFC3339."
// @Success      200  {object}  dto.MostUsedProductsReportDTO
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/reports/most-used [get]
func (h *ReportHandler) GetMostUsed(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == 0 {
		return unauthorized(c)
	}
	f, err := h.filters(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	report, err := h.uc.GetMostUsedProducts(c.Context(), tenantID, c.QueryInt("limit", 0), f)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(report)
}

// GetAlerts godoc
// @Summary      Alertas de mínimo y máximo
// @Tags         reports
// @Security     Bearer
// @Produce      json
// @Success      200  {array}  dto.StockAlertDTO
// @Router       /api/reports/alerts [get]
func (h *ReportHandler) GetAlerts(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == 0 {
		return unauthorized(c)
	}
	alerts, err := h.uc.GetStockAlerts(c.Context(), tenantID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(fiber.Map{
		"total":  len(alerts),
		"alerts": alerts,
	})
}

// Reconcile godoc
// @Summary      Conciliar un registro con su historial
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        product_id  path  int  true  "ID del producto"
// @Success      200  {object}  dto.ReconciliationDTO
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock/{product_id}/reconcile [get]
func (h *ReportHandler) Reconcile(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == 0 {
		return unauthorized(c)
	}
	productID, err := productIDParam(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	out, err := h.uc.ReconcileProduct(c.Context(), tenantID, productID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}
