package http

import (
	"sort"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// ProductHandler sincroniza la réplica local del catálogo (precio vigente para reportes).
type ProductHandler struct {
	repo repository.ProductRepository
	log  *logger.Logger
}

// NewProductHandler construye el handler.
func NewProductHandler(repo repository.ProductRepository, log *logger.Logger) *ProductHandler {
	return &ProductHandler{repo: repo, log: log}
}

// Sync godoc
// @Summary      Sincronizar producto del catálogo
// @Tags         catalog
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        product_id  path  int  true  "ID del producto"
// @Param        body  body  dto.SyncProductRequest  true  "sku, name, price"
// @Success      200   {object}  dto.ProductResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/catalog/products/{product_id} [put]
func (h *ProductHandler) Sync(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == 0 {
		return unauthorized(c)
	}
	productID, err := productIDParam(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	var in dto.SyncProductRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "INVALID_BODY", "cuerpo inválido")
	}
	if in.SKU == "" || in.Name == "" {
		return badRequest(c, "VALIDATION", "sku y name son requeridos")
	}
	if in.Price.IsNegative() {
		return badRequest(c, "VALIDATION", "price no puede ser negativo")
	}
	p := entity.Product{ID: productID, TenantID: tenantID, SKU: in.SKU, Name: in.Name, Price: in.Price}
	if err := h.repo.Upsert(c.Context(), &p); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.NewProductResponse(p))
}

// List godoc
// @Summary      Consultar productos de la réplica
// @Tags         catalog
// @Security     Bearer
// @Produce      json
// @Param        ids  query  string  true  "IDs separados por coma"
// @Success      200  {array}  dto.ProductResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/catalog/products [get]
func (h *ProductHandler) List(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == 0 {
		return unauthorized(c)
	}
	var ids []int64
	for _, raw := range strings.Split(c.Query("ids"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return badRequest(c, "VALIDATION", "ids debe ser una lista de enteros positivos")
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return badRequest(c, "VALIDATION", "ids es requerido")
	}
	found, err := h.repo.GetByIDs(c.Context(), tenantID, ids)
	if err != nil {
		return writeError(c, h.log, err)
	}
	out := make([]dto.ProductResponse, 0, len(found))
	for _, p := range found {
		out = append(out, dto.NewProductResponse(*p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return c.JSON(out)
}
