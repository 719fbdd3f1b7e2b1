package http

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// StockHandler maneja las operaciones del libro de stock (protegido).
type StockHandler struct {
	engine *inventory.Engine
	log    *logger.Logger
}

// NewStockHandler construye el handler.
func NewStockHandler(engine *inventory.Engine, log *logger.Logger) *StockHandler {
	return &StockHandler{engine: engine, log: log}
}

// OpenRecord godoc
// @Summary      Abrir registro de stock de un producto
// @Tags         stock
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.OpenStockRecordRequest  true  "product_id, initial_quantity, min_quantity, max_quantity"
// @Success      201   {object}  dto.StockRecordDTO
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/stock/records [post]
func (h *StockHandler) OpenRecord(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == 0 {
		return unauthorized(c)
	}
	var in dto.OpenStockRecordRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "INVALID_BODY", "cuerpo inválido")
	}
	res, err := h.engine.OpenRecord(c.Context(), inventory.OpenRecordInput{
		TenantID:        tenantID,
		ProductID:       in.ProductID,
		InitialQuantity: in.InitialQuantity,
		MinQuantity:     in.MinQuantity,
		MaxQuantity:     in.MaxQuantity,
		ActorID:         GetUserID(c),
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewStockRecordDTO(res.Record))
}

// GetRecord godoc
// @Summary      Consultar stock de un producto
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        product_id  path  int  true  "ID del producto"
// @Success      200  {object}  dto.StockRecordDTO
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock/records/{product_id} [get]
func (h *StockHandler) GetRecord(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == 0 {
		return unauthorized(c)
	}
	productID, err := productIDParam(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	rec, err := h.engine.GetRecord(c.Context(), tenantID, productID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.NewStockRecordDTO(*rec))
}

type movementOp func(context.Context, inventory.MovementInput) (inventory.Result, error)

// movement arma el handler común de consume/add/reserve/release/return.
func (h *StockHandler) movement(op movementOp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tenantID := GetTenantID(c)
		if tenantID == 0 {
			return unauthorized(c)
		}
		productID, err := productIDParam(c)
		if err != nil {
			return writeError(c, h.log, err)
		}
		var in dto.StockMovementRequest
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "INVALID_BODY", "cuerpo inválido")
		}
		ref, err := referenceOf(in)
		if err != nil {
			return writeError(c, h.log, err)
		}
		res, err := op(c.Context(), inventory.MovementInput{
			TenantID:  tenantID,
			ProductID: productID,
			Quantity:  in.Quantity,
			Reason:    in.Reason,
			Reference: ref,
			ActorID:   GetUserID(c),
		})
		if err != nil {
			return writeError(c, h.log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(dto.StockOperationResponse{
			Record:   dto.NewStockRecordDTO(res.Record),
			Movement: dto.NewMovementDTO(res.Movement),
		})
	}
}

func referenceOf(in dto.StockMovementRequest) (*entity.Reference, error) {
	switch {
	case in.ReferenceType == "" && in.ReferenceID == nil:
		return nil, nil
	case in.ReferenceType == "" || in.ReferenceID == nil:
		return nil, fmt.Errorf("%w: reference_type y reference_id van juntos", domain.ErrInvalidArgument)
	}
	return &entity.Reference{Type: in.ReferenceType, ID: *in.ReferenceID}, nil
}

// Consume godoc
// @Summary      Consumir stock (salida)
// @Tags         stock
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        product_id  path  int  true  "ID del producto"
// @Param        body  body  dto.StockMovementRequest  true  "quantity, reason, reference_type, reference_id"
// @Success      201   {object}  dto.StockOperationResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/stock/{product_id}/consume [post]
func (h *StockHandler) Consume(c *fiber.Ctx) error { return h.movement(h.engine.ConsumeProduct)(c) }

// Add godoc
// @Summary      Ingresar stock (entrada)
// @Tags         stock
// @Security     Bearer
// @Router       /api/stock/{product_id}/add [post]
func (h *StockHandler) Add(c *fiber.Ctx) error { return h.movement(h.engine.AddProduct)(c) }

// Reserve godoc
// @Summary      Reservar stock disponible
// @Tags         stock
// @Security     Bearer
// @Router       /api/stock/{product_id}/reserve [post]
func (h *StockHandler) Reserve(c *fiber.Ctx) error { return h.movement(h.engine.ReserveProduct)(c) }

// Release godoc
// @Summary      Liberar una reserva
// @Tags         stock
// @Security     Bearer
// @Router       /api/stock/{product_id}/release [post]
func (h *StockHandler) Release(c *fiber.Ctx) error {
	return h.movement(h.engine.ReleaseReservation)(c)
}

// Return godoc
// @Summary      Devolver stock consumido
// @Tags         stock
// @Security     Bearer
// @Router       /api/stock/{product_id}/return [post]
func (h *StockHandler) Return(c *fiber.Ctx) error { return h.movement(h.engine.ReturnProduct)(c) }

// Adjust godoc
// @Summary      Ajustar stock por conteo físico
// @Description  Fija quantity en new_quantity; el movimiento guarda el delta con signo.
// @Tags         stock
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        product_id  path  int  true  "ID del producto"
// @Param        body  body  dto.AdjustStockRequest  true  "new_quantity, reason"
// @Success      201   {object}  dto.StockOperationResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/stock/{product_id}/adjust [post]
func (h *StockHandler) Adjust(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == 0 {
		return unauthorized(c)
	}
	productID, err := productIDParam(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	var in dto.AdjustStockRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "INVALID_BODY", "cuerpo inválido")
	}
	res, err := h.engine.AdjustStock(c.Context(), inventory.AdjustInput{
		TenantID:    tenantID,
		ProductID:   productID,
		NewQuantity: in.NewQuantity,
		Reason:      in.Reason,
		ActorID:     GetUserID(c),
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.StockOperationResponse{
		Record:   dto.NewStockRecordDTO(res.Record),
		Movement: dto.NewMovementDTO(res.Movement),
	})
}

// ListMovements godoc
// @Summary      Historial de movimientos de un producto
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        product_id  path   int     true   "ID del producto"
// @Param        start_date  query  string  false  "YYYY-MM-DD o RFC3339"
// @Param        end_date    query  string  false  "YYYY-MM-DD (inclusive) o RFC3339"
// @Success      200  {object}  dto.MovementListResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock/{product_id}/movements [get]
func (h *StockHandler) ListMovements(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == 0 {
		return unauthorized(c)
	}
	productID, err := productIDParam(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	from, to, err := dateRange(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	list, err := h.engine.ListMovements(c.Context(), tenantID, productID, from, to)
	if err != nil {
		return writeError(c, h.log, err)
	}
	out := dto.MovementListResponse{ProductID: productID, Items: make([]dto.MovementDTO, 0, len(list))}
	for _, m := range list {
		out.Items = append(out.Items, dto.NewMovementDTO(m))
	}
	return c.JSON(out)
}
