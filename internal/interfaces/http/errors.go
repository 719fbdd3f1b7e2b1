package http

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

var statusByKind = map[domain.ErrorKind]int{
	domain.KindInvalidArgument:         fiber.StatusBadRequest,
	domain.KindNotFound:                fiber.StatusNotFound,
	domain.KindDuplicate:               fiber.StatusConflict,
	domain.KindUnauthorized:            fiber.StatusUnauthorized,
	domain.KindInsufficientStock:       fiber.StatusConflict,
	domain.KindDuplicateMovement:       fiber.StatusConflict,
	domain.KindInvalidReservationState: fiber.StatusConflict,
	domain.KindConcurrencyConflict:     fiber.StatusConflict,
	domain.KindLockTimeout:             fiber.StatusServiceUnavailable,
}

// StatusFor devuelve el código HTTP de un error de dominio (500 para infraestructura).
func StatusFor(err error) int {
	if s, ok := statusByKind[domain.KindOf(err)]; ok {
		return s
	}
	return fiber.StatusInternalServerError
}

// writeError responde con dto.ErrorResponse. Las fallas de infraestructura se registran
// y no exponen el detalle al cliente.
func writeError(c *fiber.Ctx, log *logger.Logger, err error) error {
	kind := domain.KindOf(err)
	status := StatusFor(err)
	if kind == domain.KindInternal {
		log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("error interno")
		return c.Status(status).JSON(dto.ErrorResponse{Code: string(kind), Message: "error interno"})
	}
	if kind == domain.KindLockTimeout {
		c.Set(fiber.HeaderRetryAfter, "1")
	}
	return c.Status(status).JSON(dto.ErrorResponse{Code: string(kind), Message: err.Error()})
}

func badRequest(c *fiber.Ctx, code, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: code, Message: msg})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
}

// productIDParam lee :product_id como entero positivo.
func productIDParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("product_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: product_id debe ser un entero positivo", domain.ErrInvalidArgument)
	}
	return id, nil
}

const dateLayout = "2006-01-02"

var errInvalidDate = errors.New("fecha inválida")

// parseDate acepta YYYY-MM-DD o RFC3339. Con endOfDay una fecha sin hora cubre el día completo.
func parseDate(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		if endOfDay {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w %q (use YYYY-MM-DD o RFC3339)", domain.ErrInvalidArgument, errInvalidDate, s)
	}
	return t, nil
}

// dateRange lee start_date y end_date del query string.
func dateRange(c *fiber.Ctx) (from, to time.Time, err error) {
	if from, err = parseDate(c.Query("start_date"), false); err != nil {
		return
	}
	to, err = parseDate(c.Query("end_date"), true)
	return
}
