package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/stock-ledger/internal/application/analytics"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// RequestObserver recibe cada petición atendida (métricas).
type RequestObserver interface {
	ObserveRequest(method, route string, status int)
}

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Engine    *inventory.Engine
	Reports   *analytics.ReportUseCase
	Products  repository.ProductRepository
	JWTSecret string
	Logger    *logger.Logger
	Requests  RequestObserver // opcional
}

// Router registra las rutas de la API. Todo /api requiere Bearer Token; el tenant sale del claim company_id.
//
// Permisos:
//   - lectura (registros, historial, reportes): todos los roles
//   - consumo, reserva, liberación y devolución: admin, bodeguero, vendedor
//   - entradas, apertura de registros y catálogo: admin, bodeguero
//   - ajuste por conteo físico: admin
func Router(app *fiber.App, deps RouterDeps) {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	if deps.Requests != nil {
		app.Use(requestMetrics(deps.Requests))
	}

	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	everyone := RequireRole(RoleAdmin, RoleBodeguero, RoleVendedor)
	warehouse := RequireRole(RoleAdmin, RoleBodeguero)
	adminOnly := RequireRole(RoleAdmin)

	// Stock (libro)
	stockHandler := NewStockHandler(deps.Engine, log)
	reportHandler := NewReportHandler(deps.Reports, log)
	stock := api.Group("/stock")
	stock.Post("/records", warehouse, stockHandler.OpenRecord)
	stock.Get("/records/:product_id", everyone, stockHandler.GetRecord)
	stock.Post("/:product_id/consume", everyone, stockHandler.Consume)
	stock.Post("/:product_id/add", warehouse, stockHandler.Add)
	stock.Post("/:product_id/adjust", adminOnly, stockHandler.Adjust)
	stock.Post("/:product_id/reserve", everyone, stockHandler.Reserve)
	stock.Post("/:product_id/release", everyone, stockHandler.Release)
	stock.Post("/:product_id/return", everyone, stockHandler.Return)
	stock.Get("/:product_id/movements", everyone, stockHandler.ListMovements)
	stock.Get("/:product_id/reconcile", warehouse, reportHandler.Reconcile)

	// Reportes
	reports := api.Group("/reports", everyone)
	reports.Get("/turnover", reportHandler.GetTurnover)
	reports.Get("/most-used", reportHandler.GetMostUsed)
	reports.Get("/alerts", reportHandler.GetAlerts)

	// Réplica del catálogo
	productHandler := NewProductHandler(deps.Products, log)
	catalog := api.Group("/catalog/products")
	catalog.Get("/", everyone, productHandler.List)
	catalog.Put("/:product_id", warehouse, productHandler.Sync)
}

// requestMetrics cuenta cada petición por ruta registrada (no por path crudo, para acotar cardinalidad).
func requestMetrics(obs RequestObserver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		route := c.Route().Path
		obs.ObserveRequest(c.Method(), route, status)
		return err
	}
}
