package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jhoicas/stock-ledger/internal/application/analytics"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/metrics"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/stock-ledger/internal/interfaces/http"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// storage puertos resueltos según STORAGE_DRIVER.
type storage struct {
	txRunner  inventory.TxRunner
	stockRepo repository.StockRecordRepository
	movRepo   repository.MovementRepository
	products  repository.ProductRepository
	ping      func(context.Context) error
	close     func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("storage", cfg.App.Storage).
		Bool("allow_negative_stock", cfg.Ledger.AllowNegativeStock).
		Dur("lock_timeout", cfg.Ledger.LockTimeout).
		Msg("iniciando aplicación")

	m := metrics.New("stock_ledger")

	ctx := context.Background()
	st, err := openStorage(ctx, cfg, log, m)
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar almacenamiento")
	}
	defer st.close()

	engine := inventory.NewEngine(st.txRunner, st.stockRepo, st.movRepo,
		inventory.Options{AllowNegativeStock: cfg.Ledger.AllowNegativeStock},
		inventory.WithLogger(log.Named("ledger")),
		inventory.WithObserver(m),
	)
	reports := analytics.NewReportUseCase(st.stockRepo, st.movRepo, st.products, log.Named("reports"))

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Stock Ledger API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := st.ping(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "service": cfg.App.Name})
		}
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	httpRouter.Router(app, httpRouter.RouterDeps{
		Engine:    engine,
		Reports:   reports,
		Products:  st.products,
		JWTSecret: cfg.JWT.Secret,
		Logger:    log.Named("http"),
		Requests:  m,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger, m *metrics.Metrics) (*storage, error) {
	if cfg.App.Storage == config.StorageMemory {
		log.Warn().Msg("almacenamiento en memoria: los datos se pierden al reiniciar")
		store := memory.NewStore(
			memory.WithLockTimeout(cfg.Ledger.LockTimeout),
			memory.WithLockWaitHook(m.ObserveLockWait),
		)
		return &storage{
			txRunner:  store,
			stockRepo: store,
			movRepo:   store,
			products:  store,
			ping:      func(context.Context) error { return nil },
			close:     func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	if cfg.DB.AutoMigrate {
		applied, err := postgres.Migrate(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		log.Info().Strs("migrations", applied).Msg("esquema actualizado")
	}
	return &storage{
		txRunner: postgres.NewTxRunner(pool,
			postgres.WithTimeouts(cfg.Ledger.LockTimeout, cfg.Ledger.StatementTimeout),
			postgres.WithLockWaitHook(m.ObserveLockWait),
		),
		stockRepo: postgres.NewStockRecordRepository(pool),
		movRepo:   postgres.NewMovementRepository(pool),
		products:  postgres.NewProductRepository(pool),
		ping:      pool.Ping,
		close:     pool.Close,
	}, nil
}
