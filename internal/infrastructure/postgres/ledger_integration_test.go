//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/ledger"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/stock-ledger/pkg/config"
)

const tenant int64 = 7

type LedgerIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *tcpostgres.PostgresContainer
	pool      *pgxpool.Pool
	engine    *inventory.Engine
	stockRepo *postgres.StockRecordRepo
	movRepo   *postgres.MovementRepo
	nextID    int64
}

func TestLedgerIntegration(t *testing.T) {
	suite.Run(t, new(LedgerIntegrationSuite))
}

func (s *LedgerIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := tcpostgres.Run(s.ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("stock_ledger"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	pool, err := postgres.NewPool(s.ctx, config.DBConfig{DatabaseURL: dsn, MaxConns: 10})
	s.Require().NoError(err)
	s.pool = pool

	_, err = postgres.Migrate(s.ctx, pool)
	s.Require().NoError(err)
	// idempotente
	_, err = postgres.Migrate(s.ctx, pool)
	s.Require().NoError(err)

	s.stockRepo = postgres.NewStockRecordRepository(pool)
	s.movRepo = postgres.NewMovementRepository(pool)
	tx := postgres.NewTxRunner(pool, postgres.WithTimeouts(2*time.Second, 10*time.Second))
	s.engine = inventory.NewEngine(tx, s.stockRepo, s.movRepo, inventory.Options{})
}

func (s *LedgerIntegrationSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(s.ctx))
	}
}

// open abre un registro nuevo por test para no compartir estado.
func (s *LedgerIntegrationSuite) open(initial int64) int64 {
	s.nextID++
	productID := 1000 + s.nextID
	_, err := s.engine.OpenRecord(s.ctx, inventory.OpenRecordInput{
		TenantID: tenant, ProductID: productID, InitialQuantity: initial, MinQuantity: 5, MaxQuantity: 500,
	})
	s.Require().NoError(err)
	return productID
}

func (s *LedgerIntegrationSuite) mv(productID, q int64, ref *entity.Reference) inventory.MovementInput {
	return inventory.MovementInput{TenantID: tenant, ProductID: productID, Quantity: q, Reason: "integración", Reference: ref, ActorID: "u-1"}
}

func (s *LedgerIntegrationSuite) TestOpenRecord_Duplicado() {
	productID := s.open(10)
	_, err := s.engine.OpenRecord(s.ctx, inventory.OpenRecordInput{TenantID: tenant, ProductID: productID, InitialQuantity: 1})
	s.ErrorIs(err, domain.ErrDuplicate)
}

func (s *LedgerIntegrationSuite) TestOperaciones_PersistenYEncadenan() {
	productID := s.open(100)

	_, err := s.engine.ConsumeProduct(s.ctx, s.mv(productID, 20, &entity.Reference{Type: "budget", ID: 1}))
	s.Require().NoError(err)
	_, err = s.engine.ReserveProduct(s.ctx, s.mv(productID, 30, &entity.Reference{Type: "order", ID: 9}))
	s.Require().NoError(err)
	_, err = s.engine.ReleaseReservation(s.ctx, s.mv(productID, 10, &entity.Reference{Type: "order", ID: 9}))
	s.Require().NoError(err)
	_, err = s.engine.ReturnProduct(s.ctx, s.mv(productID, 5, nil))
	s.Require().NoError(err)
	res, err := s.engine.AdjustStock(s.ctx, inventory.AdjustInput{TenantID: tenant, ProductID: productID, NewQuantity: 70, Reason: "conteo"})
	s.Require().NoError(err)
	s.Equal(int64(-15), res.Movement.Quantity)

	rec, err := s.stockRepo.Get(s.ctx, tenant, productID)
	s.Require().NoError(err)
	s.Equal(int64(70), rec.Quantity)
	s.Equal(int64(20), rec.ReservedQuantity)

	list, err := s.engine.ListMovements(s.ctx, tenant, productID, time.Time{}, time.Time{})
	s.Require().NoError(err)
	s.Len(list, 6)

	replay, err := ledger.Replay(s.movRepo.FindByProductAndDateRange(s.ctx, tenant, productID, time.Time{}, time.Time{}))
	s.Require().NoError(err)
	s.True(replay.Consistent())
	s.Equal(rec.Quantity, replay.Quantity)
	s.Equal(rec.ReservedQuantity, replay.ReservedQuantity)
}

func (s *LedgerIntegrationSuite) TestReferenciaDuplicada() {
	productID := s.open(50)
	ref := &entity.Reference{Type: "invoice", ID: 77}

	_, err := s.engine.ConsumeProduct(s.ctx, s.mv(productID, 5, ref))
	s.Require().NoError(err)
	_, err = s.engine.ConsumeProduct(s.ctx, s.mv(productID, 5, ref))
	s.ErrorIs(err, domain.ErrDuplicateMovement)

	rec, err := s.stockRepo.Get(s.ctx, tenant, productID)
	s.Require().NoError(err)
	s.Equal(int64(45), rec.Quantity)
}

func (s *LedgerIntegrationSuite) TestReferencia_AisladaPorEmpresa() {
	productID := s.open(50)
	const otherTenant = tenant + 1
	_, err := s.engine.OpenRecord(s.ctx, inventory.OpenRecordInput{TenantID: otherTenant, ProductID: productID, InitialQuantity: 50})
	s.Require().NoError(err)
	ref := &entity.Reference{Type: "budget", ID: 17}

	_, err = s.engine.ConsumeProduct(s.ctx, s.mv(productID, 10, ref))
	s.Require().NoError(err)
	in := s.mv(productID, 10, ref)
	in.TenantID = otherTenant
	_, err = s.engine.ConsumeProduct(s.ctx, in)
	s.Require().NoError(err)

	rec, err := s.stockRepo.Get(s.ctx, otherTenant, productID)
	s.Require().NoError(err)
	s.Equal(int64(40), rec.Quantity)
}

func (s *LedgerIntegrationSuite) TestConsumoConcurrente_NoSobrevende() {
	productID := s.open(10)

	var g errgroup.Group
	results := make([]error, 15)
	for i := range results {
		g.Go(func() error {
			_, results[i] = s.engine.ConsumeProduct(s.ctx, s.mv(productID, 1, &entity.Reference{Type: "ticket", ID: int64(i + 1)}))
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	var ok, rejected int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case domain.KindOf(err) == domain.KindInsufficientStock:
			rejected++
		default:
			s.Failf("error inesperado", "%v", err)
		}
	}
	s.Equal(10, ok)
	s.Equal(5, rejected)

	rec, err := s.stockRepo.Get(s.ctx, tenant, productID)
	s.Require().NoError(err)
	s.Zero(rec.Quantity)
}

func (s *LedgerIntegrationSuite) TestCatalogo_Upsert() {
	repo := postgres.NewProductRepository(s.pool)
	p := &entity.Product{ID: 1, TenantID: tenant, SKU: "A-1", Name: "Tornillo", Price: decimal.RequireFromString("10.50"), UpdatedAt: time.Now().UTC()}
	s.Require().NoError(repo.Upsert(s.ctx, p))

	p.Price = decimal.RequireFromString("12")
	s.Require().NoError(repo.Upsert(s.ctx, p))

	got, err := repo.GetByIDs(s.ctx, tenant, []int64{1, 2})
	s.Require().NoError(err)
	s.Len(got, 1)
	s.True(got[1].Price.Equal(decimal.NewFromInt(12)))
}
