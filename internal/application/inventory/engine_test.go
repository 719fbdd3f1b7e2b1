package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/ledger"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
)

const (
	tenantID  int64 = 1
	productID int64 = 42
)

func newEngine(t *testing.T, opts inventory.Options, storeOpts ...memory.Option) (*inventory.Engine, *memory.Store) {
	t.Helper()
	store := memory.NewStore(storeOpts...)
	return inventory.NewEngine(store, store, store, opts), store
}

// seed abre el registro con quantity=100, min=10, max=200.
func seed(t *testing.T, e *inventory.Engine) {
	t.Helper()
	_, err := e.OpenRecord(context.Background(), inventory.OpenRecordInput{
		TenantID: tenantID, ProductID: productID, InitialQuantity: 100, MinQuantity: 10, MaxQuantity: 200,
	})
	require.NoError(t, err)
}

func in(q int64, ref *entity.Reference) inventory.MovementInput {
	return inventory.MovementInput{TenantID: tenantID, ProductID: productID, Quantity: q, Reason: "test", Reference: ref, ActorID: "u-1"}
}

func ref(refType string, id int64) *entity.Reference {
	return &entity.Reference{Type: refType, ID: id}
}

func record(t *testing.T, store *memory.Store) *entity.StockRecord {
	t.Helper()
	rec, err := store.Get(context.Background(), tenantID, productID)
	require.NoError(t, err)
	return rec
}

func movements(t *testing.T, e *inventory.Engine) []entity.Movement {
	t.Helper()
	list, err := e.ListMovements(context.Background(), tenantID, productID, time.Time{}, time.Time{})
	require.NoError(t, err)
	return list
}

// movimientos sin el saldo inicial
func booked(t *testing.T, e *inventory.Engine) []entity.Movement {
	return movements(t, e)[1:]
}

func TestConsumeProduct_DescuentaYRegistraSalida(t *testing.T) {
	e, store := newEngine(t, inventory.Options{})
	seed(t, e)

	res, err := e.ConsumeProduct(context.Background(), inventory.MovementInput{
		TenantID: tenantID, ProductID: productID, Quantity: 20, Reason: "Test consumption", Reference: ref("budget", 1),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(80), res.Record.Quantity)
	assert.Equal(t, int64(80), record(t, store).Quantity)

	list := booked(t, e)
	require.Len(t, list, 1)
	m := list[0]
	assert.Equal(t, entity.MovementTypeExit, m.Type)
	assert.Equal(t, int64(20), m.Quantity)
	assert.Equal(t, int64(100), m.PreviousQuantity)
	assert.Equal(t, int64(80), m.CurrentQuantity)
	assert.Equal(t, "Test consumption", m.Reason)
	require.NotNil(t, m.Reference)
	assert.Equal(t, "budget", m.Reference.Type)
	assert.NotEmpty(t, m.TransactionID)
	assert.Equal(t, res.Movement.ID, m.ID)
}

func TestConsumeProduct_StockInsuficiente(t *testing.T) {
	e, store := newEngine(t, inventory.Options{})
	seed(t, e)

	_, err := e.ConsumeProduct(context.Background(), in(150, ref("budget", 1)))
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, domain.KindInsufficientStock, domain.KindOf(err))
	assert.Equal(t, int64(100), record(t, store).Quantity)
	assert.Empty(t, booked(t, e))
}

func TestConsumeProduct_PermiteNegativoConfigurado(t *testing.T) {
	e, store := newEngine(t, inventory.Options{AllowNegativeStock: true})
	seed(t, e)

	_, err := e.ConsumeProduct(context.Background(), in(150, nil))
	require.NoError(t, err)
	assert.Equal(t, int64(-50), record(t, store).Quantity)
}

func TestAddProduct_Entrada(t *testing.T) {
	e, store := newEngine(t, inventory.Options{})
	seed(t, e)

	_, err := e.AddProduct(context.Background(), in(50, ref("purchase", 1)))
	require.NoError(t, err)
	assert.Equal(t, int64(150), record(t, store).Quantity)

	list := booked(t, e)
	require.Len(t, list, 1)
	assert.Equal(t, entity.MovementTypeEntry, list[0].Type)
	assert.Equal(t, int64(50), list[0].Quantity)
}

func TestAddProduct_SuperarMaximoNoFalla(t *testing.T) {
	e, store := newEngine(t, inventory.Options{})
	seed(t, e)

	_, err := e.AddProduct(context.Background(), in(500, nil))
	require.NoError(t, err)
	assert.Equal(t, int64(600), record(t, store).Quantity)
}

func TestAdjustStock_GuardaDeltaConSigno(t *testing.T) {
	e, store := newEngine(t, inventory.Options{})
	seed(t, e)

	_, err := e.AdjustStock(context.Background(), inventory.AdjustInput{
		TenantID: tenantID, ProductID: productID, NewQuantity: 75, Reason: "conteo físico",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(75), record(t, store).Quantity)

	list := booked(t, e)
	require.Len(t, list, 1)
	assert.Equal(t, entity.MovementTypeAdjustment, list[0].Type)
	assert.Equal(t, int64(-25), list[0].Quantity)
	assert.Equal(t, int64(100), list[0].PreviousQuantity)
	assert.Equal(t, int64(75), list[0].CurrentQuantity)
}

func TestAdjustStock_SinReferenciaSiempreRegistra(t *testing.T) {
	e, _ := newEngine(t, inventory.Options{})
	seed(t, e)

	for i := 0; i < 2; i++ {
		_, err := e.AdjustStock(context.Background(), inventory.AdjustInput{TenantID: tenantID, ProductID: productID, NewQuantity: 90})
		require.NoError(t, err)
	}
	list := booked(t, e)
	require.Len(t, list, 2)
	assert.Equal(t, int64(-10), list[0].Quantity)
	assert.Equal(t, int64(0), list[1].Quantity)
}

func TestAdjustStock_NegativoRechazado(t *testing.T) {
	e, _ := newEngine(t, inventory.Options{})
	seed(t, e)

	_, err := e.AdjustStock(context.Background(), inventory.AdjustInput{TenantID: tenantID, ProductID: productID, NewQuantity: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestReservaYLiberacion_Simetria(t *testing.T) {
	e, store := newEngine(t, inventory.Options{})
	seed(t, e)
	ctx := context.Background()

	res, err := e.ReserveProduct(ctx, in(30, ref("budget", 1)))
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.Record.Quantity)
	assert.Equal(t, int64(70), res.Record.AvailableQuantity())

	res, err = e.ReleaseReservation(ctx, in(30, ref("budget", 1)))
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.Record.Quantity)
	assert.Equal(t, int64(100), res.Record.AvailableQuantity())

	rec := record(t, store)
	assert.Equal(t, int64(0), rec.ReservedQuantity)

	list := booked(t, e)
	require.Len(t, list, 2)
	assert.Equal(t, entity.MovementTypeReservation, list[0].Type)
	assert.Equal(t, int64(30), list[0].Quantity)
	assert.Equal(t, int64(100), list[0].PreviousQuantity)
	assert.Equal(t, int64(70), list[0].CurrentQuantity)
	assert.Equal(t, entity.MovementTypeRelease, list[1].Type)
	assert.Equal(t, int64(-30), list[1].Quantity)
	assert.Equal(t, int64(70), list[1].PreviousQuantity)
	assert.Equal(t, int64(100), list[1].CurrentQuantity)
}

func TestReserveProduct_DisponibleInsuficiente(t *testing.T) {
	e, store := newEngine(t, inventory.Options{})
	seed(t, e)
	ctx := context.Background()

	_, err := e.ReserveProduct(ctx, in(80, nil))
	require.NoError(t, err)
	_, err = e.ReserveProduct(ctx, in(21, nil))
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, int64(80), record(t, store).ReservedQuantity)
}

func TestReleaseReservation_NoBajaDeCero(t *testing.T) {
	e, store := newEngine(t, inventory.Options{})
	seed(t, e)
	ctx := context.Background()

	_, err := e.ReserveProduct(ctx, in(10, nil))
	require.NoError(t, err)
	_, err = e.ReleaseReservation(ctx, in(11, nil))
	require.ErrorIs(t, err, domain.ErrInvalidReservationState)
	assert.Equal(t, int64(10), record(t, store).ReservedQuantity)
}

func TestConsumoYDevolucion_Simetria(t *testing.T) {
	e, store := newEngine(t, inventory.Options{})
	seed(t, e)
	ctx := context.Background()

	_, err := e.ConsumeProduct(ctx, in(35, ref("service", 9)))
	require.NoError(t, err)
	_, err = e.ReturnProduct(ctx, in(35, ref("service", 9)))
	require.NoError(t, err)

	assert.Equal(t, int64(100), record(t, store).Quantity)
	list := booked(t, e)
	require.Len(t, list, 2)
	assert.Equal(t, entity.MovementTypeReturn, list[1].Type)
	assert.Equal(t, int64(35), list[1].Quantity)
}

func TestIdempotencia_SegundaLlamadaEsDuplicada(t *testing.T) {
	e, store := newEngine(t, inventory.Options{})
	seed(t, e)
	ctx := context.Background()

	_, err := e.ConsumeProduct(ctx, in(10, ref("budget", 1)))
	require.NoError(t, err)
	_, err = e.ConsumeProduct(ctx, in(10, ref("budget", 1)))
	require.ErrorIs(t, err, domain.ErrDuplicateMovement)
	assert.False(t, domain.IsRetryable(err))

	assert.Equal(t, int64(90), record(t, store).Quantity)
	assert.Len(t, booked(t, e), 1)
}

func TestIdempotencia_DuplicadoGanaSobreReglas(t *testing.T) {
	e, store := newEngine(t, inventory.Options{})
	seed(t, e)
	ctx := context.Background()

	_, err := e.ReserveProduct(ctx, in(10, ref("budget", 3)))
	require.NoError(t, err)
	_, err = e.ReleaseReservation(ctx, in(10, ref("budget", 3)))
	require.NoError(t, err)

	// Ya no hay reservado: sin idempotencia sería InvalidReservationState.
	_, err = e.ReleaseReservation(ctx, in(10, ref("budget", 3)))
	require.ErrorIs(t, err, domain.ErrDuplicateMovement)
	assert.Equal(t, int64(0), record(t, store).ReservedQuantity)
}

func TestIdempotencia_LlaveIncluyeProductoYTipo(t *testing.T) {
	e, store := newEngine(t, inventory.Options{})
	seed(t, e)
	ctx := context.Background()
	_, err := e.OpenRecord(ctx, inventory.OpenRecordInput{TenantID: tenantID, ProductID: productID + 1, InitialQuantity: 10})
	require.NoError(t, err)

	_, err = e.ConsumeProduct(ctx, in(1, ref("budget", 5)))
	require.NoError(t, err)
	_, err = e.AddProduct(ctx, in(1, ref("budget", 5)))
	require.NoError(t, err, "otro tipo de movimiento con la misma referencia")
	other := in(1, ref("budget", 5))
	other.ProductID = productID + 1
	_, err = e.ConsumeProduct(ctx, other)
	require.NoError(t, err, "otro producto con la misma referencia")

	assert.Equal(t, int64(100), record(t, store).Quantity)
}

func TestIdempotencia_LlaveAisladaPorEmpresa(t *testing.T) {
	e, store := newEngine(t, inventory.Options{})
	ctx := context.Background()
	const otherTenant = tenantID + 1
	for _, tid := range []int64{tenantID, otherTenant} {
		_, err := e.OpenRecord(ctx, inventory.OpenRecordInput{TenantID: tid, ProductID: productID, InitialQuantity: 50})
		require.NoError(t, err)
	}

	_, err := e.ConsumeProduct(ctx, in(10, ref("budget", 17)))
	require.NoError(t, err)

	mine := in(10, ref("budget", 17))
	mine.TenantID = otherTenant
	_, err = e.ConsumeProduct(ctx, mine)
	require.NoError(t, err, "la misma referencia en otra empresa no es duplicada")

	// dentro de cada empresa la referencia sigue siendo única
	_, err = e.ConsumeProduct(ctx, mine)
	assert.ErrorIs(t, err, domain.ErrDuplicateMovement)

	rec, err := store.Get(ctx, otherTenant, productID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), rec.Quantity)
	assert.Equal(t, int64(40), record(t, store).Quantity)
}

func TestValidaciones(t *testing.T) {
	e, _ := newEngine(t, inventory.Options{})
	seed(t, e)
	ctx := context.Background()

	cases := []struct {
		name  string
		input inventory.MovementInput
	}{
		{"cantidad cero", in(0, nil)},
		{"cantidad negativa", in(-5, nil)},
		{"sin tenant", inventory.MovementInput{ProductID: productID, Quantity: 1}},
		{"sin producto", inventory.MovementInput{TenantID: tenantID, Quantity: 1}},
		{"referencia sin tipo", in(1, &entity.Reference{ID: 3})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.ConsumeProduct(ctx, tc.input)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		})
	}
}

func TestOperaciones_ProductoSinRegistro(t *testing.T) {
	e, _ := newEngine(t, inventory.Options{})
	ctx := context.Background()

	_, err := e.ConsumeProduct(ctx, in(1, nil))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.AdjustStock(ctx, inventory.AdjustInput{TenantID: tenantID, ProductID: productID, NewQuantity: 3})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.GetRecord(ctx, tenantID, productID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.ListMovements(ctx, tenantID, productID, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOpenRecord(t *testing.T) {
	e, store := newEngine(t, inventory.Options{})
	ctx := context.Background()

	res, err := e.OpenRecord(ctx, inventory.OpenRecordInput{TenantID: tenantID, ProductID: productID, MinQuantity: 5, MaxQuantity: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Record.Quantity)
	assert.Empty(t, movements(t, e), "sin saldo inicial no hay movimiento")

	_, err = e.OpenRecord(ctx, inventory.OpenRecordInput{TenantID: tenantID, ProductID: productID})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	_, err = e.OpenRecord(ctx, inventory.OpenRecordInput{TenantID: tenantID, ProductID: 7, MinQuantity: 10, MaxQuantity: 5})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = e.OpenRecord(ctx, inventory.OpenRecordInput{TenantID: tenantID, ProductID: 8, InitialQuantity: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	rec := record(t, store)
	assert.Equal(t, int64(5), rec.MinQuantity)
	assert.Equal(t, int64(50), rec.MaxQuantity)
}

func TestOpenRecord_SaldoInicialComoEntrada(t *testing.T) {
	e, _ := newEngine(t, inventory.Options{})
	seed(t, e)

	list := movements(t, e)
	require.Len(t, list, 1)
	assert.Equal(t, entity.MovementTypeEntry, list[0].Type)
	assert.Equal(t, int64(100), list[0].Quantity)
	assert.Equal(t, int64(0), list[0].PreviousQuantity)
	assert.Equal(t, int64(100), list[0].CurrentQuantity)
}

func TestListMovements_RangoInvertido(t *testing.T) {
	e, _ := newEngine(t, inventory.Options{})
	seed(t, e)
	now := time.Now()
	_, err := e.ListMovements(context.Background(), tenantID, productID, now, now.Add(-time.Hour))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

// Conservación y no negatividad sobre una secuencia mixta, con rechazos intercalados.
func TestPropiedades_ConservacionYNoNegatividad(t *testing.T) {
	e, store := newEngine(t, inventory.Options{})
	seed(t, e)
	ctx := context.Background()

	steps := []func() error{
		func() error { _, err := e.ConsumeProduct(ctx, in(40, nil)); return err },
		func() error { _, err := e.ReserveProduct(ctx, in(50, nil)); return err },
		func() error { _, err := e.ConsumeProduct(ctx, in(70, nil)); return err }, // rechazado
		func() error { _, err := e.AddProduct(ctx, in(25, nil)); return err },
		func() error { _, err := e.ReleaseReservation(ctx, in(20, nil)); return err },
		func() error { _, err := e.ReserveProduct(ctx, in(60, nil)); return err }, // rechazado
		func() error { _, err := e.ReturnProduct(ctx, in(5, nil)); return err },
		func() error {
			_, err := e.AdjustStock(ctx, inventory.AdjustInput{TenantID: tenantID, ProductID: productID, NewQuantity: 33})
			return err
		},
		func() error { _, err := e.ConsumeProduct(ctx, in(33, nil)); return err },
	}
	for _, step := range steps {
		err := step()
		if err != nil {
			require.True(t, domain.IsBusiness(err), err)
		}
		rec := record(t, store)
		assert.GreaterOrEqual(t, rec.Quantity, int64(0))
		assert.GreaterOrEqual(t, rec.AvailableQuantity(), int64(0))
		assert.GreaterOrEqual(t, rec.ReservedQuantity, int64(0))
	}

	rec := record(t, store)
	res, err := ledger.Replay(store.FindByProductAndDateRange(ctx, tenantID, productID, time.Time{}, time.Time{}))
	require.NoError(t, err)
	assert.True(t, res.Consistent(), res.Breaks)
	assert.Equal(t, rec.Quantity, res.Quantity)
	assert.Equal(t, rec.ReservedQuantity, res.ReservedQuantity)
	assert.Equal(t, rec.Quantity, res.Entries+res.Returns-res.Exits+res.Adjustments)
}

func TestConcurrencia_NoSobrevende(t *testing.T) {
	e, store := newEngine(t, inventory.Options{})
	seed(t, e)
	ctx := context.Background()

	var mu sync.Mutex
	ok, rejected := 0, 0
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 30; i++ {
		g.Go(func() error {
			_, err := e.ConsumeProduct(gctx, in(7, nil))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrInsufficientStock):
				rejected++
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 14, ok) // 14*7 = 98
	assert.Equal(t, 16, rejected)
	assert.Equal(t, int64(2), record(t, store).Quantity)

	res, err := ledger.Replay(store.FindByProductAndDateRange(ctx, tenantID, productID, time.Time{}, time.Time{}))
	require.NoError(t, err)
	assert.True(t, res.Consistent(), "la cadena previous/current sigue el orden de confirmación")
}

func TestConcurrencia_MismaReferenciaUnSoloMovimiento(t *testing.T) {
	e, store := newEngine(t, inventory.Options{})
	seed(t, e)

	var g errgroup.Group
	var mu sync.Mutex
	dup := 0
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			_, err := e.ConsumeProduct(context.Background(), in(10, ref("budget", 77)))
			if errors.Is(err, domain.ErrDuplicateMovement) {
				mu.Lock()
				dup++
				mu.Unlock()
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 9, dup)
	assert.Equal(t, int64(90), record(t, store).Quantity)
}

func TestLockTimeout_SinCambios(t *testing.T) {
	e, store := newEngine(t, inventory.Options{}, memory.WithLockTimeout(30*time.Millisecond))
	seed(t, e)

	locked := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = store.Run(context.Background(), func(stockRepo repository.StockRecordRepository, _ repository.MovementRepository) error {
			_, err := stockRepo.GetForUpdate(context.Background(), tenantID, productID)
			close(locked)
			<-done
			return err
		})
	}()
	<-locked

	_, err := e.ConsumeProduct(context.Background(), in(10, nil))
	close(done)
	require.ErrorIs(t, err, domain.ErrLockTimeout)
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, int64(100), record(t, store).Quantity)
}

// failingAppend envuelve el store y hace fallar Append dentro de la transacción.
type failingAppend struct {
	*memory.Store
}

type brokenMovements struct {
	repository.MovementRepository
}

func (brokenMovements) Append(context.Context, *entity.Movement) error {
	return errors.New("disco lleno")
}

func (f failingAppend) Run(ctx context.Context, fn func(repository.StockRecordRepository, repository.MovementRepository) error) error {
	return f.Store.Run(ctx, func(s repository.StockRecordRepository, m repository.MovementRepository) error {
		return fn(s, brokenMovements{m})
	})
}

func TestAtomicidad_FallaDeInfraestructuraHaceRollback(t *testing.T) {
	store := memory.NewStore()
	seeded := inventory.NewEngine(store, store, store, inventory.Options{})
	seed(t, seeded)

	e := inventory.NewEngine(failingAppend{store}, store, store, inventory.Options{})
	_, err := e.ConsumeProduct(context.Background(), in(10, nil))
	require.Error(t, err)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
	assert.Equal(t, int64(100), record(t, store).Quantity)
	assert.Len(t, movements(t, seeded), 1)
}

type recordingObserver struct {
	mu    sync.Mutex
	kinds map[string][]domain.ErrorKind
}

func (r *recordingObserver) ObserveOperation(op string, kind domain.ErrorKind, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[op] = append(r.kinds[op], kind)
}

func TestObserver_RecibeResultado(t *testing.T) {
	store := memory.NewStore()
	obs := &recordingObserver{kinds: map[string][]domain.ErrorKind{}}
	e := inventory.NewEngine(store, store, store, inventory.Options{}, inventory.WithObserver(obs))
	seed(t, e)

	_, _ = e.ConsumeProduct(context.Background(), in(5, nil))
	_, _ = e.ConsumeProduct(context.Background(), in(500, nil))

	assert.Equal(t, []domain.ErrorKind{domain.KindNone}, obs.kinds[inventory.OpOpenRecord])
	assert.Equal(t, []domain.ErrorKind{domain.KindNone, domain.KindInsufficientStock}, obs.kinds[inventory.OpConsume])
}
