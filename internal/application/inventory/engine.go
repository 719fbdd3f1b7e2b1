package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/ledger"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// Nombres de operación (logs y métricas).
const (
	OpOpenRecord = "open_record"
	OpConsume    = "consume"
	OpAdd        = "add"
	OpAdjust     = "adjust"
	OpReserve    = "reserve"
	OpRelease    = "release"
	OpReturn     = "return"
)

// initialBalanceReason motivo del movimiento de entrada que crea el saldo inicial.
const initialBalanceReason = "saldo inicial"

// Options configuración fija del motor.
type Options struct {
	AllowNegativeStock bool
}

// Engine motor del libro de stock: cada operación corre en una transacción que bloquea
// la fila (tenant, producto), valida, agrega exactamente un movimiento y guarda el registro.
// Operaciones sobre el mismo producto quedan serializadas; productos distintos corren en paralelo.
type Engine struct {
	txRunner  TxRunner
	stockRepo repository.StockRecordRepository
	movRepo   repository.MovementRepository
	rules     ledger.Rules
	log       *logger.Logger
	observer  Observer
	now       func() time.Time
}

// EngineOption personaliza dependencias opcionales del motor.
type EngineOption func(*Engine)

// WithLogger usa l para los logs del motor.
func WithLogger(l *logger.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// WithObserver registra un observador de operaciones (métricas).
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) { e.observer = o }
}

// WithClock fija el reloj usado para CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine construye el motor. stockRepo y movRepo se usan para lecturas fuera de transacción.
func NewEngine(
	txRunner TxRunner,
	stockRepo repository.StockRecordRepository,
	movRepo repository.MovementRepository,
	opts Options,
	options ...EngineOption,
) *Engine {
	e := &Engine{
		txRunner:  txRunner,
		stockRepo: stockRepo,
		movRepo:   movRepo,
		rules:     ledger.Rules{AllowNegativeStock: opts.AllowNegativeStock},
		log:       logger.Nop(),
		observer:  nopObserver{},
		now:       time.Now,
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// MovementInput entrada común de consume/add/reserve/release/return.
type MovementInput struct {
	TenantID  int64
	ProductID int64
	Quantity  int64
	Reason    string
	Reference *entity.Reference // opcional; si viene es la llave de idempotencia
	ActorID   string
}

// AdjustInput entrada de AdjustStock (conteo físico: fija el valor absoluto).
type AdjustInput struct {
	TenantID    int64
	ProductID   int64
	NewQuantity int64
	Reason      string
	ActorID     string
}

// OpenRecordInput entrada para crear el registro de stock de un producto.
type OpenRecordInput struct {
	TenantID        int64
	ProductID       int64
	InitialQuantity int64
	MinQuantity     int64
	MaxQuantity     int64
	ActorID         string
}

// Result estado confirmado tras una operación exitosa.
type Result struct {
	Record   entity.StockRecord
	Movement entity.Movement
}

// ConsumeProduct descuenta stock físico (movimiento exit).
func (e *Engine) ConsumeProduct(ctx context.Context, in MovementInput) (Result, error) {
	return e.apply(ctx, OpConsume, in, e.rules.Consume)
}

// AddProduct suma stock físico (movimiento entry).
func (e *Engine) AddProduct(ctx context.Context, in MovementInput) (Result, error) {
	return e.apply(ctx, OpAdd, in, e.rules.Add)
}

// ReserveProduct compromete disponible sin tocar el físico (movimiento reservation).
func (e *Engine) ReserveProduct(ctx context.Context, in MovementInput) (Result, error) {
	return e.apply(ctx, OpReserve, in, e.rules.Reserve)
}

// ReleaseReservation libera una reserva (movimiento release con cantidad negativa).
func (e *Engine) ReleaseReservation(ctx context.Context, in MovementInput) (Result, error) {
	return e.apply(ctx, OpRelease, in, e.rules.Release)
}

// ReturnProduct reingresa stock consumido (movimiento return).
func (e *Engine) ReturnProduct(ctx context.Context, in MovementInput) (Result, error) {
	return e.apply(ctx, OpReturn, in, e.rules.Return)
}

// AdjustStock fija el stock físico en NewQuantity. Sin referencia: cada llamada crea un movimiento.
func (e *Engine) AdjustStock(ctx context.Context, in AdjustInput) (Result, error) {
	if err := validateIDs(in.TenantID, in.ProductID); err != nil {
		e.finish(OpAdjust, in.TenantID, in.ProductID, nil, time.Now(), err)
		return Result{}, err
	}
	return e.mutate(ctx, OpAdjust, in.TenantID, in.ProductID, nil, func(rec entity.StockRecord) (entity.Movement, ledger.Transition, error) {
		tr, err := e.rules.Adjust(rec, in.NewQuantity)
		if err != nil {
			return entity.Movement{}, tr, err
		}
		return tr.Movement(in.Reason, nil, in.ActorID), tr, nil
	})
}

func (e *Engine) apply(
	ctx context.Context,
	op string,
	in MovementInput,
	rule func(entity.StockRecord, int64) (ledger.Transition, error),
) (Result, error) {
	if err := validateMovementInput(in); err != nil {
		e.finish(op, in.TenantID, in.ProductID, in.Reference, time.Now(), err)
		return Result{}, err
	}
	return e.mutate(ctx, op, in.TenantID, in.ProductID, in.Reference, func(rec entity.StockRecord) (entity.Movement, ledger.Transition, error) {
		tr, err := rule(rec, in.Quantity)
		if err != nil {
			return entity.Movement{}, tr, err
		}
		return tr.Movement(in.Reason, in.Reference, in.ActorID), tr, nil
	})
}

// mutate implementa el protocolo común: tx → bloqueo → idempotencia → validación →
// nuevo estado → Append → Save → Commit. Cualquier error hace Rollback completo.
func (e *Engine) mutate(
	ctx context.Context,
	op string,
	tenantID, productID int64,
	ref *entity.Reference,
	plan func(entity.StockRecord) (entity.Movement, ledger.Transition, error),
) (Result, error) {
	started := time.Now()
	var res Result
	err := e.txRunner.Run(ctx, func(stockRepo repository.StockRecordRepository, movRepo repository.MovementRepository) error {
		rec, err := stockRepo.GetForUpdate(ctx, tenantID, productID)
		if err != nil {
			return err
		}

		mov, tr, err := plan(*rec)
		if err != nil {
			// Una referencia ya aplicada gana sobre cualquier otra regla: el segundo intento
			// debe verse como duplicado aunque el estado actual ya no lo permita.
			if dupErr := checkDuplicate(ctx, movRepo, tenantID, productID, ref, tr.Type, op); dupErr != nil {
				return dupErr
			}
			return err
		}
		if err := checkDuplicate(ctx, movRepo, tenantID, productID, ref, mov.Type, op); err != nil {
			return err
		}

		now := e.now()
		mov.TransactionID = uuid.NewString()
		mov.CreatedAt = now
		if err := movRepo.Append(ctx, &mov); err != nil {
			return err
		}
		next := tr.Next
		next.UpdatedAt = now
		if err := stockRepo.Save(ctx, &next); err != nil {
			return err
		}
		res = Result{Record: next, Movement: mov}
		return nil
	})
	e.finish(op, tenantID, productID, ref, started, err)
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// checkDuplicate consulta la llave de idempotencia dentro de la transacción (fila ya bloqueada).
// movementType puede venir vacío si la regla falló antes de armar la transición.
func checkDuplicate(ctx context.Context, movRepo repository.MovementRepository, tenantID, productID int64, ref *entity.Reference, movementType, op string) error {
	if ref == nil {
		return nil
	}
	if movementType == "" {
		movementType = movementTypeOf(op)
	}
	key := entity.IdempotencyKey{TenantID: tenantID, ProductID: productID, ReferenceType: ref.Type, ReferenceID: ref.ID, Type: movementType}
	exists, err := movRepo.ExistsByKey(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s %s #%d", domain.ErrDuplicateMovement, movementType, ref.Type, ref.ID)
	}
	return nil
}

func movementTypeOf(op string) string {
	switch op {
	case OpConsume:
		return entity.MovementTypeExit
	case OpAdd, OpOpenRecord:
		return entity.MovementTypeEntry
	case OpAdjust:
		return entity.MovementTypeAdjustment
	case OpReserve:
		return entity.MovementTypeReservation
	case OpRelease:
		return entity.MovementTypeRelease
	case OpReturn:
		return entity.MovementTypeReturn
	}
	return ""
}

// OpenRecord crea el registro de stock de un producto. Un saldo inicial > 0 se registra como
// entrada para que el libro reconstruya el stock desde cero.
func (e *Engine) OpenRecord(ctx context.Context, in OpenRecordInput) (Result, error) {
	started := time.Now()
	if err := validateOpenRecord(in); err != nil {
		e.finish(OpOpenRecord, in.TenantID, in.ProductID, nil, started, err)
		return Result{}, err
	}
	var res Result
	err := e.txRunner.Run(ctx, func(stockRepo repository.StockRecordRepository, movRepo repository.MovementRepository) error {
		now := e.now()
		rec := entity.StockRecord{
			TenantID:    in.TenantID,
			ProductID:   in.ProductID,
			MinQuantity: in.MinQuantity,
			MaxQuantity: in.MaxQuantity,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := stockRepo.Create(ctx, &rec); err != nil {
			return err
		}
		res.Record = rec
		if in.InitialQuantity == 0 {
			return nil
		}
		tr, err := e.rules.Add(rec, in.InitialQuantity)
		if err != nil {
			return err
		}
		mov := tr.Movement(initialBalanceReason, nil, in.ActorID)
		mov.TransactionID = uuid.NewString()
		mov.CreatedAt = now
		if err := movRepo.Append(ctx, &mov); err != nil {
			return err
		}
		next := tr.Next
		if err := stockRepo.Save(ctx, &next); err != nil {
			return err
		}
		res = Result{Record: next, Movement: mov}
		return nil
	})
	e.finish(OpOpenRecord, in.TenantID, in.ProductID, nil, started, err)
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// GetRecord lee el registro sin bloquear.
func (e *Engine) GetRecord(ctx context.Context, tenantID, productID int64) (*entity.StockRecord, error) {
	if err := validateIDs(tenantID, productID); err != nil {
		return nil, err
	}
	return e.stockRepo.Get(ctx, tenantID, productID)
}

// ListMovements devuelve el historial de un producto en [from, to] (cero = sin límite).
func (e *Engine) ListMovements(ctx context.Context, tenantID, productID int64, from, to time.Time) ([]entity.Movement, error) {
	if err := validateIDs(tenantID, productID); err != nil {
		return nil, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, fmt.Errorf("%w: rango de fechas invertido", domain.ErrInvalidArgument)
	}
	if _, err := e.stockRepo.Get(ctx, tenantID, productID); err != nil {
		return nil, err
	}
	list := []entity.Movement{}
	for m, err := range e.movRepo.FindByProductAndDateRange(ctx, tenantID, productID, from, to) {
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, nil
}

func (e *Engine) finish(op string, tenantID, productID int64, ref *entity.Reference, started time.Time, err error) {
	kind := domain.KindOf(err)
	e.observer.ObserveOperation(op, kind, time.Since(started))

	var ev = e.log.Debug()
	switch {
	case err == nil:
	case domain.IsBusiness(err):
		ev = e.log.Info().Err(err).Str("kind", string(kind))
	default:
		ev = e.log.Error().Err(err)
	}
	ev = ev.Str("op", op).Int64("tenant_id", tenantID).Int64("product_id", productID)
	if ref != nil {
		ev = ev.Str("reference_type", ref.Type).Int64("reference_id", ref.ID)
	}
	if err == nil {
		ev.Msg("operación de stock confirmada")
		return
	}
	ev.Msg("operación de stock rechazada")
}

func validateIDs(tenantID, productID int64) error {
	if tenantID <= 0 || productID <= 0 {
		return fmt.Errorf("%w: tenant_id y product_id son obligatorios", domain.ErrInvalidArgument)
	}
	return nil
}

func validateMovementInput(in MovementInput) error {
	if err := validateIDs(in.TenantID, in.ProductID); err != nil {
		return err
	}
	if in.Quantity <= 0 {
		return fmt.Errorf("%w: la cantidad debe ser mayor que cero (%d)", domain.ErrInvalidArgument, in.Quantity)
	}
	if in.Reference != nil && in.Reference.Type == "" {
		return fmt.Errorf("%w: reference_type es obligatorio si hay referencia", domain.ErrInvalidArgument)
	}
	return nil
}

func validateOpenRecord(in OpenRecordInput) error {
	if err := validateIDs(in.TenantID, in.ProductID); err != nil {
		return err
	}
	if in.InitialQuantity < 0 || in.MinQuantity < 0 || in.MaxQuantity < 0 {
		return fmt.Errorf("%w: cantidades negativas", domain.ErrInvalidArgument)
	}
	if in.MaxQuantity > 0 && in.MinQuantity > in.MaxQuantity {
		return fmt.Errorf("%w: min_quantity mayor que max_quantity", domain.ErrInvalidArgument)
	}
	return nil
}
