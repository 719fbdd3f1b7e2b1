package ledger

import (
	"fmt"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// Rules reglas de negocio de las transiciones de stock (servicio de dominio puro, sin I/O).
type Rules struct {
	AllowNegativeStock bool
}

// Transition resultado de aplicar una operación sobre un registro bloqueado.
type Transition struct {
	Next     entity.StockRecord
	Type     string
	Effect   Effect
	Quantity int64 // valor a guardar en movement.quantity
	Previous int64
	Current  int64
}

// Movement arma el movimiento (sin ID ni fechas) que documenta la transición.
func (t Transition) Movement(reason string, ref *entity.Reference, actorID string) entity.Movement {
	return entity.Movement{
		TenantID:         t.Next.TenantID,
		ProductID:        t.Next.ProductID,
		Type:             t.Type,
		Quantity:         t.Quantity,
		PreviousQuantity: t.Previous,
		CurrentQuantity:  t.Current,
		Reason:           reason,
		Reference:        ref,
		ActorID:          actorID,
	}
}

func build(rec entity.StockRecord, movementType string, e Effect) Transition {
	next := e.ApplyTo(rec)
	return Transition{
		Next:     next,
		Type:     movementType,
		Effect:   e,
		Quantity: StoredQuantity(movementType, e),
		Previous: e.Snapshot(rec),
		Current:  e.Snapshot(next),
	}
}

func positive(q int64) error {
	if q <= 0 {
		return fmt.Errorf("%w: la cantidad debe ser mayor que cero (%d)", domain.ErrInvalidArgument, q)
	}
	return nil
}

// Consume salida de stock físico.
func (r Rules) Consume(rec entity.StockRecord, q int64) (Transition, error) {
	if err := positive(q); err != nil {
		return Transition{}, err
	}
	if !r.AllowNegativeStock && rec.Quantity-q < 0 {
		return Transition{}, fmt.Errorf("%w: actual %d, solicitado %d", domain.ErrInsufficientStock, rec.Quantity, q)
	}
	return build(rec, entity.MovementTypeExit, OnHandDelta(-q)), nil
}

// Add entrada de stock físico. MaxQuantity es solo de alerta: no se valida.
func (r Rules) Add(rec entity.StockRecord, q int64) (Transition, error) {
	if err := positive(q); err != nil {
		return Transition{}, err
	}
	return build(rec, entity.MovementTypeEntry, OnHandDelta(q)), nil
}

// Return devolución: inversa de Consume.
func (r Rules) Return(rec entity.StockRecord, q int64) (Transition, error) {
	if err := positive(q); err != nil {
		return Transition{}, err
	}
	return build(rec, entity.MovementTypeReturn, OnHandDelta(q)), nil
}

// Adjust fija el stock físico en newQuantity; el movimiento guarda el delta con signo.
func (r Rules) Adjust(rec entity.StockRecord, newQuantity int64) (Transition, error) {
	if !r.AllowNegativeStock && newQuantity < 0 {
		return Transition{}, fmt.Errorf("%w: el ajuste no puede dejar stock negativo (%d)", domain.ErrInvalidArgument, newQuantity)
	}
	return build(rec, entity.MovementTypeAdjustment, OnHandDelta(newQuantity-rec.Quantity)), nil
}

// Reserve compromete q unidades del disponible sin tocar el físico.
func (r Rules) Reserve(rec entity.StockRecord, q int64) (Transition, error) {
	if err := positive(q); err != nil {
		return Transition{}, err
	}
	if !r.AllowNegativeStock && rec.AvailableQuantity()-q < 0 {
		return Transition{}, fmt.Errorf("%w: disponible %d, solicitado %d", domain.ErrInsufficientStock, rec.AvailableQuantity(), q)
	}
	return build(rec, entity.MovementTypeReservation, AvailableDelta(-q)), nil
}

// Release devuelve q unidades reservadas al disponible. Nunca deja ReservedQuantity < 0.
func (r Rules) Release(rec entity.StockRecord, q int64) (Transition, error) {
	if err := positive(q); err != nil {
		return Transition{}, err
	}
	if q > rec.ReservedQuantity {
		return Transition{}, fmt.Errorf("%w: reservado %d, a liberar %d", domain.ErrInvalidReservationState, rec.ReservedQuantity, q)
	}
	return build(rec, entity.MovementTypeRelease, AvailableDelta(q)), nil
}
