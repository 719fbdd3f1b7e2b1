package ledger

import (
	"fmt"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// Counter contador de StockRecord afectado por un movimiento.
type Counter int

const (
	OnHand    Counter = iota + 1 // stock físico (Quantity)
	Available                    // disponible (Quantity - ReservedQuantity)
)

func (c Counter) String() string {
	switch c {
	case OnHand:
		return "on_hand"
	case Available:
		return "available"
	}
	return "unknown"
}

// Effect es la lectura sin ambigüedad de un movimiento: qué contador cambia y en cuánto.
// La columna quantity mezcla convenciones (absoluta, delta, negativa); Effect las normaliza.
type Effect struct {
	Counter Counter
	Delta   int64
}

// OnHandDelta efecto sobre el stock físico.
func OnHandDelta(d int64) Effect { return Effect{Counter: OnHand, Delta: d} }

// AvailableDelta efecto sobre el disponible (la contraparte cambia ReservedQuantity).
func AvailableDelta(d int64) Effect { return Effect{Counter: Available, Delta: d} }

// EffectOf decodifica la cantidad almacenada de un movimiento según su tipo.
func EffectOf(m entity.Movement) (Effect, error) {
	switch m.Type {
	case entity.MovementTypeEntry, entity.MovementTypeReturn:
		return OnHandDelta(m.Quantity), nil
	case entity.MovementTypeExit:
		return OnHandDelta(-m.Quantity), nil
	case entity.MovementTypeAdjustment:
		return OnHandDelta(m.Quantity), nil
	case entity.MovementTypeReservation:
		return AvailableDelta(-m.Quantity), nil
	case entity.MovementTypeRelease:
		// se guarda negativa: -(-q) = +q de disponible
		return AvailableDelta(-m.Quantity), nil
	}
	return Effect{}, fmt.Errorf("%w: tipo de movimiento %q", domain.ErrInvalidArgument, m.Type)
}

// StoredQuantity codifica un efecto en la columna quantity según el tipo de movimiento.
// Inversa de EffectOf.
func StoredQuantity(movementType string, e Effect) int64 {
	switch movementType {
	case entity.MovementTypeExit, entity.MovementTypeReservation, entity.MovementTypeRelease:
		return -e.Delta
	}
	return e.Delta
}

// ApplyTo devuelve el registro con el efecto aplicado. Un efecto sobre el disponible
// se materializa en ReservedQuantity; el físico no cambia.
func (e Effect) ApplyTo(rec entity.StockRecord) entity.StockRecord {
	switch e.Counter {
	case OnHand:
		rec.Quantity += e.Delta
	case Available:
		rec.ReservedQuantity -= e.Delta
	}
	return rec
}

// Snapshot devuelve el valor del contador afectado en rec.
func (e Effect) Snapshot(rec entity.StockRecord) int64 {
	if e.Counter == Available {
		return rec.AvailableQuantity()
	}
	return rec.Quantity
}
