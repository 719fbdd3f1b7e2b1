package entity

import "time"

// Tipos de movimiento del libro de stock.
const (
	MovementTypeEntry       = "entry"       // entrada
	MovementTypeExit        = "exit"        // salida / consumo
	MovementTypeAdjustment  = "adjustment"  // ajuste por inventario físico (delta con signo)
	MovementTypeReservation = "reservation" // reserva (resta disponible)
	MovementTypeRelease     = "release"     // liberación de reserva (cantidad negativa)
	MovementTypeReturn      = "return"      // devolución
)

// ValidMovementType indica si t es uno de los seis tipos conocidos.
func ValidMovementType(t string) bool {
	switch t {
	case MovementTypeEntry, MovementTypeExit, MovementTypeAdjustment,
		MovementTypeReservation, MovementTypeRelease, MovementTypeReturn:
		return true
	}
	return false
}

// Reference identifica de forma opaca el evento de negocio que originó el movimiento (ej. "budget", 17).
type Reference struct {
	Type string
	ID   int64
}

// Movement es una entrada inmutable del libro de stock.
// PreviousQuantity/CurrentQuantity guardan el físico (entry, exit, adjustment, return)
// o el disponible (reservation, release) antes y después de la operación.
type Movement struct {
	ID               int64
	TransactionID    string
	TenantID         int64
	ProductID        int64
	Type             string
	Quantity         int64
	PreviousQuantity int64
	CurrentQuantity  int64
	Reason           string
	Reference        *Reference
	ActorID          string
	CreatedAt        time.Time
}

// IdempotencyKey llave única de un movimiento con referencia.
type IdempotencyKey struct {
	TenantID      int64
	ProductID     int64
	ReferenceType string
	ReferenceID   int64
	Type          string
}

// Key devuelve la llave de idempotencia; ok=false si el movimiento no tiene referencia.
func (m Movement) Key() (IdempotencyKey, bool) {
	if m.Reference == nil {
		return IdempotencyKey{}, false
	}
	return IdempotencyKey{
		TenantID:      m.TenantID,
		ProductID:     m.ProductID,
		ReferenceType: m.Reference.Type,
		ReferenceID:   m.Reference.ID,
		Type:          m.Type,
	}, true
}
