package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound                = errors.New("registro de stock no encontrado")
	ErrInvalidArgument         = errors.New("argumento inválido")
	ErrDuplicate               = errors.New("recurso duplicado")
	ErrUnauthorized            = errors.New("no autorizado")
	ErrInsufficientStock       = errors.New("stock insuficiente")
	ErrDuplicateMovement       = errors.New("movimiento duplicado para la referencia")
	ErrInvalidReservationState = errors.New("estado de reserva inválido")
	ErrLockTimeout             = errors.New("tiempo de espera del bloqueo agotado")
	ErrConcurrencyConflict     = errors.New("conflicto de concurrencia")
)

// ErrorKind clasifica un error para los adaptadores (HTTP, métricas).
type ErrorKind string

const (
	KindNone                    ErrorKind = ""
	KindInvalidArgument         ErrorKind = "INVALID_ARGUMENT"
	KindNotFound                ErrorKind = "NOT_FOUND"
	KindDuplicate               ErrorKind = "DUPLICATE"
	KindUnauthorized            ErrorKind = "UNAUTHORIZED"
	KindInsufficientStock       ErrorKind = "INSUFFICIENT_STOCK"
	KindDuplicateMovement       ErrorKind = "DUPLICATE_MOVEMENT"
	KindInvalidReservationState ErrorKind = "INVALID_RESERVATION_STATE"
	KindLockTimeout             ErrorKind = "LOCK_TIMEOUT"
	KindConcurrencyConflict     ErrorKind = "CONCURRENCY_CONFLICT"
	KindInternal                ErrorKind = "INTERNAL"
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrInvalidArgument, KindInvalidArgument},
	{ErrNotFound, KindNotFound},
	{ErrDuplicateMovement, KindDuplicateMovement},
	{ErrDuplicate, KindDuplicate},
	{ErrUnauthorized, KindUnauthorized},
	{ErrInsufficientStock, KindInsufficientStock},
	{ErrInvalidReservationState, KindInvalidReservationState},
	{ErrLockTimeout, KindLockTimeout},
	{ErrConcurrencyConflict, KindConcurrencyConflict},
}

// KindOf devuelve la clase de un error. nil → KindNone; errores de infraestructura → KindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// IsBusiness indica si el error es una regla de negocio (resultado tipado) y no una falla de infraestructura.
func IsBusiness(err error) bool {
	k := KindOf(err)
	return k != KindNone && k != KindInternal
}

// IsRetryable indica si la operación puede reintentarse desde cero (contención).
func IsRetryable(err error) bool {
	k := KindOf(err)
	return k == KindLockTimeout || k == KindConcurrencyConflict
}
