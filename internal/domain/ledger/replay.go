package ledger

import (
	"iter"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// ChainBreak movimiento cuyo previous/current no encadena con el historial reconstruido.
type ChainBreak struct {
	MovementID       int64
	Type             string
	ExpectedPrevious int64
	PreviousQuantity int64
	CurrentQuantity  int64
}

// ReplayResult contadores reconstruidos a partir del libro.
type ReplayResult struct {
	Quantity         int64
	ReservedQuantity int64
	Movements        int
	Entries          int64 // Σ entry
	Returns          int64 // Σ return
	Exits            int64 // Σ exit
	Adjustments      int64 // Σ deltas de ajuste
	Breaks           []ChainBreak
}

// Consistent indica que todos los movimientos encadenan.
func (r ReplayResult) Consistent() bool { return len(r.Breaks) == 0 }

// Replay reconstruye (quantity, reserved_quantity) partiendo de cero y recorriendo los
// movimientos en orden de confirmación. Verifica que cada previous coincida con el contador
// reconstruido y que current = previous + efecto.
func Replay(movements iter.Seq2[entity.Movement, error]) (ReplayResult, error) {
	var res ReplayResult
	state := entity.StockRecord{}
	for m, err := range movements {
		if err != nil {
			return res, err
		}
		e, err := EffectOf(m)
		if err != nil {
			return res, err
		}
		expected := e.Snapshot(state)
		if m.PreviousQuantity != expected || m.CurrentQuantity != m.PreviousQuantity+e.Delta {
			res.Breaks = append(res.Breaks, ChainBreak{
				MovementID:       m.ID,
				Type:             m.Type,
				ExpectedPrevious: expected,
				PreviousQuantity: m.PreviousQuantity,
				CurrentQuantity:  m.CurrentQuantity,
			})
		}
		state = e.ApplyTo(state)
		res.Movements++
		switch m.Type {
		case entity.MovementTypeEntry:
			res.Entries += m.Quantity
		case entity.MovementTypeReturn:
			res.Returns += m.Quantity
		case entity.MovementTypeExit:
			res.Exits += m.Quantity
		case entity.MovementTypeAdjustment:
			res.Adjustments += m.Quantity
		}
	}
	res.Quantity = state.Quantity
	res.ReservedQuantity = state.ReservedQuantity
	return res, nil
}
