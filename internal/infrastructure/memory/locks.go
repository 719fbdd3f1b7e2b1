package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// lockTable bloqueo exclusivo por (tenant, producto). Cada fila es un canal con capacidad 1:
// enviar toma el bloqueo, recibir lo libera. Así la espera puede cortarse por contexto.
type lockTable struct {
	mu    sync.Mutex
	slots map[entity.StockKey]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{slots: make(map[entity.StockKey]chan struct{})}
}

func (t *lockTable) slot(key entity.StockKey) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		t.slots[key] = ch
	}
	return ch
}

// acquire espera el bloqueo hasta timeout (0 = sin límite propio, solo el del ctx).
func (t *lockTable) acquire(ctx context.Context, key entity.StockKey, timeout time.Duration) error {
	ch := t.slot(key)
	select {
	case ch <- struct{}{}:
		return nil
	default:
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	select {
	case ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domain.ErrLockTimeout
		}
		return ctx.Err()
	}
}

func (t *lockTable) release(key entity.StockKey) {
	<-t.slot(key)
}
