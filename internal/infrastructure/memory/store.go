// Package memory implementa los puertos del libro de stock en memoria (tests y desarrollo).
// Mismas garantías que el adaptador PostgreSQL: bloqueo por fila, Rollback completo e
// índice único de idempotencia.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var (
	_ inventory.TxRunner               = (*Store)(nil)
	_ repository.StockRecordRepository = (*Store)(nil)
	_ repository.MovementRepository    = (*Store)(nil)
	_ repository.ProductRepository     = (*Store)(nil)
)

// Store estado confirmado en memoria.
type Store struct {
	mu        sync.RWMutex
	records   map[entity.StockKey]entity.StockRecord
	movements []entity.Movement // en orden de confirmación
	keys      map[entity.IdempotencyKey]int64
	products  map[entity.StockKey]*entity.Product

	locks       *lockTable
	lockTimeout time.Duration
	onLockWait  func(time.Duration)
	nextID      atomic.Int64
}

// Option configura el Store.
type Option func(*Store)

// WithLockTimeout límite de espera de GetForUpdate (0 = solo el del contexto).
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

// WithLockWaitHook recibe el tiempo de espera de cada bloqueo obtenido.
func WithLockWaitHook(fn func(time.Duration)) Option {
	return func(s *Store) { s.onLockWait = fn }
}

// NewStore construye un Store vacío.
func NewStore(opts ...Option) *Store {
	s := &Store{
		records:  make(map[entity.StockKey]entity.StockRecord),
		keys:     make(map[entity.IdempotencyKey]int64),
		products: make(map[entity.StockKey]*entity.Product),
		locks:    newLockTable(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run ejecuta fn en una transacción: las escrituras quedan en el tx y se aplican juntas en Commit.
func (s *Store) Run(ctx context.Context, fn func(
	stockRepo repository.StockRecordRepository,
	movRepo repository.MovementRepository,
) error) error {
	tx := newTx(s)
	defer tx.close()
	if err := fn(tx, tx); err != nil {
		return err
	}
	return tx.commit()
}

func (s *Store) autocommit(ctx context.Context, fn func(tx *Tx) error) error {
	tx := newTx(s)
	defer tx.close()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

// Get lee un registro confirmado.
func (s *Store) Get(_ context.Context, tenantID, productID int64) (*entity.StockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := entity.StockKey{TenantID: tenantID, ProductID: productID}
	rec, ok := s.records[key]
	if !ok {
		return nil, recordNotFound(key)
	}
	return &rec, nil
}

// GetForUpdate fuera de una transacción: el bloqueo se libera al volver.
func (s *Store) GetForUpdate(ctx context.Context, tenantID, productID int64) (*entity.StockRecord, error) {
	var rec *entity.StockRecord
	err := s.autocommit(ctx, func(tx *Tx) error {
		var err error
		rec, err = tx.GetForUpdate(ctx, tenantID, productID)
		return err
	})
	return rec, err
}

// Save guarda con control optimista de versión.
func (s *Store) Save(ctx context.Context, record *entity.StockRecord) error {
	return s.autocommit(ctx, func(tx *Tx) error { return tx.Save(ctx, record) })
}

// Create inserta un registro nuevo.
func (s *Store) Create(ctx context.Context, record *entity.StockRecord) error {
	return s.autocommit(ctx, func(tx *Tx) error { return tx.Create(ctx, record) })
}

// ListByTenant lista los registros de un tenant ordenados por producto.
func (s *Store) ListByTenant(_ context.Context, tenantID int64) ([]*entity.StockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var list []*entity.StockRecord
	for k, rec := range s.records {
		if k.TenantID == tenantID {
			r := rec
			list = append(list, &r)
		}
	}
	slices.SortFunc(list, func(a, b *entity.StockRecord) int { return cmp.Compare(a.ProductID, b.ProductID) })
	return list, nil
}

// Append inserta un movimiento fuera de transacción.
func (s *Store) Append(ctx context.Context, movement *entity.Movement) error {
	return s.autocommit(ctx, func(tx *Tx) error { return tx.Append(ctx, movement) })
}

// ExistsByKey consulta el índice de idempotencia confirmado.
func (s *Store) ExistsByKey(_ context.Context, key entity.IdempotencyKey) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok, nil
}

// FindByProductAndDateRange ver repository.MovementRepository.
func (s *Store) FindByProductAndDateRange(ctx context.Context, tenantID, productID int64, from, to time.Time) iter.Seq2[entity.Movement, error] {
	return s.find(ctx, func(m entity.Movement) bool {
		return m.TenantID == tenantID && m.ProductID == productID && inRange(m.CreatedAt, from, to)
	})
}

// FindByTenantAndDateRange ver repository.MovementRepository.
func (s *Store) FindByTenantAndDateRange(ctx context.Context, tenantID int64, from, to time.Time) iter.Seq2[entity.Movement, error] {
	return s.find(ctx, func(m entity.Movement) bool {
		return m.TenantID == tenantID && inRange(m.CreatedAt, from, to)
	})
}

// find toma una copia filtrada en cada recorrido; no se mantiene el lock mientras se hace yield.
func (s *Store) find(ctx context.Context, match func(entity.Movement) bool) iter.Seq2[entity.Movement, error] {
	return func(yield func(entity.Movement, error) bool) {
		s.mu.RLock()
		var out []entity.Movement
		for _, m := range s.movements {
			if match(m) {
				out = append(out, m)
			}
		}
		s.mu.RUnlock()
		sortMovements(out)
		for _, m := range out {
			if err := ctx.Err(); err != nil {
				yield(entity.Movement{}, err)
				return
			}
			if !yield(m, nil) {
				return
			}
		}
	}
}

// Upsert registra o reemplaza un producto del catálogo.
func (s *Store) Upsert(_ context.Context, p *entity.Product) error {
	cp := *p
	cp.UpdatedAt = time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[entity.StockKey{TenantID: p.TenantID, ProductID: p.ID}] = &cp
	p.UpdatedAt = cp.UpdatedAt
	return nil
}

// GetByIDs ver repository.ProductRepository.
func (s *Store) GetByIDs(_ context.Context, tenantID int64, ids []int64) (map[int64]*entity.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]*entity.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[entity.StockKey{TenantID: tenantID, ProductID: id}]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}

func sortMovements(list []entity.Movement) {
	slices.SortStableFunc(list, func(a, b entity.Movement) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func recordNotFound(key entity.StockKey) error {
	return fmt.Errorf("%w: tenant %d producto %d", domain.ErrNotFound, key.TenantID, key.ProductID)
}
