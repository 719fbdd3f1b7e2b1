package memory

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var (
	_ repository.StockRecordRepository = (*Tx)(nil)
	_ repository.MovementRepository    = (*Tx)(nil)
)

type stagedRecord struct {
	record      entity.StockRecord
	baseVersion int64 // versión confirmada sobre la que se calculó; -1 si es nuevo
}

// Tx vista transaccional: lee lo confirmado más lo propio y escribe solo en memoria local.
// Los bloqueos de fila se mantienen hasta close().
type Tx struct {
	s         *Store
	held      map[entity.StockKey]bool
	records   map[entity.StockKey]stagedRecord
	movements []entity.Movement
	keys      map[entity.IdempotencyKey]bool
}

func newTx(s *Store) *Tx {
	return &Tx{
		s:       s,
		held:    make(map[entity.StockKey]bool),
		records: make(map[entity.StockKey]stagedRecord),
		keys:    make(map[entity.IdempotencyKey]bool),
	}
}

func (tx *Tx) lock(ctx context.Context, key entity.StockKey) error {
	if tx.held[key] {
		return nil
	}
	started := time.Now()
	if err := tx.s.locks.acquire(ctx, key, tx.s.lockTimeout); err != nil {
		return fmt.Errorf("bloquear tenant %d producto %d: %w", key.TenantID, key.ProductID, err)
	}
	if tx.s.onLockWait != nil {
		tx.s.onLockWait(time.Since(started))
	}
	tx.held[key] = true
	return nil
}

// close libera los bloqueos; lo no confirmado se descarta (Rollback).
func (tx *Tx) close() {
	for key := range tx.held {
		tx.s.locks.release(key)
	}
	tx.held = nil
}

func (tx *Tx) read(key entity.StockKey) (entity.StockRecord, bool) {
	if st, ok := tx.records[key]; ok {
		return st.record, true
	}
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	rec, ok := tx.s.records[key]
	return rec, ok
}

// Get lee sin bloquear.
func (tx *Tx) Get(_ context.Context, tenantID, productID int64) (*entity.StockRecord, error) {
	key := entity.StockKey{TenantID: tenantID, ProductID: productID}
	rec, ok := tx.read(key)
	if !ok {
		return nil, recordNotFound(key)
	}
	return &rec, nil
}

// GetForUpdate bloquea la fila hasta el fin de la transacción y la lee.
func (tx *Tx) GetForUpdate(ctx context.Context, tenantID, productID int64) (*entity.StockRecord, error) {
	key := entity.StockKey{TenantID: tenantID, ProductID: productID}
	if err := tx.lock(ctx, key); err != nil {
		return nil, err
	}
	rec, ok := tx.read(key)
	if !ok {
		return nil, recordNotFound(key)
	}
	return &rec, nil
}

// Save deja el registro listo para Commit; compara la versión con la vigente.
func (tx *Tx) Save(_ context.Context, record *entity.StockRecord) error {
	key := record.Key()
	current, ok := tx.read(key)
	if !ok {
		return recordNotFound(key)
	}
	if current.Version != record.Version {
		return fmt.Errorf("%w: versión %d, vigente %d", domain.ErrConcurrencyConflict, record.Version, current.Version)
	}
	base := current.Version
	if st, staged := tx.records[key]; staged {
		base = st.baseVersion
	}
	record.Version++
	tx.records[key] = stagedRecord{record: *record, baseVersion: base}
	return nil
}

// Create inserta un registro nuevo y lo deja bloqueado por esta transacción.
func (tx *Tx) Create(ctx context.Context, record *entity.StockRecord) error {
	key := record.Key()
	if err := tx.lock(ctx, key); err != nil {
		return err
	}
	if _, ok := tx.read(key); ok {
		return fmt.Errorf("%w: registro de stock tenant %d producto %d", domain.ErrDuplicate, key.TenantID, key.ProductID)
	}
	record.Version = 0
	tx.records[key] = stagedRecord{record: *record, baseVersion: -1}
	return nil
}

// ListByTenant lo confirmado más lo escrito en esta transacción.
func (tx *Tx) ListByTenant(ctx context.Context, tenantID int64) ([]*entity.StockRecord, error) {
	list, err := tx.s.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for key, st := range tx.records {
		if key.TenantID != tenantID {
			continue
		}
		rec := st.record
		i := slices.IndexFunc(list, func(r *entity.StockRecord) bool { return r.ProductID == key.ProductID })
		if i >= 0 {
			list[i] = &rec
		} else {
			list = append(list, &rec)
		}
	}
	slices.SortFunc(list, func(a, b *entity.StockRecord) int { return cmp.Compare(a.ProductID, b.ProductID) })
	return list, nil
}

func (tx *Tx) hasKey(key entity.IdempotencyKey) bool {
	if tx.keys[key] {
		return true
	}
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	_, ok := tx.s.keys[key]
	return ok
}

// Append agrega el movimiento al tx. El ID se asigna aquí (como una secuencia: puede haber huecos).
func (tx *Tx) Append(_ context.Context, movement *entity.Movement) error {
	if key, ok := movement.Key(); ok {
		if tx.hasKey(key) {
			return fmt.Errorf("%w: %s %s #%d", domain.ErrDuplicateMovement, key.Type, key.ReferenceType, key.ReferenceID)
		}
		tx.keys[key] = true
	}
	movement.ID = tx.s.nextID.Add(1)
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now()
	}
	tx.movements = append(tx.movements, *movement)
	return nil
}

// ExistsByKey ver repository.MovementRepository.
func (tx *Tx) ExistsByKey(_ context.Context, key entity.IdempotencyKey) (bool, error) {
	return tx.hasKey(key), nil
}

// FindByProductAndDateRange incluye lo agregado en esta transacción.
func (tx *Tx) FindByProductAndDateRange(ctx context.Context, tenantID, productID int64, from, to time.Time) iter.Seq2[entity.Movement, error] {
	return tx.find(ctx, tx.s.FindByProductAndDateRange(ctx, tenantID, productID, from, to), func(m entity.Movement) bool {
		return m.TenantID == tenantID && m.ProductID == productID && inRange(m.CreatedAt, from, to)
	})
}

// FindByTenantAndDateRange incluye lo agregado en esta transacción.
func (tx *Tx) FindByTenantAndDateRange(ctx context.Context, tenantID int64, from, to time.Time) iter.Seq2[entity.Movement, error] {
	return tx.find(ctx, tx.s.FindByTenantAndDateRange(ctx, tenantID, from, to), func(m entity.Movement) bool {
		return m.TenantID == tenantID && inRange(m.CreatedAt, from, to)
	})
}

func (tx *Tx) find(ctx context.Context, committed iter.Seq2[entity.Movement, error], match func(entity.Movement) bool) iter.Seq2[entity.Movement, error] {
	return func(yield func(entity.Movement, error) bool) {
		var out []entity.Movement
		for m, err := range committed {
			if err != nil {
				yield(entity.Movement{}, err)
				return
			}
			out = append(out, m)
		}
		for _, m := range tx.movements {
			if match(m) {
				out = append(out, m)
			}
		}
		sortMovements(out)
		for _, m := range out {
			if !yield(m, nil) {
				return
			}
		}
	}
}

// commit valida contra el estado vigente y aplica todo de una vez, o nada.
func (tx *Tx) commit() error {
	s := tx.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, st := range tx.records {
		cur, exists := s.records[key]
		switch {
		case st.baseVersion < 0 && exists:
			return fmt.Errorf("%w: registro de stock tenant %d producto %d", domain.ErrDuplicate, key.TenantID, key.ProductID)
		case st.baseVersion >= 0 && (!exists || cur.Version != st.baseVersion):
			return fmt.Errorf("%w: tenant %d producto %d", domain.ErrConcurrencyConflict, key.TenantID, key.ProductID)
		}
	}
	for key := range tx.keys {
		if _, ok := s.keys[key]; ok {
			return fmt.Errorf("%w: %s %s #%d", domain.ErrDuplicateMovement, key.Type, key.ReferenceType, key.ReferenceID)
		}
	}

	for key, st := range tx.records {
		s.records[key] = st.record
	}
	for _, m := range tx.movements {
		s.movements = append(s.movements, m)
		if key, ok := m.Key(); ok {
			s.keys[key] = m.ID
		}
	}
	return nil
}
