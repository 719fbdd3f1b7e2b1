package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.StockRecordRepository = (*StockRecordRepo)(nil)

const stockRecordColumns = `tenant_id, product_id, quantity, reserved_quantity, min_quantity, max_quantity, version, created_at, updated_at`

// StockRecordRepo implementación de StockRecordRepository sobre PostgreSQL (usable con pool o tx).
type StockRecordRepo struct {
	q          Querier
	onLockWait func(time.Duration)
}

// NewStockRecordRepository construye el adaptador de stock. Pasar pool o tx (Querier).
func NewStockRecordRepository(q Querier) *StockRecordRepo {
	return &StockRecordRepo{q: q}
}

func scanStockRecord(row pgx.Row) (*entity.StockRecord, error) {
	var s entity.StockRecord
	err := row.Scan(&s.TenantID, &s.ProductID, &s.Quantity, &s.ReservedQuantity,
		&s.MinQuantity, &s.MaxQuantity, &s.Version, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func notFound(tenantID, productID int64) error {
	return fmt.Errorf("%w: tenant %d producto %d", domain.ErrNotFound, tenantID, productID)
}

// Get obtiene el registro sin bloquear.
func (r *StockRecordRepo) Get(ctx context.Context, tenantID, productID int64) (*entity.StockRecord, error) {
	query := `SELECT ` + stockRecordColumns + ` FROM stock_records WHERE tenant_id = $1 AND product_id = $2`
	s, err := scanStockRecord(r.q.QueryRow(ctx, query, tenantID, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(tenantID, productID)
		}
		return nil, fmt.Errorf("get stock record: %w", err)
	}
	return s, nil
}

// GetForUpdate obtiene el registro y bloquea la fila (SELECT FOR UPDATE). La espera está
// acotada por lock_timeout de la transacción (ver TxRunner).
func (r *StockRecordRepo) GetForUpdate(ctx context.Context, tenantID, productID int64) (*entity.StockRecord, error) {
	query := `SELECT ` + stockRecordColumns + ` FROM stock_records WHERE tenant_id = $1 AND product_id = $2 FOR UPDATE`
	started := time.Now()
	s, err := scanStockRecord(r.q.QueryRow(ctx, query, tenantID, productID))
	if r.onLockWait != nil {
		r.onLockWait(time.Since(started))
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(tenantID, productID)
		}
		return nil, mapLockError("get stock record for update", err)
	}
	return s, nil
}

// Save actualiza ambos contadores si la versión no cambió desde la lectura.
func (r *StockRecordRepo) Save(ctx context.Context, record *entity.StockRecord) error {
	query := `
		UPDATE stock_records
		SET quantity = $3, reserved_quantity = $4, min_quantity = $5, max_quantity = $6,
		    version = version + 1, updated_at = COALESCE($8, now())
		WHERE tenant_id = $1 AND product_id = $2 AND version = $7
		RETURNING version, updated_at`
	var updatedAt *time.Time
	if !record.UpdatedAt.IsZero() {
		updatedAt = &record.UpdatedAt
	}
	err := r.q.QueryRow(ctx, query,
		record.TenantID, record.ProductID, record.Quantity, record.ReservedQuantity,
		record.MinQuantity, record.MaxQuantity, record.Version, updatedAt,
	).Scan(&record.Version, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: tenant %d producto %d versión %d", domain.ErrConcurrencyConflict,
				record.TenantID, record.ProductID, record.Version)
		}
		return mapLockError("save stock record", err)
	}
	return nil
}

// Create inserta el registro; domain.ErrDuplicate si ya existe.
func (r *StockRecordRepo) Create(ctx context.Context, record *entity.StockRecord) error {
	query := `
		INSERT INTO stock_records (tenant_id, product_id, quantity, reserved_quantity, min_quantity, max_quantity, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, now(), now())
		ON CONFLICT (tenant_id, product_id) DO NOTHING
		RETURNING version, created_at, updated_at`
	err := r.q.QueryRow(ctx, query,
		record.TenantID, record.ProductID, record.Quantity, record.ReservedQuantity,
		record.MinQuantity, record.MaxQuantity,
	).Scan(&record.Version, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: registro de stock tenant %d producto %d", domain.ErrDuplicate, record.TenantID, record.ProductID)
		}
		return fmt.Errorf("insert stock record: %w", err)
	}
	return nil
}

// ListByTenant lista los registros de un tenant ordenados por producto.
func (r *StockRecordRepo) ListByTenant(ctx context.Context, tenantID int64) ([]*entity.StockRecord, error) {
	query := `SELECT ` + stockRecordColumns + ` FROM stock_records WHERE tenant_id = $1 ORDER BY product_id`
	rows, err := r.q.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list stock records: %w", err)
	}
	defer rows.Close()
	var list []*entity.StockRecord
	for rows.Next() {
		s, err := scanStockRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock record: %w", err)
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
