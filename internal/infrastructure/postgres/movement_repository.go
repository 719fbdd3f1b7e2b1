package postgres

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

const movementColumns = `id, transaction_id, tenant_id, product_id, type, quantity, previous_quantity, current_quantity, reason, reference_type, reference_id, actor_id, created_at`

// MovementRepo implementación del libro de movimientos sobre PostgreSQL (usable con pool o tx).
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

// Append inserta el movimiento; el índice único parcial hace cumplir la idempotencia.
func (r *MovementRepo) Append(ctx context.Context, movement *entity.Movement) error {
	if movement.TransactionID == "" {
		movement.TransactionID = uuid.New().String()
	}
	var refType *string
	var refID *int64
	if movement.Reference != nil {
		refType = &movement.Reference.Type
		refID = &movement.Reference.ID
	}
	var actorID *string
	if movement.ActorID != "" {
		actorID = &movement.ActorID
	}
	var createdAt *time.Time
	if !movement.CreatedAt.IsZero() {
		createdAt = &movement.CreatedAt
	}
	query := `
		INSERT INTO stock_movements (transaction_id, tenant_id, product_id, type, quantity, previous_quantity, current_quantity, reason, reference_type, reference_id, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, COALESCE($12, now()))
		RETURNING id, created_at`
	err := r.q.QueryRow(ctx, query,
		movement.TransactionID, movement.TenantID, movement.ProductID, movement.Type,
		movement.Quantity, movement.PreviousQuantity, movement.CurrentQuantity, movement.Reason,
		refType, refID, actorID, createdAt,
	).Scan(&movement.ID, &movement.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s %s #%d", domain.ErrDuplicateMovement, movement.Type, deref(refType), derefInt(refID))
		}
		return mapLockError("insert stock movement", err)
	}
	return nil
}

// ExistsByKey consulta la llave de idempotencia.
func (r *MovementRepo) ExistsByKey(ctx context.Context, key entity.IdempotencyKey) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM stock_movements
			WHERE tenant_id = $1 AND product_id = $2 AND reference_type = $3 AND reference_id = $4 AND type = $5)`
	var exists bool
	if err := r.q.QueryRow(ctx, query, key.TenantID, key.ProductID, key.ReferenceType, key.ReferenceID, key.Type).Scan(&exists); err != nil {
		return false, fmt.Errorf("exists stock movement: %w", err)
	}
	return exists, nil
}

// FindByProductAndDateRange movimientos de un producto en orden de creación.
func (r *MovementRepo) FindByProductAndDateRange(ctx context.Context, tenantID, productID int64, from, to time.Time) iter.Seq2[entity.Movement, error] {
	query := `SELECT ` + movementColumns + ` FROM stock_movements WHERE tenant_id = $1 AND product_id = $2`
	return r.stream(ctx, query, []any{tenantID, productID}, from, to)
}

// FindByTenantAndDateRange movimientos de todos los productos de un tenant en orden de creación.
func (r *MovementRepo) FindByTenantAndDateRange(ctx context.Context, tenantID int64, from, to time.Time) iter.Seq2[entity.Movement, error] {
	query := `SELECT ` + movementColumns + ` FROM stock_movements WHERE tenant_id = $1`
	return r.stream(ctx, query, []any{tenantID}, from, to)
}

// stream ejecuta la consulta en cada recorrido y entrega fila a fila (sin cargar todo en memoria).
func (r *MovementRepo) stream(ctx context.Context, query string, args []any, from, to time.Time) iter.Seq2[entity.Movement, error] {
	pos := len(args) + 1
	if !from.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", pos)
		args = append(args, from)
		pos++
	}
	if !to.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", pos)
		args = append(args, to)
	}
	query += " ORDER BY created_at ASC, id ASC"

	return func(yield func(entity.Movement, error) bool) {
		rows, err := r.q.Query(ctx, query, args...)
		if err != nil {
			yield(entity.Movement{}, fmt.Errorf("list stock movements: %w", err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			m, err := scanMovement(rows)
			if err != nil {
				yield(entity.Movement{}, fmt.Errorf("scan stock movement: %w", err))
				return
			}
			if !yield(m, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(entity.Movement{}, fmt.Errorf("list stock movements: %w", err))
		}
	}
}

func scanMovement(row pgx.Row) (entity.Movement, error) {
	var m entity.Movement
	var refType, actorID *string
	var refID *int64
	err := row.Scan(&m.ID, &m.TransactionID, &m.TenantID, &m.ProductID, &m.Type, &m.Quantity,
		&m.PreviousQuantity, &m.CurrentQuantity, &m.Reason, &refType, &refID, &actorID, &m.CreatedAt)
	if err != nil {
		return m, err
	}
	if refType != nil && refID != nil {
		m.Reference = &entity.Reference{Type: *refType, ID: *refID}
	}
	if actorID != nil {
		m.ActorID = *actorID
	}
	return m, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}
