// Package analytics contiene los reportes de solo lectura sobre el libro de stock:
// rotación, productos más usados, alertas de límites y conciliación.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/ledger"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// DefaultMostUsedLimit tamaño del ranking cuando limit <= 0.
const DefaultMostUsedLimit = 10

// turnoverScale decimales con los que se publica la rotación.
const turnoverScale = 4

// Filters rango de fechas de un reporte. Cero = sin límite.
type Filters struct {
	StartDate time.Time
	EndDate   time.Time
}

func (f Filters) validate() error {
	if !f.StartDate.IsZero() && !f.EndDate.IsZero() && f.EndDate.Before(f.StartDate) {
		return fmt.Errorf("%w: end_date anterior a start_date", domain.ErrInvalidArgument)
	}
	return nil
}

func (f Filters) bounds() (start, end *time.Time) {
	if !f.StartDate.IsZero() {
		s := f.StartDate
		start = &s
	}
	if !f.EndDate.IsZero() {
		e := f.EndDate
		end = &e
	}
	return start, end
}

// ReportUseCase agrega el libro de movimientos sin tomar bloqueos.
//
// Fuente de datos: MovementRepository (historial), StockRecordRepository (contadores vigentes)
// y ProductRepository (SKU, nombre y precio vigente).
type ReportUseCase struct {
	stockRepo   repository.StockRecordRepository
	movRepo     repository.MovementRepository
	productRepo repository.ProductRepository
	log         *logger.Logger
	now         func() time.Time
}

// NewReportUseCase construye el caso de uso. log puede ser nil.
func NewReportUseCase(
	stockRepo repository.StockRecordRepository,
	movRepo repository.MovementRepository,
	productRepo repository.ProductRepository,
	log *logger.Logger,
) *ReportUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &ReportUseCase{
		stockRepo:   stockRepo,
		movRepo:     movRepo,
		productRepo: productRepo,
		log:         log,
		now:         time.Now,
	}
}

type productTotals struct {
	entries int64
	exits   int64
}

// GetStockTurnoverReport rotación por producto con movimientos en el rango.
// turnover = exits / max(entries, 1); average_turnover es la media simple entre productos.
func (uc *ReportUseCase) GetStockTurnoverReport(ctx context.Context, tenantID int64, f Filters) (*dto.StockTurnoverReportDTO, error) {
	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}
	if err := f.validate(); err != nil {
		return nil, err
	}

	totals := map[int64]*productTotals{}
	for m, err := range uc.movRepo.FindByTenantAndDateRange(ctx, tenantID, f.StartDate, f.EndDate) {
		if err != nil {
			return nil, fmt.Errorf("turnover: %w", err)
		}
		// solo entradas y salidas cuentan para la rotación
		if m.Type != entity.MovementTypeEntry && m.Type != entity.MovementTypeExit {
			continue
		}
		t, ok := totals[m.ProductID]
		if !ok {
			t = &productTotals{}
			totals[m.ProductID] = t
		}
		if m.Type == entity.MovementTypeEntry {
			t.entries += m.Quantity
		} else {
			t.exits += m.Quantity
		}
	}

	products, err := uc.productRepo.GetByIDs(ctx, tenantID, sortedIDs(totals))
	if err != nil {
		return nil, fmt.Errorf("turnover: productos: %w", err)
	}

	start, end := f.bounds()
	report := &dto.StockTurnoverReportDTO{
		StartDate:       start,
		EndDate:         end,
		Products:        make([]dto.TurnoverItemDTO, 0, len(totals)),
		AverageTurnover: decimal.Zero,
		GeneratedAt:     uc.now(),
	}
	sum := decimal.Zero
	for _, id := range sortedIDs(totals) {
		t := totals[id]
		turnover := decimal.NewFromInt(t.exits).Div(decimal.NewFromInt(max(t.entries, 1)))
		sum = sum.Add(turnover)

		item := dto.TurnoverItemDTO{
			ProductID: id,
			Entries:   t.entries,
			Exits:     t.exits,
			Turnover:  turnover.Round(turnoverScale),
		}
		if p, ok := products[id]; ok {
			item.SKU, item.ProductName = p.SKU, p.Name
		}
		report.Products = append(report.Products, item)
		report.TotalEntries += t.entries
		report.TotalExits += t.exits
	}
	if n := len(report.Products); n > 0 {
		report.AverageTurnover = sum.Div(decimal.NewFromInt(int64(n))).Round(turnoverScale)
	}
	return report, nil
}

// GetMostUsedProducts ranking por cantidad consumida (exit) en el rango, descendente;
// empates por product_id ascendente. total_value usa el precio vigente del producto.
func (uc *ReportUseCase) GetMostUsedProducts(ctx context.Context, tenantID int64, limit int, f Filters) (*dto.MostUsedProductsReportDTO, error) {
	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultMostUsedLimit
	}

	usage := map[int64]int64{}
	for m, err := range uc.movRepo.FindByTenantAndDateRange(ctx, tenantID, f.StartDate, f.EndDate) {
		if err != nil {
			return nil, fmt.Errorf("most used: %w", err)
		}
		if m.Type == entity.MovementTypeExit {
			usage[m.ProductID] += m.Quantity
		}
	}

	ranked := make([]int64, 0, len(usage))
	for id := range usage {
		ranked = append(ranked, id)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if usage[a] != usage[b] {
			return usage[a] > usage[b]
		}
		return a < b
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	products, err := uc.productRepo.GetByIDs(ctx, tenantID, ranked)
	if err != nil {
		return nil, fmt.Errorf("most used: productos: %w", err)
	}

	start, end := f.bounds()
	report := &dto.MostUsedProductsReportDTO{
		StartDate:   start,
		EndDate:     end,
		Limit:       limit,
		Products:    make([]dto.MostUsedProductDTO, 0, len(ranked)),
		GeneratedAt: uc.now(),
	}
	for _, id := range ranked {
		item := dto.MostUsedProductDTO{
			ProductID:  id,
			TotalUsage: usage[id],
			UnitPrice:  decimal.Zero,
			TotalValue: decimal.Zero,
		}
		if p, ok := products[id]; ok {
			item.SKU, item.ProductName = p.SKU, p.Name
			item.UnitPrice = p.Price
			item.TotalValue = p.Price.Mul(decimal.NewFromInt(item.TotalUsage)).Round(2)
		} else {
			uc.log.Warn().Int64("tenant_id", tenantID).Int64("product_id", id).
				Msg("producto sin precio en catálogo; total_value en cero")
		}
		report.Products = append(report.Products, item)
	}
	return report, nil
}

// GetStockAlerts registros con disponible bajo el mínimo (low) o físico sobre el máximo (over).
// Un límite en cero no genera alertas.
func (uc *ReportUseCase) GetStockAlerts(ctx context.Context, tenantID int64) ([]dto.StockAlertDTO, error) {
	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}
	records, err := uc.stockRepo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("alerts: %w", err)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ProductID < records[j].ProductID })

	var flagged []*entity.StockRecord
	var statuses [][]string
	ids := []int64{}
	for _, r := range records {
		var st []string
		if r.MinQuantity > 0 && r.AvailableQuantity() < r.MinQuantity {
			st = append(st, dto.StockAlertLow)
		}
		if r.MaxQuantity > 0 && r.Quantity > r.MaxQuantity {
			st = append(st, dto.StockAlertOver)
		}
		if len(st) == 0 {
			continue
		}
		flagged = append(flagged, r)
		statuses = append(statuses, st)
		ids = append(ids, r.ProductID)
	}

	alerts := []dto.StockAlertDTO{}
	if len(flagged) == 0 {
		return alerts, nil
	}
	products, err := uc.productRepo.GetByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("alerts: productos: %w", err)
	}
	for i, r := range flagged {
		for _, st := range statuses[i] {
			a := dto.StockAlertDTO{
				ProductID:         r.ProductID,
				Quantity:          r.Quantity,
				ReservedQuantity:  r.ReservedQuantity,
				AvailableQuantity: r.AvailableQuantity(),
				MinQuantity:       r.MinQuantity,
				MaxQuantity:       r.MaxQuantity,
				Status:            st,
			}
			if p, ok := products[r.ProductID]; ok {
				a.SKU, a.ProductName = p.SKU, p.Name
			}
			alerts = append(alerts, a)
		}
	}
	return alerts, nil
}

// ReconcileProduct reconstruye los contadores desde el historial completo y los compara
// con el registro guardado. Consistent exige cadena previous/current íntegra y contadores iguales.
func (uc *ReportUseCase) ReconcileProduct(ctx context.Context, tenantID, productID int64) (*dto.ReconciliationDTO, error) {
	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}
	if productID <= 0 {
		return nil, fmt.Errorf("%w: product_id es obligatorio", domain.ErrInvalidArgument)
	}
	rec, err := uc.stockRepo.Get(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}
	res, err := ledger.Replay(uc.movRepo.FindByProductAndDateRange(ctx, tenantID, productID, time.Time{}, time.Time{}))
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	out := &dto.ReconciliationDTO{
		ProductID:                productID,
		StoredQuantity:           rec.Quantity,
		StoredReservedQuantity:   rec.ReservedQuantity,
		ReplayedQuantity:         res.Quantity,
		ReplayedReservedQuantity: res.ReservedQuantity,
		Movements:                res.Movements,
		Entries:                  res.Entries,
		Exits:                    res.Exits,
		Returns:                  res.Returns,
		Adjustments:              res.Adjustments,
		Breaks:                   make([]dto.ChainBreakDTO, 0, len(res.Breaks)),
	}
	for _, b := range res.Breaks {
		out.Breaks = append(out.Breaks, dto.ChainBreakDTO{
			MovementID:       b.MovementID,
			Type:             b.Type,
			ExpectedPrevious: b.ExpectedPrevious,
			PreviousQuantity: b.PreviousQuantity,
			CurrentQuantity:  b.CurrentQuantity,
		})
	}
	out.Consistent = res.Consistent() &&
		res.Quantity == rec.Quantity &&
		res.ReservedQuantity == rec.ReservedQuantity
	if !out.Consistent {
		uc.log.Warn().Int64("tenant_id", tenantID).Int64("product_id", productID).
			Int("breaks", len(res.Breaks)).
			Int64("stored_quantity", rec.Quantity).Int64("replayed_quantity", res.Quantity).
			Msg("registro de stock no concilia con el libro")
	}
	return out, nil
}

func validateTenant(tenantID int64) error {
	if tenantID <= 0 {
		return fmt.Errorf("%w: tenant_id es obligatorio", domain.ErrInvalidArgument)
	}
	return nil
}

func sortedIDs[V any](m map[int64]V) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
