package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// parseProducts lee filas id,sku,nombre,precio. Una primera fila cuyo id no es numérico se toma como encabezado.
func parseProducts(r io.Reader, tenantID int64, now time.Time) ([]*entity.Product, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	cr.TrimLeadingSpace = true

	var out []*entity.Product
	seen := make(map[int64]int)
	for line := 1; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		id, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("línea %d: id inválido %q", line, row[0])
		}
		if id <= 0 {
			return nil, fmt.Errorf("línea %d: id debe ser positivo", line)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(row[3]))
		if err != nil || price.IsNegative() {
			return nil, fmt.Errorf("línea %d: precio inválido %q", line, row[3])
		}
		p := &entity.Product{
			ID:        id,
			TenantID:  tenantID,
			SKU:       strings.TrimSpace(row[1]),
			Name:      strings.TrimSpace(row[2]),
			Price:     price,
			UpdatedAt: now,
		}
		// la última fila gana
		if i, ok := seen[id]; ok {
			out[i] = p
			continue
		}
		seen[id] = len(out)
		out = append(out, p)
	}
	return out, nil
}
