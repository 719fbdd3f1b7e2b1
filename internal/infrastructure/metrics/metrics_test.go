package metrics

import (
	"testing"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveOperation_CuentaPorResultado(t *testing.T) {
	m := New("test")

	m.ObserveOperation("consume", domain.KindNone, 2*time.Millisecond)
	m.ObserveOperation("consume", domain.KindInsufficientStock, time.Millisecond)
	m.ObserveOperation("consume", domain.KindInsufficientStock, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("consume", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("consume", string(domain.KindInsufficientStock))))
}

func TestObserveLockWait(t *testing.T) {
	m := New("")
	m.ObserveLockWait(3 * time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(m.LockWaitDuration))
}

func TestObserveRequest(t *testing.T) {
	m := New("test")
	m.ObserveRequest("POST", "/api/stock/:product_id/consume", 409)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/stock/:product_id/consume", "409")))
}
