package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetrics_IsolatedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.TransactionsTotal.WithLabelValues("ok").Inc()
	m.TransactionsTotal.WithLabelValues("ok").Inc()
	m.TransactionsTotal.WithLabelValues("err").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TransactionsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransactionsTotal.WithLabelValues("err")))

	count, err := testutil.GatherAndCount(reg, "test_runtime_transactions_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRecordHelpers(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.RPCRequests.WithLabelValues("getSlot", "error"))
	RecordRPCCall("getSlot", 0.01, errors.New("boom"))
	after := testutil.ToFloat64(DefaultMetrics.RPCRequests.WithLabelValues("getSlot", "error"))
	assert.Equal(t, before+1, after)

	UpdateSlot(42)
	assert.Equal(t, 42.0, testutil.ToFloat64(DefaultMetrics.CurrentSlot))

	RecordCommit(3, 0.001, 1700000000)
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(DefaultMetrics.LastCommitTimestamp))
}
