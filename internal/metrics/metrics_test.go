package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordsOnInjectedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.MessagesSent.Inc()
	m.IncrementReceived("communication")
	m.IncrementReceived("communication")
	m.IncrementProtocolError("INVALID_STRUCTURE")
	m.ObserveHandler("emitter", time.Now(), errors.New("boom"))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.MessagesSent))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.MessagesReceived.WithLabelValues("communication")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ProtocolErrors.WithLabelValues("INVALID_STRUCTURE")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "xfiber_handler_duration_seconds")
}

func TestMetrics_NilRegistererStaysUnregistered(t *testing.T) {
	first := New(nil)
	second := New(nil)
	first.MessagesQueued.Inc()
	assert.Equal(t, float64(0), testutil.ToFloat64(second.MessagesQueued))
}
