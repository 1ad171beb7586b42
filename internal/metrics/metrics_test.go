package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { MustRegister(reg) })

	DocumentsTotal.WithLabelValues("send", "succeeded").Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(DocumentsTotal.WithLabelValues("send", "succeeded")))

	// a second registration of the same collectors is rejected
	assert.Panics(t, func() { MustRegister(reg) })
}
