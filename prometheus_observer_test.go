package memsim

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/rcolburn/memsim/internal/interfaces"
)

func TestPrometheusObserverCompletionCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := NewPrometheusObserver(reg)

	o.ObserveCompletion(interfaces.CompletionRead, 4)
	o.ObserveCompletion(interfaces.CompletionRead, 8)
	o.ObserveCompletion(interfaces.CompletionWrite, 2)

	assert.Equal(t, float64(2), testutil.ToFloat64(o.readCompletions))
	assert.Equal(t, float64(1), testutil.ToFloat64(o.writeCompletions))
}

func TestPrometheusObserverCiMCompletions(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := NewPrometheusObserver(reg)

	o.ObserveCiMComplete("CiM_Add", 100)
	o.ObserveCiMComplete("CiM_Add", 98)
	o.ObserveCiMComplete("CiM_Swap", 52)

	assert.Equal(t, float64(2), testutil.ToFloat64(o.cimCompletions.WithLabelValues("CiM_Add")))
	assert.Equal(t, float64(1), testutil.ToFloat64(o.cimCompletions.WithLabelValues("CiM_Swap")))
}

func TestPrometheusObserverQueueDepthAndAge(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := NewPrometheusObserver(reg)

	o.ObserveQueueDepth("link", 3)
	o.ObserveQueueDepth("link", 7)
	o.ObserveAge("quad", 5)

	assert.Equal(t, float64(7), testutil.ToFloat64(o.queueDepth.WithLabelValues("link")),
		"gauge reports last value, not max")
	assert.Equal(t, float64(5), testutil.ToFloat64(o.age.WithLabelValues("quad")))
}

func TestPrometheusObserverSatisfiesObserverInterface(t *testing.T) {
	reg := prometheus.NewRegistry()
	var _ interfaces.Observer = NewPrometheusObserver(reg)
}
