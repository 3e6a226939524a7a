package memsim

import (
	"sync"
	"sync/atomic"

	"github.com/rcolburn/memsim/internal/interfaces"
)

// LatencyBuckets defines the completion-latency histogram buckets, in
// cycles. Buckets cover a JEDEC CiM op's compute delay (CiM_Add_Delay=100)
// up through an HMC round-trip under backpressure.
var LatencyBuckets = []uint64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 5000}

const numLatencyBuckets = 11

// Metrics accumulates completion counts, per-stage queue/age samples, and
// a latency histogram, and satisfies interfaces.Observer directly so it
// can be handed straight to any dispatcher variant's constructor.
type Metrics struct {
	ReadCompletions atomic.Uint64
	WriteCompletions atomic.Uint64

	TotalLatencyCycles atomic.Uint64
	OpCount             atomic.Uint64
	LatencyHistogram     [numLatencyBuckets]atomic.Uint64

	cimMu    sync.Mutex
	cimStats map[string]*cimStat

	stageMu    sync.Mutex
	queueDepth map[string]*stageStat
	age        map[string]*stageStat
}

type cimStat struct {
	count     uint64
	deltaSum  uint64
	lastDelta uint64
}

type stageStat struct {
	sum   uint64
	count uint64
	max   int
}

// NewMetrics constructs an empty Metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		cimStats:   make(map[string]*cimStat),
		queueDepth: make(map[string]*stageStat),
		age:        make(map[string]*stageStat),
	}
}

// ObserveCompletion implements interfaces.Observer: tallies a plain
// read/write completion and its latency.
func (m *Metrics) ObserveCompletion(kind interfaces.CompletionKind, latencyCycles uint64) {
	switch kind {
	case interfaces.CompletionRead:
		m.ReadCompletions.Add(1)
	case interfaces.CompletionWrite:
		m.WriteCompletions.Add(1)
	}
	m.recordLatency(latencyCycles)
}

// ObserveCiMComplete implements interfaces.Observer: tallies a terminal
// CiM op completion by name (e.g. "CiM_Add").
func (m *Metrics) ObserveCiMComplete(op string, latencyCycles uint64) {
	m.cimMu.Lock()
	defer m.cimMu.Unlock()
	s, ok := m.cimStats[op]
	if !ok {
		s = &cimStat{}
		m.cimStats[op] = s
	}
	s.count++
	s.deltaSum += latencyCycles
	s.lastDelta = latencyCycles
	m.recordLatency(latencyCycles)
}

// ObserveQueueDepth implements interfaces.Observer: records one queue
// depth sample for the named stage (e.g. "link", "quad").
func (m *Metrics) ObserveQueueDepth(stage string, depth int) {
	m.stageMu.Lock()
	defer m.stageMu.Unlock()
	s, ok := m.queueDepth[stage]
	if !ok {
		s = &stageStat{}
		m.queueDepth[stage] = s
	}
	s.sum += uint64(depth)
	s.count++
	if depth > s.max {
		s.max = depth
	}
}

// ObserveAge implements interfaces.Observer: records one arbitration-age
// sample for the named stage.
func (m *Metrics) ObserveAge(stage string, age int) {
	m.stageMu.Lock()
	defer m.stageMu.Unlock()
	s, ok := m.age[stage]
	if !ok {
		s = &stageStat{}
		m.age[stage] = s
	}
	s.sum += uint64(age)
	s.count++
	if age > s.max {
		s.max = age
	}
}

func (m *Metrics) recordLatency(latencyCycles uint64) {
	m.TotalLatencyCycles.Add(latencyCycles)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyCycles <= bucket {
			m.LatencyHistogram[i].Add(1)
		}
	}
}

// CiMStatsSnapshot is a point-in-time view of one CiM op's completion
// stats.
type CiMStatsSnapshot struct {
	Count        uint64
	MeanCycles   uint64
	LastCycles   uint64
}

// StageStatsSnapshot is a point-in-time view of one crossbar stage's
// depth or age samples.
type StageStatsSnapshot struct {
	MeanSamples float64
	Max         int
	Samples     uint64
}

// MetricsSnapshot is a point-in-time snapshot of the accumulated metrics.
type MetricsSnapshot struct {
	ReadCompletions  uint64
	WriteCompletions uint64
	TotalOps         uint64
	AvgLatencyCycles uint64
	LatencyHistogram [numLatencyBuckets]uint64

	CiM   map[string]CiMStatsSnapshot
	Queue map[string]StageStatsSnapshot
	Age   map[string]StageStatsSnapshot
}

// Snapshot returns a point-in-time snapshot of every accumulated metric.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		ReadCompletions:  m.ReadCompletions.Load(),
		WriteCompletions: m.WriteCompletions.Load(),
		CiM:              make(map[string]CiMStatsSnapshot),
		Queue:            make(map[string]StageStatsSnapshot),
		Age:              make(map[string]StageStatsSnapshot),
	}
	snap.TotalOps = snap.ReadCompletions + snap.WriteCompletions

	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyCycles = m.TotalLatencyCycles.Load() / opCount
	}
	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyHistogram[i].Load()
	}

	m.cimMu.Lock()
	for name, s := range m.cimStats {
		mean := uint64(0)
		if s.count > 0 {
			mean = s.deltaSum / s.count
		}
		snap.CiM[name] = CiMStatsSnapshot{Count: s.count, MeanCycles: mean, LastCycles: s.lastDelta}
	}
	m.cimMu.Unlock()

	m.stageMu.Lock()
	for stage, s := range m.queueDepth {
		mean := 0.0
		if s.count > 0 {
			mean = float64(s.sum) / float64(s.count)
		}
		snap.Queue[stage] = StageStatsSnapshot{MeanSamples: mean, Max: s.max, Samples: s.count}
	}
	for stage, s := range m.age {
		mean := 0.0
		if s.count > 0 {
			mean = float64(s.sum) / float64(s.count)
		}
		snap.Age[stage] = StageStatsSnapshot{MeanSamples: mean, Max: s.max, Samples: s.count}
	}
	m.stageMu.Unlock()

	return snap
}

// Reset zeroes every accumulated metric.
func (m *Metrics) Reset() {
	m.ReadCompletions.Store(0)
	m.WriteCompletions.Store(0)
	m.TotalLatencyCycles.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyHistogram[i].Store(0)
	}

	m.cimMu.Lock()
	m.cimStats = make(map[string]*cimStat)
	m.cimMu.Unlock()

	m.stageMu.Lock()
	m.queueDepth = make(map[string]*stageStat)
	m.age = make(map[string]*stageStat)
	m.stageMu.Unlock()
}

// NoOpObserver discards every observation; used when the host does not
// want metrics collection.
type NoOpObserver struct{}

func (NoOpObserver) ObserveCompletion(interfaces.CompletionKind, uint64) {}
func (NoOpObserver) ObserveCiMComplete(string, uint64)                   {}
func (NoOpObserver) ObserveQueueDepth(string, int)                       {}
func (NoOpObserver) ObserveAge(string, int)                              {}

var _ interfaces.Observer = (*Metrics)(nil)
var _ interfaces.Observer = (*NoOpObserver)(nil)
