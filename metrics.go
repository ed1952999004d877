package vos

import (
	"sync/atomic"
	"time"
)

func nowFunc() int64 { return time.Now().UnixNano() }

// LatencyBuckets defines the latency histogram buckets in nanoseconds,
// covering from 1us to 10s with logarithmic spacing — a reasonable
// default spread for descriptor I/O latencies.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks operational statistics for a Machine: descriptor-table
// I/O and the Modbus frames its master/slave endpoints process.
type Metrics struct {
	ReadOps  atomic.Uint64
	WriteOps atomic.Uint64

	ReadBytes  atomic.Uint64
	WriteBytes atomic.Uint64

	ReadErrors  atomic.Uint64
	WriteErrors atomic.Uint64

	FramesSent      atomic.Uint64
	FramesReceived  atomic.Uint64
	FramesRejected  atomic.Uint64 // CRC mismatch or resync discard
	RequestTimeouts atomic.Uint64

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(nowFunc())
	return m
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// RecordRead records a descriptor-table read.
func (m *Metrics) RecordRead(bytes, latencyNs uint64, success bool) {
	m.ReadOps.Add(1)
	if success {
		m.ReadBytes.Add(bytes)
	} else {
		m.ReadErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordWrite records a descriptor-table write.
func (m *Metrics) RecordWrite(bytes, latencyNs uint64, success bool) {
	m.WriteOps.Add(1)
	if success {
		m.WriteBytes.Add(bytes)
	} else {
		m.WriteErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordFrameSent records one Modbus PDU transmitted (an initial send or
// a retry both count).
func (m *Metrics) RecordFrameSent() { m.FramesSent.Add(1) }

// RecordFrameReceived records one CRC-valid Modbus frame parsed.
func (m *Metrics) RecordFrameReceived() { m.FramesReceived.Add(1) }

// RecordFrameRejected records a CRC mismatch or other parser resync.
func (m *Metrics) RecordFrameRejected() { m.FramesRejected.Add(1) }

// RecordRequestTimeout records a master request that exhausted its
// retry budget without a reply.
func (m *Metrics) RecordRequestTimeout() { m.RequestTimeouts.Add(1) }

// Stop marks the Machine as stopped for uptime accounting.
func (m *Metrics) Stop() { m.StopTime.Store(nowFunc()) }

// Snapshot is a point-in-time copy of Metrics safe to read without races.
type Snapshot struct {
	ReadOps, WriteOps               uint64
	ReadBytes, WriteBytes           uint64
	ReadErrors, WriteErrors         uint64
	FramesSent, FramesReceived      uint64
	FramesRejected, RequestTimeouts uint64
	AvgLatencyNs                    uint64
	UptimeNs                        uint64
	LatencyHistogram                [numLatencyBuckets]uint64
	TotalOps                        uint64
	ErrorRate                       float64
}

// Snapshot computes a Snapshot from the live counters.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		ReadOps:         m.ReadOps.Load(),
		WriteOps:        m.WriteOps.Load(),
		ReadBytes:       m.ReadBytes.Load(),
		WriteBytes:      m.WriteBytes.Load(),
		ReadErrors:      m.ReadErrors.Load(),
		WriteErrors:     m.WriteErrors.Load(),
		FramesSent:      m.FramesSent.Load(),
		FramesReceived:  m.FramesReceived.Load(),
		FramesRejected:  m.FramesRejected.Load(),
		RequestTimeouts: m.RequestTimeouts.Load(),
	}
	s.TotalOps = s.ReadOps + s.WriteOps

	opCount := m.OpCount.Load()
	if opCount > 0 {
		s.AvgLatencyNs = m.TotalLatencyNs.Load() / opCount
	}

	start, stop := m.StartTime.Load(), m.StopTime.Load()
	if stop > 0 {
		s.UptimeNs = uint64(stop - start)
	} else {
		s.UptimeNs = uint64(nowFunc() - start)
	}

	totalErrors := s.ReadErrors + s.WriteErrors
	if s.TotalOps > 0 {
		s.ErrorRate = float64(totalErrors) / float64(s.TotalOps) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		s.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}
	return s
}

// Reset zeroes every counter, for test isolation.
func (m *Metrics) Reset() {
	*m = Metrics{}
	m.StartTime.Store(nowFunc())
}

// Observer lets components report activity without depending on the
// concrete Metrics type — a pluggable-sink pattern so a caller can
// substitute its own collector without touching anything that calls
// ObserveX.
type Observer interface {
	ObserveRead(bytes, latencyNs uint64, success bool)
	ObserveWrite(bytes, latencyNs uint64, success bool)
	ObserveFrameSent()
	ObserveFrameReceived()
	ObserveFrameRejected()
	ObserveRequestTimeout()
}

// NoOpObserver discards everything, for embedders that don't want the
// bookkeeping overhead.
type NoOpObserver struct{}

func (NoOpObserver) ObserveRead(uint64, uint64, bool)  {}
func (NoOpObserver) ObserveWrite(uint64, uint64, bool) {}
func (NoOpObserver) ObserveFrameSent()                 {}
func (NoOpObserver) ObserveFrameReceived()             {}
func (NoOpObserver) ObserveFrameRejected()             {}
func (NoOpObserver) ObserveRequestTimeout()            {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver builds an Observer backed by m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveRead(bytes, latencyNs uint64, success bool) {
	o.metrics.RecordRead(bytes, latencyNs, success)
}
func (o *MetricsObserver) ObserveWrite(bytes, latencyNs uint64, success bool) {
	o.metrics.RecordWrite(bytes, latencyNs, success)
}
func (o *MetricsObserver) ObserveFrameSent()      { o.metrics.RecordFrameSent() }
func (o *MetricsObserver) ObserveFrameReceived()  { o.metrics.RecordFrameReceived() }
func (o *MetricsObserver) ObserveFrameRejected()  { o.metrics.RecordFrameRejected() }
func (o *MetricsObserver) ObserveRequestTimeout() { o.metrics.RecordRequestTimeout() }

var (
	_ Observer = (*MetricsObserver)(nil)
	_ Observer = NoOpObserver{}
)
