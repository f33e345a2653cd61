package master

import (
	"sync/atomic"
)

// Metrics contains atomic counters of a master session.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// CycleCount indicates the number of process data exchanges.
	CycleCount atomic.Uint64
	// ExchangeErrCount indicates the number of exchanges the driver failed.
	ExchangeErrCount atomic.Uint64
	// WKCMismatchCount indicates the number of cycles whose working counter differed from the expected one.
	WKCMismatchCount atomic.Uint64

	// MonitorPassCount indicates the number of fault monitor passes.
	MonitorPassCount atomic.Uint64
	// RecoveryActionCount indicates the number of recovery requests sent to faulted slaves.
	RecoveryActionCount atomic.Uint64
	// LostSlaveCount indicates the number of times a slave was marked lost.
	LostSlaveCount atomic.Uint64
}

func (m *Metrics) incCycleCount() {
	m.CycleCount.Add(1)
}

func (m *Metrics) incExchangeErrCount() {
	m.ExchangeErrCount.Add(1)
}

func (m *Metrics) incWKCMismatchCount() {
	m.WKCMismatchCount.Add(1)
}

func (m *Metrics) incMonitorPassCount() {
	m.MonitorPassCount.Add(1)
}

func (m *Metrics) incRecoveryActionCount() {
	m.RecoveryActionCount.Add(1)
}

func (m *Metrics) incLostSlaveCount() {
	m.LostSlaveCount.Add(1)
}
