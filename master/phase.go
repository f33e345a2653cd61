package master

import "sync/atomic"

// Phase is the lifecycle phase of a session.
type Phase uint32

const (
	PhaseIdle Phase = iota
	PhaseBringUp
	PhaseOperational
	PhaseCalibrating
	PhaseSucceeded
	PhaseFailed
	PhaseShutdown
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseBringUp:
		return "bring-up"
	case PhaseOperational:
		return "operational"
	case PhaseCalibrating:
		return "calibrating"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	case PhaseShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether p is the outcome of a finished session: PhaseSucceeded, PhaseFailed or PhaseShutdown.
func (p Phase) IsTerminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed || p == PhaseShutdown
}

type atomicPhase struct {
	phase atomic.Uint32
}

func (ap *atomicPhase) Get() Phase { return Phase(ap.phase.Load()) }

func (ap *atomicPhase) Set(p Phase) { ap.phase.Store(uint32(p)) }
