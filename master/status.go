package master

import (
	"github.com/arloliu/go-wheelcal/fieldbus"
	"github.com/arloliu/go-wheelcal/status"
)

// Snapshot returns the current status of the session as delivered to the status exporter.
func (s *Session) Snapshot() status.Snapshot {
	phase := s.phase.Get()

	states := make([]fieldbus.State, 0, len(s.positions))
	lost := 0
	for _, slave := range s.Slaves() {
		states = append(states, slave.State)
		if slave.Lost {
			lost++
		}
	}
	lowest := fieldbus.LowestState(states)
	actual := s.ActualWKC()

	health := status.HealthUnknown
	switch {
	case phase == PhaseFailed:
		health = status.HealthError
	case !s.inOperation.Load():
	case lost > 0 || actual != s.expectedWKC || !lowest.IsOperational():
		health = status.HealthDegraded
	default:
		health = status.HealthOK
	}

	return status.Snapshot{
		Health:      health,
		Phase:       uint16(phase),
		LowestState: uint16(lowest),
		ExpectedWKC: clampUint16(s.expectedWKC),
		ActualWKC:   clampUint16(actual),
		LostSlaves:  clampUint16(lost),
		Target:      clampUint16(s.target),
	}
}

func (s *Session) statusTask() bool {
	if err := s.cfg.exporter.Export(s.Snapshot()); err != nil {
		s.logger.Debug("failed to export session status", "error", err)
	}

	return true
}

func clampUint16(v int) uint16 {
	switch {
	case v < 0:
		return 0
	case v > 0xffff:
		return 0xffff
	default:
		return uint16(v)
	}
}
