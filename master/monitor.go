package master

import (
	"github.com/arloliu/go-wheelcal/fieldbus"
)

// monitorTask is one tick of the fault monitor loop. It activates only while the loops run and either
// the working counter dropped or the cyclic loop requested a check.
func (s *Session) monitorTask() bool {
	if !s.inOperation.Load() {
		return true
	}

	if s.actualWKC.Load() < int64(s.expectedWKC) || s.checkNeeded.Load() {
		s.checkSlaves()
	}

	return true
}

// checkSlaves runs one recovery pass over every slave.
//
// For each slave that is not OPERATIONAL, in order:
//  1. SAFEOP or OP with ERROR: acknowledge and request OP.
//  2. SAFEOP: request OP.
//  3. any other answering state: reconfigure the slave, success clears the lost flag.
//  4. NONE and not lost: re-poll; NONE on two consecutive passes marks the slave lost.
//
// Then, for a slave that was lost before the pass: if it still does not answer, try to recover
// its address; once it answers again the lost flag is cleared.
func (s *Session) checkSlaves() {
	s.metrics.incMonitorPassCount()
	s.checkNeeded.Store(false)

	states, err := s.readStates()
	if err != nil {
		s.logger.Warn("fault monitor failed to read slave states", "error", err)
		s.checkNeeded.Store(true)
		return
	}

	degraded := false
	for _, pos := range s.positions {
		slave, ok := s.slaves.Load(pos)
		if !ok {
			continue
		}
		slave.State = states[pos]
		wasLost := slave.Lost

		if !slave.State.IsNone() {
			delete(s.noneSeen, pos)
		}

		if !slave.State.IsOperational() {
			degraded = true
			s.recoverSlave(&slave, wasLost)
		}

		if wasLost {
			s.recoverLost(&slave)
		}

		s.slaves.Compute(pos, func(old fieldbus.Slave, _ bool) (fieldbus.Slave, bool) {
			old.State = slave.State
			old.Lost = slave.Lost
			return old, false
		})
	}

	if degraded {
		s.checkNeeded.Store(true)
		return
	}

	s.logger.Info("all slaves resumed OPERATIONAL")
}

func (s *Session) recoverSlave(slave *fieldbus.Slave, wasLost bool) {
	pos := slave.Position
	st := slave.State
	base := st.Base()

	switch {
	case st.HasError() && (base == fieldbus.StateSafeOp || base == fieldbus.StateOp):
		s.logger.Warn("slave in error state, acknowledging", "position", pos, "state", st)
		s.requestRecovery(pos, fieldbus.StateOp|fieldbus.StateAck)

	case st == fieldbus.StateSafeOp:
		s.logger.Warn("slave in SAFEOP, change to OP", "position", pos)
		s.requestRecovery(pos, fieldbus.StateOp)

	case !st.IsNone():
		s.metrics.incRecoveryActionCount()
		if err := s.reconfigure(pos); err != nil {
			s.logger.Warn("failed to reconfigure slave", "position", pos, "state", st, "error", err)
			return
		}
		slave.Lost = false
		s.logger.Info("slave reconfigured", "position", pos)

	case !wasLost:
		again, err := s.readState(pos)
		if err != nil {
			s.logger.Debug("failed to re-poll slave", "position", pos, "error", err)
			again = fieldbus.StateNone
		}
		slave.State = again

		if !again.IsNone() {
			delete(s.noneSeen, pos)
			return
		}
		if !s.noneSeen[pos] {
			s.noneSeen[pos] = true
			return
		}

		delete(s.noneSeen, pos)
		slave.Lost = true
		s.metrics.incLostSlaveCount()
		s.logger.Error("slave lost", "position", pos, "name", slave.Name)
	}
}

func (s *Session) recoverLost(slave *fieldbus.Slave) {
	pos := slave.Position

	if !slave.State.IsNone() {
		slave.Lost = false
		s.logger.Info("slave found", "position", pos, "state", slave.State)
		return
	}

	s.metrics.incRecoveryActionCount()
	if err := s.recoverAddress(pos); err != nil {
		s.logger.Debug("failed to recover lost slave", "position", pos, "error", err)
		return
	}

	slave.Lost = false
	s.logger.Info("slave recovered", "position", pos)
}

func (s *Session) requestRecovery(pos int, state fieldbus.State) {
	s.metrics.incRecoveryActionCount()
	if err := s.writeState(pos, state); err != nil {
		s.logger.Warn("failed to request slave state", "position", pos, "state", state, "error", err)
	}
}

func (s *Session) reconfigure(pos int) error {
	s.busMu.Lock()
	defer s.busMu.Unlock()

	return s.transport.Reconfigure(pos, s.cfg.recoveryTimeout)
}

func (s *Session) recoverAddress(pos int) error {
	s.busMu.Lock()
	defer s.busMu.Unlock()

	return s.transport.Recover(pos, s.cfg.recoveryTimeout)
}
