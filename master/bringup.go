package master

import (
	"context"
	"fmt"
	"time"

	"github.com/arloliu/go-wheelcal/fieldbus"
	"github.com/arloliu/go-wheelcal/internal/pool"
)

// BringUp walks the bus from discovery to full OPERATIONAL.
//
// The sequence is: discover and validate the slaves against the directory, run the target's setup hook,
// map the process image, request SAFEOP and wait for it, prime the outputs with one exchange, request OP,
// start the cyclic exchange and fault monitor loops, then poll until every slave reports OPERATIONAL or
// the retry budget is spent.
//
// On failure the loops may still be running; the caller must call Shutdown.
func (s *Session) BringUp(ctx context.Context) error {
	if !s.opened.Load() {
		return fmt.Errorf("bring-up: %w", fieldbus.ErrSessionClosed)
	}
	s.phase.Set(PhaseBringUp)

	if err := s.discover(ctx); err != nil {
		s.phase.Set(PhaseFailed)
		return err
	}

	if err := s.mapImage(); err != nil {
		s.phase.Set(PhaseFailed)
		return err
	}

	if err := s.requestState(ctx, fieldbus.StateSafeOp); err != nil {
		s.phase.Set(PhaseFailed)
		return err
	}

	// outputs must carry valid data before slaves accept OP
	if _, err := s.exchange(); err != nil {
		s.logger.Warn("failed to prime process data", "error", err)
	}

	s.logger.Info("request OP state")
	if err := s.writeState(fieldbus.AllSlaves, fieldbus.StateOp); err != nil {
		s.phase.Set(PhaseFailed)
		return fieldbus.NewTransportError("request OP", err)
	}

	if err := s.startLoops(); err != nil {
		s.phase.Set(PhaseFailed)
		return err
	}

	if err := s.waitOperational(ctx); err != nil {
		s.phase.Set(PhaseFailed)
		return err
	}

	s.operational.Store(true)
	s.phase.Set(PhaseOperational)

	return nil
}

// discover enumerates the slaves, checks them against the directory and runs the target's setup hook.
func (s *Session) discover(ctx context.Context) error {
	s.busMu.Lock()
	infos, err := s.transport.Discover()
	s.busMu.Unlock()

	if err != nil {
		return fieldbus.NewTransportError("discover", err)
	}
	if len(infos) == 0 {
		return fieldbus.ErrNoSlavesFound
	}
	s.logger.Info("slaves discovered", "count", len(infos))

	positions := make([]int, 0, len(infos))
	for _, info := range infos {
		entry, err := s.dir.Check(info)
		if err != nil {
			s.logger.Error("unexpected slave", "position", info.Position, "name", info.Name, "error", err)
			return err
		}

		s.logger.Debug("slave matched", "position", info.Position, "name", info.Name, "kind", entry.Kind, "revision", info.Revision)

		if info.Position == s.target && entry.Setup != nil {
			s.logger.Info("setup calibration target", "position", info.Position, "kind", entry.Kind)
			if err := entry.Setup(ctx, slaveChannel{s: s, slave: info.Position}, info); err != nil {
				return fmt.Errorf("setup slave %d: %w", info.Position, err)
			}
		}

		s.slaves.Store(info.Position, fieldbus.Slave{
			SlaveInfo: info,
			Kind:      entry.Kind,
			State:     fieldbus.StatePreOp,
		})
		positions = append(positions, info.Position)
	}
	s.positions = positions

	if !s.discovered(s.target) {
		return fmt.Errorf("%w: calibration target %d was not discovered", fieldbus.ErrSlaveMismatch, s.target)
	}

	return nil
}

func (s *Session) mapImage() error {
	s.busMu.Lock()
	layout, err := s.transport.MapProcessImage()
	s.busMu.Unlock()

	if err != nil {
		return fieldbus.NewTransportError("map", err)
	}

	s.image = fieldbus.NewProcessImage(layout)
	s.expectedWKC = layout.ExpectedWKC
	s.logger.Info("process image mapped", "slaves", s.image.SlaveCount(), "expected_wkc", s.expectedWKC)

	out, err := s.image.Outputs(s.target)
	if err != nil {
		return fmt.Errorf("%w: calibration target %d has no process data", fieldbus.ErrSlaveMismatch, s.target)
	}
	if len(out) < s.cfg.minTargetOutput {
		s.logger.Error("calibration target output too short", "bytes", len(out), "min", s.cfg.minTargetOutput)
		return fmt.Errorf("%w: calibration target %d maps %d output bytes, need at least %d",
			fieldbus.ErrSlaveMismatch, s.target, len(out), s.cfg.minTargetOutput)
	}
	s.logger.Debug("target output size", "bytes", len(out))

	return nil
}

// requestState requests want on every slave and polls until all of them reach it or the state timeout expires.
func (s *Session) requestState(ctx context.Context, want fieldbus.State) error {
	s.logger.Info("request state", "state", want)
	if err := s.writeState(fieldbus.AllSlaves, want); err != nil {
		return fieldbus.NewTransportError("request "+want.String(), err)
	}

	deadline := time.Now().Add(s.cfg.stateTimeout)
	lowest := fieldbus.StateNone
	for {
		states, err := s.readStates()
		if err != nil {
			return fieldbus.NewTransportError("read states", err)
		}
		s.storeStates(states)

		lowest = fieldbus.LowestState(states[:len(s.positions)])
		if lowest.Reached(want) {
			s.logger.Info("state reached", "state", want)
			return nil
		}

		if !time.Now().Before(deadline) {
			break
		}
		if err := pool.Sleep(ctx, s.cfg.statePollInterval); err != nil {
			return fmt.Errorf("bring-up interrupted waiting for %s: %w", want, err)
		}
	}

	s.logger.Error("state not reached", "state", want, "lowest", lowest, "timeout", s.cfg.stateTimeout)

	return &fieldbus.BringUpTimeoutError{Want: want, Lowest: lowest}
}

// waitOperational polls up to the retry budget for every slave to report OPERATIONAL.
func (s *Session) waitOperational(ctx context.Context) error {
	var (
		pending []int
		readErr error
	)
	for attempt := 1; attempt <= s.cfg.operationalRetries; attempt++ {
		states, err := s.readStates()
		if err != nil {
			s.logger.Warn("failed to read slave states", "attempt", attempt, "error", err)
			readErr = err
		} else {
			readErr = nil
			s.storeStates(states)
			pending = s.notOperational(states)
			if len(pending) == 0 {
				s.logger.Info("operational state reached in all slaves", "attempts", attempt)
				return nil
			}
		}

		if err := pool.Sleep(ctx, s.cfg.operationalPollInterval); err != nil {
			return fmt.Errorf("bring-up interrupted waiting for OP: %w", err)
		}
	}

	for _, pos := range pending {
		if slave, ok := s.slaves.Load(pos); ok {
			s.logger.Error("slave not operational", "position", pos, "name", slave.Name, "state", slave.State)
		}
	}

	if readErr != nil {
		return fmt.Errorf("%w: slave states unreadable after %d retries: %w",
			fieldbus.ErrOperationalTimeout, s.cfg.operationalRetries, fieldbus.NewTransportError("read states", readErr))
	}

	return fmt.Errorf("%w: %d slave(s) pending after %d retries", fieldbus.ErrOperationalTimeout, len(pending), s.cfg.operationalRetries)
}

func (s *Session) startLoops() error {
	s.inOperation.Store(true)

	if err := s.taskMgr.StartInterval(cyclicTaskName, s.cyclicTask, s.cfg.cycleTime, false); err != nil {
		return fmt.Errorf("start cyclic exchange: %w", err)
	}
	if err := s.taskMgr.StartInterval(monitorTaskName, s.monitorTask, s.cfg.monitorInterval, false); err != nil {
		return fmt.Errorf("start fault monitor: %w", err)
	}
	if s.cfg.exporter != nil {
		if err := s.taskMgr.StartInterval(statusTaskName, s.statusTask, s.cfg.exportInterval, true); err != nil {
			return fmt.Errorf("start status export: %w", err)
		}
	}

	return nil
}
