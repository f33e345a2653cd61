package master

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-wheelcal/fieldbus"
	"github.com/arloliu/go-wheelcal/logger"
)

const (
	cyclicTaskName  = "cyclic"
	monitorTaskName = "monitor"
	statusTaskName  = "status"
)

// ErrNotOperational indicates that the session has not reached full OPERATIONAL.
var ErrNotOperational = errors.New("session is not operational")

// Session is a fieldbus master session driving one calibration target.
type Session struct {
	cfg       *Config
	logger    logger.Logger
	transport fieldbus.Transport
	dir       *fieldbus.Directory
	target    int

	// busMu serializes every driver call: the cyclic exchange, parameter access and state requests.
	busMu sync.Mutex

	image       *fieldbus.ProcessImage
	positions   []int
	slaves      *xsync.MapOf[int, fieldbus.Slave]
	expectedWKC int
	actualWKC   atomic.Int64

	inOperation atomic.Bool // loops are running
	checkNeeded atomic.Bool // set by the cyclic loop, consumed by the fault monitor
	operational atomic.Bool // every slave reported OPERATIONAL during bring-up

	taskMgr *fieldbus.TaskManager
	phase   atomicPhase

	// owned by the fault monitor goroutine
	noneSeen    map[int]bool
	wkcMismatch bool // owned by the cyclic goroutine

	opened       atomic.Bool
	closed       atomic.Bool
	calibrated   atomic.Bool
	shutdownOnce sync.Once

	metrics Metrics
}

// ensure Session implements fieldbus.Device interface.
var _ fieldbus.Device = (*Session)(nil)

// NewSession creates a master session for transport with the given slave directory and calibration target.
//
// ctx is the parent context of the background loops.
func NewSession(ctx context.Context, transport fieldbus.Transport, dir *fieldbus.Directory, target int, opts ...Option) (*Session, error) {
	if transport == nil {
		return nil, errors.New("transport is nil")
	}
	if dir == nil {
		return nil, errors.New("slave directory is nil")
	}
	if _, ok := dir.Lookup(target); !ok {
		return nil, fmt.Errorf("%w: calibration target %d is not in the directory", fieldbus.ErrSlaveMismatch, target)
	}

	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	l := cfg.logger.With("component", "master", "target", target)

	return &Session{
		cfg:       cfg,
		logger:    l,
		transport: transport,
		dir:       dir,
		target:    target,
		slaves:    xsync.NewMapOf[int, fieldbus.Slave](),
		taskMgr:   fieldbus.NewTaskManager(ctx, l),
		noneSeen:  make(map[int]bool),
	}, nil
}

// Run opens iface, brings the bus up, runs proc and shuts the session down.
// The first failure is returned; shutdown always runs.
func (s *Session) Run(ctx context.Context, iface string, proc Procedure) error {
	defer s.Shutdown()

	if err := s.Open(iface); err != nil {
		return err
	}

	if err := s.BringUp(ctx); err != nil {
		return err
	}

	return s.RunCalibration(ctx, proc)
}

// Open binds the driver to the network interface iface.
func (s *Session) Open(iface string) error {
	if s.closed.Load() {
		return fieldbus.ErrSessionClosed
	}

	s.logger.Info("open bus", "interface", iface)

	s.busMu.Lock()
	err := s.transport.Open(iface)
	s.busMu.Unlock()

	if err != nil {
		s.logger.Error("failed to open bus", "interface", iface, "error", err)
		s.phase.Set(PhaseFailed)
		return fieldbus.NewTransportError("open", err)
	}
	s.opened.Store(true)

	return nil
}

// Shutdown stops both loops, requests INIT on every slave and closes the driver.
//
// It runs once; later calls are no-ops. Failures are logged and never returned, so the error that led
// to the shutdown stays the one reported. A succeeded or failed phase is kept as the final phase,
// any other phase becomes PhaseShutdown.
func (s *Session) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.logger.Info("shutdown session")
		s.closed.Store(true)
		s.inOperation.Store(false)
		s.operational.Store(false)

		for _, name := range []string{cyclicTaskName, monitorTaskName, statusTaskName} {
			if s.taskMgr.IsRunning(name) {
				_ = s.taskMgr.Stop(name)
			}
		}
		s.taskMgr.StopAll()
		s.waitTasks()

		s.busMu.Lock()
		if err := s.transport.WriteState(fieldbus.AllSlaves, fieldbus.StateInit); err != nil {
			s.logger.Error("failed to request INIT state", "error", err)
		}
		if err := s.transport.Close(); err != nil {
			s.logger.Error("failed to close bus", "error", err)
		}
		s.busMu.Unlock()

		s.opened.Store(false)
		if !s.phase.Get().IsTerminal() {
			s.phase.Set(PhaseShutdown)
		}

		if s.cfg.exporter != nil {
			if err := s.cfg.exporter.Export(s.Snapshot()); err != nil {
				s.logger.Warn("failed to export final session status", "error", err)
			}
		}
		s.logger.Info("session closed", "phase", s.phase.Get())
	})
}

// waitTasks joins the loops, giving up after the shutdown timeout.
func (s *Session) waitTasks() {
	done := make(chan struct{})
	go func() {
		s.taskMgr.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Debug("all loops terminated")
	case <-time.After(s.cfg.shutdownTimeout):
		s.logger.Error("timeout waiting for loops to terminate", "timeout", s.cfg.shutdownTimeout)
	}
}

// Target returns the bus position of the calibration target.
func (s *Session) Target() int { return s.target }

// Phase returns the lifecycle phase of the session.
func (s *Session) Phase() Phase { return s.phase.Get() }

// Metrics returns the metrics of the session.
func (s *Session) Metrics() *Metrics { return &s.metrics }

// ExpectedWKC returns the working counter of a healthy cycle.
func (s *Session) ExpectedWKC() int { return s.expectedWKC }

// ActualWKC returns the working counter of the last cycle.
func (s *Session) ActualWKC() int { return int(s.actualWKC.Load()) }

// CheckNeeded returns if the fault monitor has a pending check.
func (s *Session) CheckNeeded() bool { return s.checkNeeded.Load() }

// InOperation returns if the background loops are running.
func (s *Session) InOperation() bool { return s.inOperation.Load() }

// Slaves returns a snapshot of the slave table ordered by position.
func (s *Session) Slaves() []fieldbus.Slave {
	out := make([]fieldbus.Slave, 0, len(s.positions))
	for _, pos := range s.positions {
		if slave, ok := s.slaves.Load(pos); ok {
			out = append(out, slave)
		}
	}

	return out
}

// Position implements fieldbus.Device.
func (s *Session) Position() int { return s.target }

// Outputs implements fieldbus.Device. It returns a copy of the target's output buffer.
func (s *Session) Outputs() ([]byte, error) {
	if s.image == nil {
		return nil, ErrNotOperational
	}
	return s.image.Outputs(s.target)
}

// SetOutputs implements fieldbus.Device. The cyclic loop transmits buf from its next tick on.
func (s *Session) SetOutputs(buf []byte) error {
	if s.image == nil {
		return ErrNotOperational
	}
	return s.image.SetOutputs(s.target, buf)
}

// Inputs returns a copy of the target's input buffer from the last cycle.
func (s *Session) Inputs() ([]byte, error) {
	if s.image == nil {
		return nil, ErrNotOperational
	}
	return s.image.Inputs(s.target)
}

// ReadParam implements fieldbus.Device for the calibration target.
func (s *Session) ReadParam(ctx context.Context, index uint16, subIndex uint8) ([]byte, error) {
	return s.readParam(ctx, s.target, index, subIndex)
}

// WriteParam implements fieldbus.Device for the calibration target.
func (s *Session) WriteParam(ctx context.Context, index uint16, subIndex uint8, data []byte) error {
	return s.writeParam(ctx, s.target, index, subIndex, data)
}

func (s *Session) readParam(ctx context.Context, slave int, index uint16, subIndex uint8) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.busMu.Lock()
	data, err := s.transport.ReadParam(slave, index, subIndex)
	s.busMu.Unlock()

	if err != nil {
		return nil, fieldbus.NewTransportError(fmt.Sprintf("read param 0x%04x:%d of slave %d", index, subIndex, slave), err)
	}

	return data, nil
}

func (s *Session) writeParam(ctx context.Context, slave int, index uint16, subIndex uint8, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.busMu.Lock()
	err := s.transport.WriteParam(slave, index, subIndex, data)
	s.busMu.Unlock()

	return fieldbus.NewTransportError(fmt.Sprintf("write param 0x%04x:%d of slave %d", index, subIndex, slave), err)
}

// slaveChannel is the parameter channel of one slave, handed to setup hooks.
type slaveChannel struct {
	s     *Session
	slave int
}

func (c slaveChannel) ReadParam(ctx context.Context, index uint16, subIndex uint8) ([]byte, error) {
	return c.s.readParam(ctx, c.slave, index, subIndex)
}

func (c slaveChannel) WriteParam(ctx context.Context, index uint16, subIndex uint8, data []byte) error {
	return c.s.writeParam(ctx, c.slave, index, subIndex, data)
}

// writeState requests state from slave, or from every slave with fieldbus.AllSlaves.
func (s *Session) writeState(slave int, state fieldbus.State) error {
	s.busMu.Lock()
	defer s.busMu.Unlock()

	return s.transport.WriteState(slave, state)
}

func (s *Session) readState(slave int) (fieldbus.State, error) {
	s.busMu.Lock()
	defer s.busMu.Unlock()

	return s.transport.ReadState(slave)
}

// readStates reads every slave state. The result always has one entry per discovered slave.
func (s *Session) readStates() ([]fieldbus.State, error) {
	s.busMu.Lock()
	states, err := s.transport.ReadStates()
	s.busMu.Unlock()

	if err != nil {
		return nil, err
	}
	if len(states) < len(s.positions) {
		padded := make([]fieldbus.State, len(s.positions))
		copy(padded, states)
		states = padded
	}

	return states, nil
}

// storeStates records states in the slave table without touching the lost flags.
func (s *Session) storeStates(states []fieldbus.State) {
	for _, pos := range s.positions {
		st := states[pos]
		s.slaves.Compute(pos, func(old fieldbus.Slave, loaded bool) (fieldbus.Slave, bool) {
			old.State = st
			return old, !loaded
		})
	}
}

// notOperational returns the positions of the slaves that are not OPERATIONAL.
func (s *Session) notOperational(states []fieldbus.State) []int {
	var out []int
	for _, pos := range s.positions {
		if !states[pos].IsOperational() {
			out = append(out, pos)
		}
	}

	return out
}

func (s *Session) discovered(position int) bool {
	return slices.Contains(s.positions, position)
}
