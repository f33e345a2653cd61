package master

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-wheelcal/logger"
	"github.com/arloliu/go-wheelcal/status"
)

// ErrConfigNil indicates that a nil Config was provided.
var ErrConfigNil = errors.New("session config is nil")

// StatusExporter publishes session status snapshots, e.g. into a PLC status block.
type StatusExporter interface {
	Export(snap status.Snapshot) error
}

// Config represents the timing and collaborator configuration of a master session.
type Config struct {
	// cycleTime defines the period of the cyclic process data exchange.
	// Defaults to 10 milliseconds.
	cycleTime time.Duration
	// receiveTimeout bounds the wait for the cyclic frame to return.
	// Defaults to 10 milliseconds.
	receiveTimeout time.Duration
	// monitorInterval defines the period of the fault monitor.
	// Defaults to 10 milliseconds.
	monitorInterval time.Duration

	// stateTimeout bounds the wait for every slave to reach SAFEOP during bring-up.
	// Defaults to 5 seconds.
	stateTimeout time.Duration
	// statePollInterval defines the interval between state reads while waiting for SAFEOP.
	// Defaults to 10 milliseconds.
	statePollInterval time.Duration

	// operationalRetries is the number of state reads spent waiting for every slave to report OPERATIONAL.
	// Defaults to 40.
	operationalRetries int
	// operationalPollInterval defines the interval between those reads.
	// Defaults to 50 milliseconds.
	operationalPollInterval time.Duration

	// recoveryTimeout bounds the reconfiguration and address recovery of one faulted slave.
	// Defaults to 500 milliseconds.
	recoveryTimeout time.Duration

	// shutdownTimeout bounds the wait for the background loops to exit during shutdown.
	// Defaults to 3 seconds.
	shutdownTimeout time.Duration

	// minTargetOutput is the smallest output buffer accepted for the calibration target.
	// Defaults to 1 byte.
	minTargetOutput int

	// exporter receives a status snapshot every exportInterval while the loops run. Optional.
	exporter       StatusExporter
	exportInterval time.Duration

	logger logger.Logger
}

// NewConfig creates a session configuration with default values and applies opts.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		cycleTime:               10 * time.Millisecond,
		receiveTimeout:          10 * time.Millisecond,
		monitorInterval:         10 * time.Millisecond,
		stateTimeout:            5 * time.Second,
		statePollInterval:       10 * time.Millisecond,
		operationalRetries:      40,
		operationalPollInterval: 50 * time.Millisecond,
		recoveryTimeout:         500 * time.Millisecond,
		shutdownTimeout:         3 * time.Second,
		minTargetOutput:         1,
		exportInterval:          time.Second,
		logger:                  logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

func (cfg *Config) CycleTime() time.Duration { return cfg.cycleTime }

func (cfg *Config) ReceiveTimeout() time.Duration { return cfg.receiveTimeout }

func (cfg *Config) MonitorInterval() time.Duration { return cfg.monitorInterval }

func (cfg *Config) StateTimeout() time.Duration { return cfg.stateTimeout }

func (cfg *Config) OperationalRetries() int { return cfg.operationalRetries }

func (cfg *Config) OperationalPollInterval() time.Duration { return cfg.operationalPollInterval }

func (cfg *Config) RecoveryTimeout() time.Duration { return cfg.recoveryTimeout }

func (cfg *Config) MinTargetOutput() int { return cfg.minTargetOutput }

func (cfg *Config) Logger() logger.Logger { return cfg.logger }

// Option represents a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc struct {
	name      string
	applyFunc func(*Config) error
}

func (o *optFunc) apply(cfg *Config) error {
	if cfg == nil {
		return ErrConfigNil
	}
	return o.applyFunc(cfg)
}

func newOptFunc(name string, f func(*Config) error) *optFunc {
	return &optFunc{name: name, applyFunc: f}
}

func durationOption(name string, d, lo, hi time.Duration, set func(*Config)) Option {
	return newOptFunc(name, func(cfg *Config) error {
		if d < lo || d > hi {
			return fmt.Errorf("%s: %v is out of range [%v, %v]", name, d, lo, hi)
		}
		set(cfg)

		return nil
	})
}

// WithCycleTime sets the period of the cyclic exchange. It should be between 250 microseconds and 1 second.
func WithCycleTime(d time.Duration) Option {
	return durationOption("WithCycleTime", d, 250*time.Microsecond, time.Second, func(cfg *Config) {
		cfg.cycleTime = d
	})
}

// WithReceiveTimeout sets the bound on waiting for the cyclic frame. It should be between 100 microseconds and 1 second.
func WithReceiveTimeout(d time.Duration) Option {
	return durationOption("WithReceiveTimeout", d, 100*time.Microsecond, time.Second, func(cfg *Config) {
		cfg.receiveTimeout = d
	})
}

// WithMonitorInterval sets the period of the fault monitor. It should be between 1 millisecond and 10 seconds.
func WithMonitorInterval(d time.Duration) Option {
	return durationOption("WithMonitorInterval", d, time.Millisecond, 10*time.Second, func(cfg *Config) {
		cfg.monitorInterval = d
	})
}

// WithStateTimeout sets the bound on reaching SAFEOP. It should be between 1 millisecond and 120 seconds.
func WithStateTimeout(d time.Duration) Option {
	return durationOption("WithStateTimeout", d, time.Millisecond, 120*time.Second, func(cfg *Config) {
		cfg.stateTimeout = d
	})
}

// WithStatePollInterval sets the interval between state reads while waiting for SAFEOP.
// It should be between 1 millisecond and 1 second.
func WithStatePollInterval(d time.Duration) Option {
	return durationOption("WithStatePollInterval", d, time.Millisecond, time.Second, func(cfg *Config) {
		cfg.statePollInterval = d
	})
}

// WithOperationalRetries sets how many state reads are spent waiting for every slave to report
// OPERATIONAL, and the interval between them. retries should be between 1 and 10000, interval between
// 1 millisecond and 10 seconds.
func WithOperationalRetries(retries int, interval time.Duration) Option {
	return newOptFunc("WithOperationalRetries", func(cfg *Config) error {
		if retries < 1 || retries > 10000 {
			return fmt.Errorf("WithOperationalRetries: retries %d is out of range [1, 10000]", retries)
		}
		if interval < time.Millisecond || interval > 10*time.Second {
			return fmt.Errorf("WithOperationalRetries: interval %v is out of range [1ms, 10s]", interval)
		}
		cfg.operationalRetries = retries
		cfg.operationalPollInterval = interval

		return nil
	})
}

// WithRecoveryTimeout sets the bound on recovering one slave. It should be between 1 millisecond and 30 seconds.
func WithRecoveryTimeout(d time.Duration) Option {
	return durationOption("WithRecoveryTimeout", d, time.Millisecond, 30*time.Second, func(cfg *Config) {
		cfg.recoveryTimeout = d
	})
}

// WithShutdownTimeout sets the bound on joining the background loops. It should be between 10 milliseconds and 30 seconds.
func WithShutdownTimeout(d time.Duration) Option {
	return durationOption("WithShutdownTimeout", d, 10*time.Millisecond, 30*time.Second, func(cfg *Config) {
		cfg.shutdownTimeout = d
	})
}

// WithMinTargetOutput rejects a calibration target whose mapped output buffer is shorter than n bytes.
// n should be between 1 and 65535.
func WithMinTargetOutput(n int) Option {
	return newOptFunc("WithMinTargetOutput", func(cfg *Config) error {
		if n < 1 || n > 0xffff {
			return fmt.Errorf("WithMinTargetOutput: %d is out of range [1, 65535]", n)
		}
		cfg.minTargetOutput = n

		return nil
	})
}

// WithStatusExporter publishes a status snapshot to exp every interval while the session loops run.
// interval should be between 10 milliseconds and 1 minute.
func WithStatusExporter(exp StatusExporter, interval time.Duration) Option {
	return newOptFunc("WithStatusExporter", func(cfg *Config) error {
		if exp == nil {
			return errors.New("WithStatusExporter: exporter is nil")
		}
		if interval < 10*time.Millisecond || interval > time.Minute {
			return fmt.Errorf("WithStatusExporter: interval %v is out of range [10ms, 1m]", interval)
		}
		cfg.exporter = exp
		cfg.exportInterval = interval

		return nil
	})
}

// WithLogger sets the logger of the session.
func WithLogger(l logger.Logger) Option {
	return newOptFunc("WithLogger", func(cfg *Config) error {
		if l == nil {
			return errors.New("WithLogger: logger is nil")
		}
		cfg.logger = l

		return nil
	})
}
