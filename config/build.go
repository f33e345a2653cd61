package config

import (
	"fmt"
	"time"

	"github.com/arloliu/go-wheelcal/fieldbus"
	"github.com/arloliu/go-wheelcal/master"
	"github.com/arloliu/go-wheelcal/status"
)

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// Directory builds the slave directory, resolving setup hook names through hooks.
func (cfg *Config) Directory(hooks map[string]fieldbus.SetupFunc) (*fieldbus.Directory, error) {
	entries := make([]fieldbus.DirectoryEntry, 0, len(cfg.Slaves))
	for _, sl := range cfg.Slaves {
		entry := fieldbus.DirectoryEntry{
			Position:    sl.Position,
			Kind:        sl.Kind,
			Name:        sl.Name,
			MinRevision: sl.MinRevision,
		}

		if sl.Setup != "" {
			hook, ok := hooks[sl.Setup]
			if !ok {
				return nil, fmt.Errorf("slave at position %d: unknown setup hook %q", sl.Position, sl.Setup)
			}
			entry.Setup = hook
		}

		entries = append(entries, entry)
	}

	return fieldbus.NewDirectory(entries...)
}

// SessionOptions returns the session options of the configured timing. Unset fields are omitted.
func (cfg *Config) SessionOptions() []master.Option {
	s := cfg.Session

	var opts []master.Option
	if s.CycleMs > 0 {
		opts = append(opts, master.WithCycleTime(ms(s.CycleMs)))
	}
	if s.ReceiveTimeoutMs > 0 {
		opts = append(opts, master.WithReceiveTimeout(ms(s.ReceiveTimeoutMs)))
	}
	if s.MonitorIntervalMs > 0 {
		opts = append(opts, master.WithMonitorInterval(ms(s.MonitorIntervalMs)))
	}
	if s.StateTimeoutMs > 0 {
		opts = append(opts, master.WithStateTimeout(ms(s.StateTimeoutMs)))
	}
	if s.StatePollMs > 0 {
		opts = append(opts, master.WithStatePollInterval(ms(s.StatePollMs)))
	}
	if s.OperationalRetries > 0 || s.OperationalPollMs > 0 {
		retries, poll := 40, 50
		if s.OperationalRetries > 0 {
			retries = s.OperationalRetries
		}
		if s.OperationalPollMs > 0 {
			poll = s.OperationalPollMs
		}
		opts = append(opts, master.WithOperationalRetries(retries, ms(poll)))
	}
	if s.RecoveryTimeoutMs > 0 {
		opts = append(opts, master.WithRecoveryTimeout(ms(s.RecoveryTimeoutMs)))
	}
	if s.ShutdownTimeoutMs > 0 {
		opts = append(opts, master.WithShutdownTimeout(ms(s.ShutdownTimeoutMs)))
	}

	return opts
}

// StatusWriterConfig returns the status writer configuration, or false when status export is disabled.
func (cfg *Config) StatusWriterConfig() (status.Config, bool) {
	st := cfg.Status
	if st == nil {
		return status.Config{}, false
	}

	return status.Config{
		Endpoint: st.Endpoint,
		UnitID:   st.UnitID,
		BaseAddr: st.BaseAddress,
		Timeout:  ms(st.TimeoutMs),
		Name:     st.Name,
	}, true
}

// StatusInterval returns the status export interval.
func (cfg *Config) StatusInterval() time.Duration {
	if cfg.Status == nil || cfg.Status.IntervalMs <= 0 {
		return ms(DefaultStatusIntervalMs)
	}
	return ms(cfg.Status.IntervalMs)
}
