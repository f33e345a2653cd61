package config

import (
	"fmt"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// ------------------------------------------------------------
	// SESSION TIMING
	// ------------------------------------------------------------

	s := cfg.Session
	for _, f := range []struct {
		name  string
		value int
	}{
		{"cycle_ms", s.CycleMs},
		{"receive_timeout_ms", s.ReceiveTimeoutMs},
		{"monitor_interval_ms", s.MonitorIntervalMs},
		{"state_timeout_ms", s.StateTimeoutMs},
		{"state_poll_ms", s.StatePollMs},
		{"operational_retries", s.OperationalRetries},
		{"operational_poll_ms", s.OperationalPollMs},
		{"recovery_timeout_ms", s.RecoveryTimeoutMs},
		{"shutdown_timeout_ms", s.ShutdownTimeoutMs},
	} {
		if f.value < 0 {
			return fmt.Errorf("session: %s must not be negative, got %d", f.name, f.value)
		}
	}

	// ------------------------------------------------------------
	// SLAVE DIRECTORY
	// ------------------------------------------------------------

	seen := make(map[int]struct{}, len(cfg.Slaves))
	for _, sl := range cfg.Slaves {
		if sl.Position < 0 {
			return fmt.Errorf("slave %q: negative position %d", sl.Name, sl.Position)
		}
		if _, dup := seen[sl.Position]; dup {
			return fmt.Errorf("slave %q: position %d is used twice", sl.Name, sl.Position)
		}
		seen[sl.Position] = struct{}{}

		if sl.Kind == "" {
			return fmt.Errorf("slave at position %d: kind is required", sl.Position)
		}
	}

	// ------------------------------------------------------------
	// STATUS EXPORT (OPT-IN)
	// ------------------------------------------------------------

	st := cfg.Status
	if st == nil {
		return nil
	}

	if st.Endpoint == "" {
		return fmt.Errorf("status: endpoint is required")
	}
	if st.TimeoutMs < 0 || st.IntervalMs < 0 {
		return fmt.Errorf("status: timeout_ms and interval_ms must not be negative")
	}
	for i := 0; i < len(st.Name); i++ {
		if st.Name[i] > 0x7f {
			return fmt.Errorf("status: name must contain ASCII characters only")
		}
	}

	return nil
}
