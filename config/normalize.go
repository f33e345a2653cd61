package config

import (
	"github.com/arloliu/go-wheelcal/calibration"
	"github.com/arloliu/go-wheelcal/status"
)

// Status export defaults.
const (
	DefaultStatusTimeoutMs  = 2000
	DefaultStatusIntervalMs = 1000
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// no slaves listed: the wheel bus
	if len(cfg.Slaves) == 0 {
		cfg.Slaves = DefaultSlaves()
	}

	if st := cfg.Status; st != nil {
		if st.TimeoutMs == 0 {
			st.TimeoutMs = DefaultStatusTimeoutMs
		}
		if st.IntervalMs == 0 {
			st.IntervalMs = DefaultStatusIntervalMs
		}
		if len(st.Name) > status.NameMaxChars {
			st.Name = st.Name[:status.NameMaxChars]
		}
	}
}

// DefaultSlaves returns the wheel bus directory as configuration.
func DefaultSlaves() []SlaveConfig {
	entries := calibration.DefaultEntries()

	out := make([]SlaveConfig, 0, len(entries))
	for _, e := range entries {
		sl := SlaveConfig{
			Position:    e.Position,
			Kind:        e.Kind,
			Name:        e.Name,
			MinRevision: e.MinRevision,
		}
		if e.Setup != nil {
			sl.Setup = calibration.WheelSetupHook
		}
		out = append(out, sl)
	}

	return out
}
