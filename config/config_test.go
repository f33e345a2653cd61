package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-wheelcal/calibration"
	"github.com/arloliu/go-wheelcal/master"
)

const sampleYAML = `
session:
  cycle_ms: 5
  state_timeout_ms: 2000
  operational_retries: 80
slaves:
  - position: 0
    kind: coupler
    name: EK1100
  - position: 2
    kind: wheel
    name: WHEEL-DRIVE
    min_revision: 1015
    setup: wheel-pdo
status:
  endpoint: 10.0.0.5:502
  unit_id: 3
  base_address: 400
  name: wheelcal-bench-station-01
`

func TestLoad(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "wheelcal.yaml")
	require.NoError(os.WriteFile(path, []byte(sampleYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(err)
	require.NoError(Validate(cfg))
	Normalize(cfg)

	require.Equal(5, cfg.Session.CycleMs)
	require.Len(cfg.Slaves, 2)
	require.Equal("wheel-pdo", cfg.Slaves[1].Setup)

	dir, err := cfg.Directory(calibration.Hooks())
	require.NoError(err)
	wheel, ok := dir.Lookup(2)
	require.True(ok)
	require.NotNil(wheel.Setup)
	require.EqualValues(1015, wheel.MinRevision)

	mcfg, err := master.NewConfig(cfg.SessionOptions()...)
	require.NoError(err)
	require.Equal(5*time.Millisecond, mcfg.CycleTime())
	require.Equal(2*time.Second, mcfg.StateTimeout())
	require.Equal(80, mcfg.OperationalRetries())
	require.Equal(50*time.Millisecond, mcfg.OperationalPollInterval())

	sc, ok := cfg.StatusWriterConfig()
	require.True(ok)
	require.Equal("10.0.0.5:502", sc.Endpoint)
	require.EqualValues(3, sc.UnitID)
	require.EqualValues(400, sc.BaseAddr)
	require.Equal(2*time.Second, sc.Timeout)
	require.Equal("wheelcal-bench-s", sc.Name)
	require.Equal(time.Second, cfg.StatusInterval())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(err)
}

func TestDecode_Defaults(t *testing.T) {
	require := require.New(t)

	cfg, err := Decode(strings.NewReader(""))
	require.NoError(err)
	require.NoError(Validate(cfg))
	Normalize(cfg)

	require.Equal(DefaultSlaves(), cfg.Slaves)
	require.Empty(cfg.SessionOptions())
	_, ok := cfg.StatusWriterConfig()
	require.False(ok)

	dir, err := cfg.Directory(calibration.Hooks())
	require.NoError(err)
	require.Equal(calibration.DefaultDirectory().Len(), dir.Len())
	for pos := 2; pos <= 5; pos++ {
		entry, _ := dir.Lookup(pos)
		require.NotNil(entry.Setup)
	}
}

func TestDecode_UnknownField(t *testing.T) {
	_, err := Decode(strings.NewReader("session:\n  cycle_time: 5\n"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"negative timing", Config{Session: SessionConfig{CycleMs: -1}}},
		{"negative position", Config{Slaves: []SlaveConfig{{Position: -1, Kind: "wheel"}}}},
		{"duplicate position", Config{Slaves: []SlaveConfig{{Position: 1, Kind: "a"}, {Position: 1, Kind: "b"}}}},
		{"missing kind", Config{Slaves: []SlaveConfig{{Position: 1}}}},
		{"status without endpoint", Config{Status: &StatusConfig{}}},
		{"status non ascii name", Config{Status: &StatusConfig{Endpoint: "x:502", Name: "räder"}}},
		{"status negative interval", Config{Status: &StatusConfig{Endpoint: "x:502", IntervalMs: -5}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.cfg
			require.Error(t, Validate(&tt.cfg))
			require.Equal(t, before, tt.cfg, "Validate must not mutate")
		})
	}

	require.Error(t, Validate(nil))
}

func TestDirectory_UnknownHook(t *testing.T) {
	cfg := &Config{Slaves: []SlaveConfig{{Position: 2, Kind: "wheel", Setup: "nope"}}}
	_, err := cfg.Directory(calibration.Hooks())
	require.ErrorContains(t, err, "unknown setup hook")
}
