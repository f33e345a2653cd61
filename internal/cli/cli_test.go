package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-wheelcal/calibration"
	"github.com/arloliu/go-wheelcal/fieldbus"
	"github.com/arloliu/go-wheelcal/logger"
	"github.com/arloliu/go-wheelcal/master"
)

var encoderCommand = Command{
	Name: "encoder_calibration",
	NewProcedure: func(_ []string, l logger.Logger) (master.Procedure, error) {
		proc := calibration.NewEncoderCalibration()
		proc.PollInterval = time.Millisecond
		proc.Logger = l
		return proc, nil
	},
}

var phasingCommand = Command{
	Name:      "motor_phasing",
	ExtraArgs: []string{"duration_s"},
	NewProcedure: func(args []string, l logger.Logger) (master.Procedure, error) {
		d, err := time.ParseDuration(args[0])
		if err != nil {
			return nil, err
		}
		proc := calibration.NewMotorPhasing(d)
		proc.Logger = l
		return proc, nil
	},
}

func TestRun_Usage(t *testing.T) {
	require := require.New(t)

	var stderr bytes.Buffer
	require.Error(Run(context.Background(), encoderCommand, []string{"eth0"}, &stderr))
	require.Contains(stderr.String(), "usage: encoder_calibration <iface> <slave_index>")

	stderr.Reset()
	require.Error(Run(context.Background(), phasingCommand, []string{"eth0", "2"}, &stderr))
	require.Contains(stderr.String(), "<duration_s>")

	stderr.Reset()
	require.ErrorContains(Run(context.Background(), encoderCommand, []string{"eth0", "two"}, &stderr), "invalid slave index")
}

func TestRun_Simulated(t *testing.T) {
	require := require.New(t)
	t.Setenv(envDriver, "sim")
	t.Setenv(envLevel, "error")

	var stderr bytes.Buffer
	require.NoError(Run(context.Background(), encoderCommand, []string{"eth0", "2"}, &stderr))
	require.NoError(Run(context.Background(), phasingCommand, []string{"eth0", "3", "5ms"}, &stderr))
	require.Empty(stderr.String())

	// the coupler and the digital input terminal are not wheel modules
	for _, target := range []string{"0", "1"} {
		err := Run(context.Background(), phasingCommand, []string{"eth0", target, "5ms"}, &stderr)
		require.ErrorIs(err, fieldbus.ErrSlaveMismatch)
		require.ErrorContains(err, "not a wheel module")
	}
}

func TestRun_DriverRequired(t *testing.T) {
	require := require.New(t)
	t.Setenv(envDriver, "")
	t.Setenv(envConfig, "")
	t.Setenv(envLevel, "error")

	var stderr bytes.Buffer
	err := Run(context.Background(), encoderCommand, []string{"eth0", "2"}, &stderr)
	require.ErrorIs(err, fieldbus.ErrDriverNotFound)
	require.ErrorContains(err, envDriver+" is not set")
	require.ErrorContains(err, "sim")

	err = Run(context.Background(), phasingCommand, []string{"eth0", "2", "5ms"}, &stderr)
	require.ErrorIs(err, fieldbus.ErrDriverNotFound)
}

func TestRun_Errors(t *testing.T) {
	require := require.New(t)
	t.Setenv(envLevel, "error")

	var stderr bytes.Buffer

	t.Setenv(envDriver, "ethercat-raw")
	require.ErrorIs(Run(context.Background(), encoderCommand, []string{"eth0", "2"}, &stderr), fieldbus.ErrDriverNotFound)

	t.Setenv(envDriver, "sim")
	require.ErrorIs(Run(context.Background(), encoderCommand, []string{"eth0", "9"}, &stderr), fieldbus.ErrSlaveMismatch)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(os.WriteFile(path, []byte("slaves:\n  - position: 1\n"), 0o600))
	t.Setenv(envConfig, path)
	require.ErrorContains(Run(context.Background(), encoderCommand, []string{"eth0", "2"}, &stderr), "kind is required")
}
