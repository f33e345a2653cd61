package calibration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-wheelcal/fieldbus"
)

func newTestPhasing(d time.Duration) *MotorPhasing {
	p := NewMotorPhasing(d)
	p.Logger = quietLogger()
	return p
}

func TestMotorPhasing_Run(t *testing.T) {
	require := require.New(t)

	dev := newTestDevice(t)
	orig, _ := dev.Outputs()

	require.NoError(newTestPhasing(5*time.Millisecond).Run(context.Background(), dev))

	// patched then restored, once per motor
	history := dev.History()
	require.Len(history, 4)

	want1, err := Patch(orig, Motor1Waveform)
	require.NoError(err)
	want2, err := Patch(orig, Motor2Waveform)
	require.NoError(err)

	require.Equal(want1, history[0])
	require.Equal(orig, history[1])
	require.Equal(want2, history[2])
	require.Equal(orig, history[3])

	final, _ := dev.Outputs()
	require.Equal(orig, final)

	require.Equal([]byte{ModePhasing, ModeStop}, dev.modeWrites(ObjectMotor1))
	require.Equal([]byte{ModePhasing, ModeStop}, dev.modeWrites(ObjectMotor2))
	require.Empty(dev.modeWrites(ObjectPivot))
	require.Equal(2, dev.bus.Commits(testTarget))
}

func TestMotorPhasing_Duration(t *testing.T) {
	require := require.New(t)

	dev := newTestDevice(t)
	p := newTestPhasing(40 * time.Millisecond)
	p.Waveforms = []Waveform{Motor1Waveform}

	start := time.Now()
	require.NoError(p.Run(context.Background(), dev))
	require.GreaterOrEqual(time.Since(start), 40*time.Millisecond)

	require.Error(newTestPhasing(0).Run(context.Background(), dev))
}

func TestMotorPhasing_CanceledBeforeActuation(t *testing.T) {
	require := require.New(t)

	dev := newTestDevice(t)
	orig, _ := dev.Outputs()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestPhasing(time.Second).Run(ctx, dev)
	require.ErrorIs(err, fieldbus.ErrCalibrationInterrupted)
	require.ErrorIs(err, context.Canceled)

	final, _ := dev.Outputs()
	require.Equal(orig, final)
	require.Empty(dev.History())
	require.Empty(dev.bus.CallsOf("writeparam"))
}

func TestMotorPhasing_CanceledDuringActuation(t *testing.T) {
	require := require.New(t)

	dev := newTestDevice(t)
	orig, _ := dev.Outputs()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	err := newTestPhasing(10*time.Second).Run(ctx, dev)
	require.ErrorIs(err, fieldbus.ErrCalibrationInterrupted)
	require.Less(time.Since(start), 5*time.Second)

	final, _ := dev.Outputs()
	require.Equal(orig, final)

	// motor 1 forced to stop, motor 2 never armed, nothing committed
	require.Equal([]byte{ModePhasing, ModeStop}, dev.modeWrites(ObjectMotor1))
	require.Empty(dev.modeWrites(ObjectMotor2))
	require.Zero(dev.bus.Commits(testTarget))
}
