package calibration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-wheelcal/fieldbus"
)

func newTestEncoder() *EncoderCalibration {
	c := NewEncoderCalibration()
	c.PollInterval = time.Millisecond
	c.Logger = quietLogger()
	return c
}

func scriptStatuses(dev *testDevice, motor1, motor2, pivot []byte) {
	script := func(object uint16, values []byte) {
		seq := make([][]byte, len(values))
		for i, v := range values {
			seq[i] = []byte{v}
		}
		dev.bus.ScriptParam(dev.position, object, SubStatus, seq...)
	}
	script(ObjectMotor1, motor1)
	script(ObjectMotor2, motor2)
	script(ObjectPivot, pivot)
}

func TestEncoderCalibration_Firmware(t *testing.T) {
	require := require.New(t)

	dev := newTestDevice(t)
	c := newTestEncoder()
	l := quietLogger()
	c.Logger = l

	require.NoError(c.Run(context.Background(), dev))

	for _, object := range encoderObjects {
		require.Equal([]byte{ModeEncoder, ModeStop}, dev.modeWrites(object))
	}
	require.Equal(1, dev.bus.Commits(testTarget))
	l.AssertCalled(t, "Info", "encoder calibration status", []any{"motor1", StatusSuccess, "motor2", StatusSuccess, "pivot", StatusSuccess})
}

func TestEncoderCalibration_Success(t *testing.T) {
	require := require.New(t)

	dev := newTestDevice(t)
	scriptStatuses(dev, []byte{1, 3, 7, 1}, []byte{1, 7, 7, 1}, []byte{1, 3, 7, 1})

	require.NoError(newTestEncoder().Run(context.Background(), dev))

	// exits at the first iteration where all three are final
	for _, object := range encoderObjects {
		require.Equal(3, dev.statusReads(object))
	}
	require.Len(dev.bus.ParamWrites(testTarget, ObjectCommit, SubCommit), 1)
}

func TestEncoderCalibration_Unsuccessful(t *testing.T) {
	require := require.New(t)

	dev := newTestDevice(t)
	scriptStatuses(dev, []byte{1, 7}, []byte{1, 8}, []byte{1, 7})

	err := newTestEncoder().Run(context.Background(), dev)
	require.ErrorIs(err, fieldbus.ErrCalibrationUnsuccessful)
	require.ErrorContains(err, "unsuccessful calibration")

	for _, object := range encoderObjects {
		require.Equal(2, dev.statusReads(object))
		require.Equal([]byte{ModeEncoder, ModeStop}, dev.modeWrites(object))
	}
	require.Empty(dev.bus.ParamWrites(testTarget, ObjectCommit, SubCommit))
	require.Zero(dev.bus.Commits(testTarget))
}

func TestEncoderCalibration_BusyPoll(t *testing.T) {
	require := require.New(t)

	dev := newTestDevice(t)
	c := newTestEncoder()
	c.PollInterval = 0

	require.NoError(c.Run(context.Background(), dev))
	require.Equal(1, dev.bus.Commits(testTarget))
}

func TestEncoderCalibration_Canceled(t *testing.T) {
	require := require.New(t)

	dev := newTestDevice(t)
	// never converges
	scriptStatuses(dev, []byte{3}, []byte{3}, []byte{3})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := newTestEncoder().Run(ctx, dev)
	require.ErrorIs(err, fieldbus.ErrCalibrationInterrupted)
	require.Less(time.Since(start), 2*time.Second)

	// every channel is forced back to stop, nothing is committed
	for _, object := range encoderObjects {
		writes := dev.modeWrites(object)
		require.NotEmpty(writes)
		require.Equal(ModeStop, writes[len(writes)-1])
	}
	require.Empty(dev.bus.ParamWrites(testTarget, ObjectCommit, SubCommit))
}

func TestEncoderCalibration_ReadFailure(t *testing.T) {
	require := require.New(t)

	readErr := errors.New("mailbox timeout")
	dev := newTestDevice(t)
	dev.bus = newFailingBus(t, "readparam", readErr)

	err := newTestEncoder().Run(context.Background(), dev)
	require.ErrorIs(err, readErr)
	require.NotErrorIs(err, fieldbus.ErrCalibrationInterrupted)
	require.Empty(dev.bus.ParamWrites(testTarget, ObjectCommit, SubCommit))
	for _, object := range encoderObjects {
		require.Equal([]byte{ModeEncoder, ModeStop}, dev.modeWrites(object))
	}
}
