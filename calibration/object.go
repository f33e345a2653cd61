package calibration

import (
	"context"
	"fmt"
	"time"

	"github.com/arloliu/go-wheelcal/fieldbus"
	"github.com/arloliu/go-wheelcal/internal/util"
	"github.com/arloliu/go-wheelcal/logger"
)

// Calibration objects of the wheel module parameter channel.
const (
	ObjectMotor1 uint16 = 0x8100
	ObjectMotor2 uint16 = 0x8101
	ObjectPivot  uint16 = 0x8102

	// SubMode is the calibration mode register of a calibration object.
	SubMode uint8 = 8
	// SubStatus is the calibration status register of a calibration object.
	SubStatus uint8 = 9

	// ObjectCommit:SubCommit stores the calibration result when written with 1.
	ObjectCommit uint16 = 0x8fff
	SubCommit    uint8  = 1
)

// Calibration mode register values.
const (
	ModeStop    uint8 = 0
	ModeEncoder uint8 = 1
	ModePhasing uint8 = 2
)

// Calibration status register values. Other values mean the calibration is still running.
const (
	StatusSuccess uint64 = 7
	StatusFailure uint64 = 8
)

// DefaultStopTimeout bounds the forced "stop" writes issued after a cancellation.
const DefaultStopTimeout = time.Second

func setMode(ctx context.Context, ch fieldbus.ParamChannel, object uint16, mode uint8) error {
	return ch.WriteParam(ctx, object, SubMode, []byte{mode})
}

func readStatus(ctx context.Context, ch fieldbus.ParamChannel, object uint16) (uint64, error) {
	data, err := ch.ReadParam(ctx, object, SubStatus)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, fmt.Errorf("empty status of object 0x%04x", object)
	}

	return util.UintLE(data), nil
}

func commit(ctx context.Context, ch fieldbus.ParamChannel) error {
	return ch.WriteParam(ctx, ObjectCommit, SubCommit, []byte{1})
}

func isFinal(status uint64) bool {
	return status == StatusSuccess || status == StatusFailure
}

// forceStop writes "stop" to objects on a context detached from ctx, so a canceled calibration still
// disarms the device. Failures are logged.
func forceStop(ctx context.Context, ch fieldbus.ParamChannel, timeout time.Duration, l logger.Logger, objects ...uint16) {
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	for _, object := range objects {
		if err := setMode(stopCtx, ch, object, ModeStop); err != nil {
			l.Error("failed to stop calibration channel", "object", fmt.Sprintf("0x%04x", object), "error", err)
		}
	}
}

func interruptedErr(ctx context.Context, stage string) error {
	return fmt.Errorf("%w: %s: %w", fieldbus.ErrCalibrationInterrupted, stage, context.Cause(ctx))
}
