package calibration

import (
	"context"
	"fmt"
	"time"

	"github.com/arloliu/go-wheelcal/fieldbus"
	"github.com/arloliu/go-wheelcal/internal/pool"
	"github.com/arloliu/go-wheelcal/logger"
)

// DefaultPollInterval is the default pause between two status polls of EncoderCalibration.
const DefaultPollInterval = 20 * time.Millisecond

var encoderObjects = []uint16{ObjectMotor1, ObjectMotor2, ObjectPivot}

// EncoderCalibration is the encoder zero-offset calibration of motor 1, motor 2 and the pivot.
type EncoderCalibration struct {
	// PollInterval is the pause between two status polls. Zero polls back to back.
	PollInterval time.Duration
	// StopTimeout bounds the forced "stop" writes after a cancellation.
	StopTimeout time.Duration
	Logger      logger.Logger
}

// NewEncoderCalibration creates an encoder calibration with default settings.
func NewEncoderCalibration() *EncoderCalibration {
	return &EncoderCalibration{
		PollInterval: DefaultPollInterval,
		StopTimeout:  DefaultStopTimeout,
		Logger:       logger.GetLogger(),
	}
}

// Name implements master.Procedure.
func (c *EncoderCalibration) Name() string { return "encoder calibration" }

// Run arms the three encoder calibration channels of dev, polls until every status is final, disarms
// the channels and commits when all three succeeded.
//
// It returns ErrCalibrationUnsuccessful when any channel reported failure, and ErrCalibrationInterrupted
// when ctx ends first. Neither case commits.
func (c *EncoderCalibration) Run(ctx context.Context, dev fieldbus.Device) error {
	l := c.getLogger().With("component", "encoder", "position", dev.Position())

	for _, object := range encoderObjects {
		if err := setMode(ctx, dev, object, ModeEncoder); err != nil {
			return c.abort(ctx, dev, l, "start", err)
		}
	}
	l.Info("encoder calibration started")

	var statuses [3]uint64
	for iteration := 1; ; iteration++ {
		for i, object := range encoderObjects {
			status, err := readStatus(ctx, dev, object)
			if err != nil {
				return c.abort(ctx, dev, l, "poll", err)
			}
			statuses[i] = status
		}

		l.Info("encoder calibration status", "motor1", statuses[0], "motor2", statuses[1], "pivot", statuses[2])

		if isFinal(statuses[0]) && isFinal(statuses[1]) && isFinal(statuses[2]) {
			l.Debug("encoder calibration finished", "iterations", iteration)
			break
		}

		if err := pool.Sleep(ctx, c.PollInterval); err != nil {
			return c.abort(ctx, dev, l, "poll", err)
		}
	}

	for _, object := range encoderObjects {
		if err := setMode(ctx, dev, object, ModeStop); err != nil {
			return c.abort(ctx, dev, l, "stop", err)
		}
	}

	if statuses[0] != StatusSuccess || statuses[1] != StatusSuccess || statuses[2] != StatusSuccess {
		l.Error("encoder calibration failed", "motor1", statuses[0], "motor2", statuses[1], "pivot", statuses[2])
		return fmt.Errorf("%w: status motor1=%d motor2=%d pivot=%d",
			fieldbus.ErrCalibrationUnsuccessful, statuses[0], statuses[1], statuses[2])
	}

	if err := commit(ctx, dev); err != nil {
		return c.abort(ctx, dev, l, "commit", err)
	}
	l.Info("encoder calibration committed")

	return nil
}

// abort disarms every channel and returns the error of the failed stage. A canceled ctx turns the
// failure into ErrCalibrationInterrupted.
func (c *EncoderCalibration) abort(ctx context.Context, dev fieldbus.Device, l logger.Logger, stage string, err error) error {
	forceStop(ctx, dev, c.StopTimeout, l, encoderObjects...)

	if ctx.Err() != nil {
		l.Warn("encoder calibration interrupted", "stage", stage)
		return interruptedErr(ctx, stage)
	}

	return fmt.Errorf("encoder calibration %s: %w", stage, err)
}

func (c *EncoderCalibration) getLogger() logger.Logger {
	if c.Logger == nil {
		return logger.GetLogger()
	}
	return c.Logger
}
