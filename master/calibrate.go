package master

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-wheelcal/fieldbus"
)

// Procedure is a calibration procedure run against the calibration target.
type Procedure interface {
	// Name returns the procedure name used in logs.
	Name() string
	// Run drives the calibration on dev until it completes, fails or ctx is cancelled.
	Run(ctx context.Context, dev fieldbus.Device) error
}

// RunCalibration runs proc against the calibration target.
//
// The session must be fully OPERATIONAL, and a session runs at most one calibration.
func (s *Session) RunCalibration(ctx context.Context, proc Procedure) error {
	if proc == nil {
		return errors.New("calibration procedure is nil")
	}
	if !s.operational.Load() {
		return ErrNotOperational
	}
	if !s.calibrated.CompareAndSwap(false, true) {
		return fieldbus.ErrCalibrationAlreadyRun
	}

	l := s.logger.With("procedure", proc.Name())
	l.Info("calibration started")
	s.phase.Set(PhaseCalibrating)

	start := time.Now()
	err := proc.Run(ctx, s)
	elapsed := time.Since(start)

	if err != nil {
		s.phase.Set(PhaseFailed)
		if errors.Is(err, fieldbus.ErrCalibrationInterrupted) {
			l.Warn("calibration interrupted", "elapsed", elapsed)
		} else {
			l.Error("calibration failed", "elapsed", elapsed, "error", err)
		}

		return fmt.Errorf("%s: %w", proc.Name(), err)
	}

	s.phase.Set(PhaseSucceeded)
	l.Info("calibration succeeded", "elapsed", elapsed)

	return nil
}
