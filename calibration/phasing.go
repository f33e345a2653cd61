package calibration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-wheelcal/fieldbus"
	"github.com/arloliu/go-wheelcal/internal/pool"
	"github.com/arloliu/go-wheelcal/logger"
)

// MotorPhasing is the timed phase calibration of the wheel motors.
type MotorPhasing struct {
	// Duration is how long each waveform is applied.
	Duration time.Duration
	// Waveforms are applied in order. Defaults to motor 1 then motor 2.
	Waveforms []Waveform
	// StopTimeout bounds the forced "stop" write after a cancellation.
	StopTimeout time.Duration
	Logger      logger.Logger
}

// NewMotorPhasing creates a motor phasing that drives each motor for d.
func NewMotorPhasing(d time.Duration) *MotorPhasing {
	return &MotorPhasing{
		Duration:    d,
		Waveforms:   []Waveform{Motor1Waveform, Motor2Waveform},
		StopTimeout: DefaultStopTimeout,
		Logger:      logger.GetLogger(),
	}
}

// Name implements master.Procedure.
func (p *MotorPhasing) Name() string { return "motor phasing" }

// Run phases every waveform's motor in turn.
//
// For each motor it arms the phasing channel, installs the patched output buffer, waits Duration,
// restores the saved buffer, disarms the channel and commits. The saved buffer is restored on every
// path, and a cancellation disarms the channel without committing.
func (p *MotorPhasing) Run(ctx context.Context, dev fieldbus.Device) error {
	if p.Duration <= 0 {
		return fmt.Errorf("motor phasing: invalid duration %v", p.Duration)
	}

	l := p.getLogger().With("component", "phasing", "position", dev.Position())

	for _, w := range p.Waveforms {
		if ctx.Err() != nil {
			l.Warn("motor phasing interrupted", "motor", w.Name)
			return interruptedErr(ctx, w.Name)
		}

		if err := p.phase(ctx, dev, l.With("motor", w.Name), w); err != nil {
			return err
		}
	}

	return nil
}

func (p *MotorPhasing) phase(ctx context.Context, dev fieldbus.Device, l logger.Logger, w Waveform) error {
	saved, err := dev.Outputs()
	if err != nil {
		return fmt.Errorf("%s: read outputs: %w", w.Name, err)
	}
	patched, err := Patch(saved, w)
	if err != nil {
		return fmt.Errorf("%s: %w", w.Name, err)
	}

	if err := setMode(ctx, dev, w.Object, ModePhasing); err != nil {
		return p.abort(ctx, dev, l, w, "start", err)
	}

	if err := dev.SetOutputs(patched); err != nil {
		return p.abort(ctx, dev, l, w, "patch", err)
	}
	l.Info("motor phasing started", "duration", p.Duration)

	sleepErr := pool.Sleep(ctx, p.Duration)

	if err := dev.SetOutputs(saved); err != nil {
		l.Error("failed to restore outputs", "error", err)
		return p.abort(ctx, dev, l, w, "restore", errors.Join(err, sleepErr))
	}
	if sleepErr != nil {
		return p.abort(ctx, dev, l, w, "actuation", sleepErr)
	}

	if err := setMode(ctx, dev, w.Object, ModeStop); err != nil {
		return p.abort(ctx, dev, l, w, "stop", err)
	}
	if err := commit(ctx, dev); err != nil {
		return p.abort(ctx, dev, l, w, "commit", err)
	}
	l.Info("motor phasing committed")

	return nil
}

func (p *MotorPhasing) abort(ctx context.Context, dev fieldbus.Device, l logger.Logger, w Waveform, stage string, err error) error {
	forceStop(ctx, dev, p.StopTimeout, l, w.Object)

	if ctx.Err() != nil {
		l.Warn("motor phasing interrupted", "stage", stage)
		return interruptedErr(ctx, w.Name+" "+stage)
	}

	return fmt.Errorf("motor phasing %s %s: %w", w.Name, stage, err)
}

func (p *MotorPhasing) getLogger() logger.Logger {
	if p.Logger == nil {
		return logger.GetLogger()
	}
	return p.Logger
}
