package calibration

import (
	"encoding/binary"
	"fmt"

	"github.com/arloliu/go-wheelcal/fieldbus"
)

// Output layout of a wheel module, firmware revision 1015 and later. All fields are little-endian.
const (
	// OffsetModeSelector is the offset of the 2 byte mode selector shared by both motors.
	OffsetModeSelector = 0
	// MinOutputSize is the smallest output buffer holding every patched field.
	MinOutputSize = 28
)

// MotorLayout is the position of one motor's fields in the output buffer.
type MotorLayout struct {
	// Velocity is the offset of the 4 byte velocity setpoint.
	Velocity int
	// CurrentMax is the offset of the 4 byte positive current limit.
	CurrentMax int
	// CurrentMin is the offset of the 4 byte negative current limit.
	CurrentMin int
}

var (
	// Motor1Layout is the motor 1 region, bytes [2:20).
	Motor1Layout = MotorLayout{Velocity: 2, CurrentMax: 12, CurrentMin: 16}
	// Motor2Layout is the motor 2 region, bytes [8:28).
	Motor2Layout = MotorLayout{Velocity: 8, CurrentMax: 20, CurrentMin: 24}
)

// Waveform is the fixed actuation applied to one motor during phasing.
type Waveform struct {
	// Name identifies the motor in logs.
	Name string
	// Object is the calibration object armed while the waveform is applied.
	Object uint16
	Layout MotorLayout

	// Mode is the mode selector value.
	Mode uint16
	// Velocity is the velocity setpoint.
	Velocity int32
	// CurrentLimit is written as +CurrentLimit and -CurrentLimit.
	CurrentLimit int32
}

// Phasing waveforms of the wheel motors.
var (
	Motor1Waveform = Waveform{
		Name:         "motor1",
		Object:       ObjectMotor1,
		Layout:       Motor1Layout,
		Mode:         0x0011,
		Velocity:     100,
		CurrentLimit: 3000,
	}
	Motor2Waveform = Waveform{
		Name:         "motor2",
		Object:       ObjectMotor2,
		Layout:       Motor2Layout,
		Mode:         0x0012,
		Velocity:     100,
		CurrentLimit: 3000,
	}
)

// Patch returns a copy of buf with w applied. Every byte outside the mode selector, the velocity setpoint
// and the two current limits of w's motor is left unchanged. buf itself is never modified.
func Patch(buf []byte, w Waveform) ([]byte, error) {
	if len(buf) < MinOutputSize {
		return nil, fmt.Errorf("%w: output buffer has %d bytes, need at least %d", fieldbus.ErrInvalidBuffer, len(buf), MinOutputSize)
	}

	out := make([]byte, len(buf))
	copy(out, buf)

	binary.LittleEndian.PutUint16(out[OffsetModeSelector:], w.Mode)
	binary.LittleEndian.PutUint32(out[w.Layout.Velocity:], uint32(w.Velocity))
	binary.LittleEndian.PutUint32(out[w.Layout.CurrentMax:], uint32(w.CurrentLimit))
	binary.LittleEndian.PutUint32(out[w.Layout.CurrentMin:], uint32(-w.CurrentLimit))

	return out, nil
}

// PatchedRanges returns the byte ranges Patch overrides for w, as [start, end) pairs.
func PatchedRanges(w Waveform) [][2]int {
	return [][2]int{
		{OffsetModeSelector, OffsetModeSelector + 2},
		{w.Layout.Velocity, w.Layout.Velocity + 4},
		{w.Layout.CurrentMax, w.Layout.CurrentMax + 4},
		{w.Layout.CurrentMin, w.Layout.CurrentMin + 4},
	}
}
