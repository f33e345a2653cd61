package calibration

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/arloliu/go-wheelcal/fieldbus"
)

// Device names of the wheel bus.
const (
	CouplerName    = "EK1100"
	DigitalInName  = "EL1809"
	WheelName      = "WHEEL-DRIVE"
	DigitalOutName = "EL2809"
	AnalogInName   = "EL3104"
)

// Device kinds of the wheel bus.
const (
	KindCoupler    = "coupler"
	KindDigitalIn  = "digital-in"
	KindWheel      = "wheel"
	KindDigitalOut = "digital-out"
	KindAnalogIn   = "analog-in"
)

// WheelMinRevision is the first wheel firmware revision with the output layout used by MotorPhasing.
const WheelMinRevision = 1015

// WheelSetupHook is the name of WheelSetup in Hooks.
const WheelSetupHook = "wheel-pdo"

// Process data assignment objects and the mappings the wheel calibration expects.
const (
	rxPDOAssign uint16 = 0x1c12
	txPDOAssign uint16 = 0x1c13
	wheelRxPDO  uint16 = 0x1600
	wheelTxPDO  uint16 = 0x1a00
	assignCount uint8  = 0
	assignFirst uint8  = 1
)

// DefaultEntries returns the entries of the eight slave wheel bus: a coupler, a digital input terminal,
// four wheel modules at positions 2 to 5, a digital output and an analog input terminal.
func DefaultEntries() []fieldbus.DirectoryEntry {
	entries := []fieldbus.DirectoryEntry{
		{Position: 0, Kind: KindCoupler, Name: CouplerName},
		{Position: 1, Kind: KindDigitalIn, Name: DigitalInName},
	}
	for pos := 2; pos <= 5; pos++ {
		entries = append(entries, fieldbus.DirectoryEntry{
			Position:    pos,
			Kind:        KindWheel,
			Name:        WheelName,
			MinRevision: WheelMinRevision,
			Setup:       WheelSetup,
		})
	}

	return append(entries,
		fieldbus.DirectoryEntry{Position: 6, Kind: KindDigitalOut, Name: DigitalOutName},
		fieldbus.DirectoryEntry{Position: 7, Kind: KindAnalogIn, Name: AnalogInName},
	)
}

// DefaultDirectory returns the directory of the wheel bus built from DefaultEntries.
func DefaultDirectory() *fieldbus.Directory {
	dir, err := fieldbus.NewDirectory(DefaultEntries()...)
	if err != nil {
		panic(fmt.Sprintf("calibration: invalid default directory: %v", err))
	}

	return dir
}

// CheckTarget reports whether position is a wheel module in dir.
// The returned error wraps fieldbus.ErrSlaveMismatch.
func CheckTarget(dir *fieldbus.Directory, position int) error {
	entry, ok := dir.Lookup(position)
	if !ok {
		return fmt.Errorf("%w: calibration target %d is not in the directory", fieldbus.ErrSlaveMismatch, position)
	}
	if entry.Kind != KindWheel {
		return fmt.Errorf("%w: calibration target %d is a %s, not a wheel module", fieldbus.ErrSlaveMismatch, position, entry.Kind)
	}

	return nil
}

// Hooks returns the setup hooks a directory file may refer to by name.
func Hooks() map[string]fieldbus.SetupFunc {
	return map[string]fieldbus.SetupFunc{
		WheelSetupHook: WheelSetup,
	}
}

// WheelSetup assigns the calibration process data mappings of a wheel module.
func WheelSetup(ctx context.Context, ch fieldbus.ParamChannel, slave fieldbus.SlaveInfo) error {
	for _, a := range []struct {
		object  uint16
		mapping uint16
	}{
		{rxPDOAssign, wheelRxPDO},
		{txPDOAssign, wheelTxPDO},
	} {
		if err := assignPDO(ctx, ch, a.object, a.mapping); err != nil {
			return fmt.Errorf("wheel %d: assign 0x%04x: %w", slave.Position, a.object, err)
		}
	}

	return nil
}

func assignPDO(ctx context.Context, ch fieldbus.ParamChannel, object, mapping uint16) error {
	if err := ch.WriteParam(ctx, object, assignCount, []byte{0}); err != nil {
		return err
	}
	if err := ch.WriteParam(ctx, object, assignFirst, binary.LittleEndian.AppendUint16(nil, mapping)); err != nil {
		return err
	}

	return ch.WriteParam(ctx, object, assignCount, []byte{1})
}
