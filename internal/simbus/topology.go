package simbus

import (
	"github.com/arloliu/go-wheelcal/fieldbus"
)

// Device names of the default topology.
const (
	CouplerName      = "EK1100"
	DigitalInName    = "EL1809"
	WheelName        = "WHEEL-DRIVE"
	DigitalOutName   = "EL2809"
	AnalogInName     = "EL3104"
	WheelRevision    = 1015
	WheelOutputBytes = 32
	WheelInputBytes  = 32
)

// DefaultTopology returns the eight slave wheel bus: a coupler, a digital input terminal,
// four wheel modules at positions 2 to 5, a digital output and an analog input terminal.
func DefaultTopology() []SlaveSpec {
	wheel := func() SlaveSpec {
		return SlaveSpec{
			Info:       fieldbus.SlaveInfo{Name: WheelName, VendorID: 0x00000a5e, ProductCode: 0x00001015, Revision: WheelRevision},
			OutputSize: WheelOutputBytes,
			InputSize:  WheelInputBytes,
		}
	}

	return []SlaveSpec{
		{Info: fieldbus.SlaveInfo{Name: CouplerName, VendorID: 0x2, ProductCode: 0x044c2c52}},
		{Info: fieldbus.SlaveInfo{Name: DigitalInName, VendorID: 0x2, ProductCode: 0x07113052}, InputSize: 2},
		wheel(),
		wheel(),
		wheel(),
		wheel(),
		{Info: fieldbus.SlaveInfo{Name: DigitalOutName, VendorID: 0x2, ProductCode: 0x0af93052}, OutputSize: 2},
		{Info: fieldbus.SlaveInfo{Name: AnalogInName, VendorID: 0x2, ProductCode: 0x0c203052}, InputSize: 16},
	}
}
