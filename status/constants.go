// Package status encodes master session health into a fixed block of Modbus holding registers
// and delivers it to a plant controller.
package status

// Session status block layout constants.
// These values define the register protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// BlockRegisters is the fixed number of registers per session block.
const BlockRegisters = 20

// ---- SLOT INDICES ----

const (
	SlotHealth      = 0
	SlotPhase       = 1
	SlotLowestState = 2
	SlotExpectedWKC = 3
	SlotActualWKC   = 4
	SlotLostSlaves  = 5
	SlotTarget      = 6
)

// slotLiveEnd is one past the last live slot.
const slotLiveEnd = SlotTarget + 1

// Slots 7-10 are reserved and left zero.

// ---- SESSION NAME ----

// SlotNameStart is the first slot of the session name. The name always sits at the end of the block.
const SlotNameStart = 11

// SlotNameSlots is the number of slots reserved for the session name.
const SlotNameSlots = 8

// NameMaxChars is the maximum number of ASCII characters stored for the session name.
const NameMaxChars = 2 * SlotNameSlots

// ---- HEALTH CODES ----

const (
	// HealthUnknown is reported before bring-up completes.
	HealthUnknown uint16 = 0
	// HealthOK is reported while every slave is OPERATIONAL and the working counter matches.
	HealthOK uint16 = 1
	// HealthDegraded is reported while the fault monitor is recovering slaves.
	HealthDegraded uint16 = 2
	// HealthError is reported after a failed bring-up or calibration.
	HealthError uint16 = 3
)
