package fieldbus

// SlaveInfo is what discovery reports about a slave.
type SlaveInfo struct {
	// Position is the zero based bus position.
	Position int
	// Name is the device name read from the slave information interface.
	Name        string
	VendorID    uint32
	ProductCode uint32
	// Revision is the firmware revision.
	Revision uint32
}

// Slave is the master-side view of one slave.
type Slave struct {
	SlaveInfo

	// Kind is the device kind taken from the slave directory.
	Kind string
	// State is the last state read from the slave.
	State State
	// Lost is set when a previously seen slave stopped answering.
	Lost bool
}
