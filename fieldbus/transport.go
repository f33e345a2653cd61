package fieldbus

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// AllSlaves addresses every slave of the bus in WriteState.
const AllSlaves = -1

// ImageLayout is the result of mapping the process image.
type ImageLayout struct {
	// OutputSizes holds the output buffer size of each slave, indexed by position.
	OutputSizes []int
	// InputSizes holds the input buffer size of each slave, indexed by position.
	InputSizes []int
	// ExpectedWKC is the working counter of a cycle in which every slave processed the frame.
	ExpectedWKC int
}

// Transport is the contract of a bus driver.
//
// Implementations are not required to be safe for concurrent use; the master session serializes
// every call that touches the wire.
type Transport interface {
	// Open binds the driver to a network interface.
	Open(iface string) error
	// Close releases the interface. It must be safe to call on a driver that failed to open.
	Close() error

	// Discover enumerates the slaves and leaves them in PREOP.
	Discover() ([]SlaveInfo, error)
	// MapProcessImage maps every slave's process data into the image.
	MapProcessImage() (ImageLayout, error)

	// WriteState requests a state from one slave, or from every slave with AllSlaves.
	WriteState(slave int, state State) error
	// ReadState reads the current state of one slave.
	ReadState(slave int) (State, error)
	// ReadStates reads the current state of every slave, indexed by position.
	ReadStates() ([]State, error)

	// SendProcessData transmits one cyclic frame built from outputs, indexed by position.
	SendProcessData(outputs [][]byte) error
	// ReceiveProcessData waits up to timeout for the frame, copies received inputs into inputs
	// and returns the actual working counter.
	ReceiveProcessData(inputs [][]byte, timeout time.Duration) (int, error)

	// Reconfigure re-runs the configuration of one slave and brings it back to its previous state.
	Reconfigure(slave int, timeout time.Duration) error
	// Recover re-assigns the station address of a lost slave.
	Recover(slave int, timeout time.Duration) error

	// ReadParam reads the (index, subIndex) object of a slave's parameter channel.
	ReadParam(slave int, index uint16, subIndex uint8) ([]byte, error)
	// WriteParam writes the (index, subIndex) object of a slave's parameter channel.
	WriteParam(slave int, index uint16, subIndex uint8, data []byte) error
}

// ParamChannel is a parameter channel bound to one slave.
type ParamChannel interface {
	ReadParam(ctx context.Context, index uint16, subIndex uint8) ([]byte, error)
	WriteParam(ctx context.Context, index uint16, subIndex uint8, data []byte) error
}

// Device is the calibration target as seen by a calibration procedure: its parameter channel and its
// output buffer in the shared process image.
type Device interface {
	ParamChannel

	// Position returns the bus position of the device.
	Position() int
	// Outputs returns a copy of the device's current output buffer.
	Outputs() ([]byte, error)
	// SetOutputs installs buf as the device's output buffer. The cyclic loop transmits it on its next tick.
	SetOutputs(buf []byte) error
}

// DriverFactory creates a fresh, unopened driver.
type DriverFactory func() Transport

var drivers = xsync.NewMapOf[string, DriverFactory]()

// RegisterDriver makes a driver available under name. Registering a name twice replaces the factory.
func RegisterDriver(name string, factory DriverFactory) {
	if factory == nil {
		panic("fieldbus: RegisterDriver factory is nil")
	}
	drivers.Store(name, factory)
}

// NewDriver creates a driver registered under name.
func NewDriver(name string) (Transport, error) {
	factory, ok := drivers.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDriverNotFound, name)
	}

	return factory(), nil
}

// Drivers returns the sorted names of the registered drivers.
func Drivers() []string {
	names := make([]string, 0, drivers.Size())
	drivers.Range(func(name string, _ DriverFactory) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)

	return names
}
