package calibration

import (
	"context"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-wheelcal/fieldbus"
	"github.com/arloliu/go-wheelcal/internal/simbus"
	"github.com/arloliu/go-wheelcal/logger"
)

const testTarget = 2

// testDevice is a calibration target backed by a simulated bus parameter channel and a private output buffer.
type testDevice struct {
	bus      *simbus.Bus
	position int

	mu      sync.Mutex
	outputs []byte
	history [][]byte
}

var _ fieldbus.Device = (*testDevice)(nil)

func newTestDevice(t *testing.T) *testDevice {
	t.Helper()

	bus := simbus.New(simbus.DefaultTopology(), simbus.WithFirmware())
	require.NoError(t, bus.Open("eth0"))

	out := make([]byte, simbus.WheelOutputBytes)
	for i := range out {
		out[i] = byte(0xa0 + i)
	}

	return &testDevice{bus: bus, position: testTarget, outputs: out}
}

func (d *testDevice) Position() int { return d.position }

func (d *testDevice) Outputs() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return slices.Clone(d.outputs), nil
}

func (d *testDevice) SetOutputs(buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(buf) != len(d.outputs) {
		return fieldbus.ErrInvalidBuffer
	}
	d.outputs = slices.Clone(buf)
	d.history = append(d.history, slices.Clone(buf))

	return nil
}

func (d *testDevice) History() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	return slices.Clone(d.history)
}

func (d *testDevice) ReadParam(ctx context.Context, index uint16, subIndex uint8) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.bus.ReadParam(d.position, index, subIndex)
}

func (d *testDevice) WriteParam(ctx context.Context, index uint16, subIndex uint8, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.bus.WriteParam(d.position, index, subIndex, data)
}

// modeWrites returns the values written to the mode register of object.
func (d *testDevice) modeWrites(object uint16) []byte {
	var out []byte
	for _, c := range d.bus.ParamWrites(d.position, object, SubMode) {
		out = append(out, c.Data...)
	}
	return out
}

func (d *testDevice) statusReads(object uint16) int {
	n := 0
	for _, c := range d.bus.CallsOf("readparam") {
		if c.Slave == d.position && c.Index == object && c.SubIndex == SubStatus {
			n++
		}
	}
	return n
}

func quietLogger() *logger.MockLogger {
	return logger.NewMockLogger().AllowAll()
}

func newFailingBus(t *testing.T, op string, err error) *simbus.Bus {
	t.Helper()

	bus := simbus.New(simbus.DefaultTopology(), simbus.WithFirmware(), simbus.WithFailure(op, err))
	require.NoError(t, bus.Open("eth0"))

	return bus
}
