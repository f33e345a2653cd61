// Package simbus implements a simulated bus driver.
//
// The simulated bus keeps a state machine and a parameter dictionary per slave, computes the working
// counter from the slave states, records driver calls, and lets tests script state reads,
// parameter reads and faults. It registers itself as the "sim" driver.
package simbus

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-wheelcal/fieldbus"
)

// DriverName is the name the simulated driver is registered under.
const DriverName = "sim"

// DriverCallLimit bounds the call log of buses created through the driver registry.
const DriverCallLimit = 1024

func init() {
	fieldbus.RegisterDriver(DriverName, func() fieldbus.Transport {
		return New(DefaultTopology(), WithFirmware(), WithCallLimit(DriverCallLimit))
	})
}

var (
	errNotOpen     = errors.New("simbus: bus not open")
	errNoResponse  = errors.New("simbus: slave does not respond")
	errNotMapped   = errors.New("simbus: process image not mapped")
	errNoSuchSlave = errors.New("simbus: no such slave")
)

// SlaveSpec describes one simulated slave.
type SlaveSpec struct {
	Info       fieldbus.SlaveInfo
	OutputSize int
	InputSize  int
}

// Call is one recorded driver call.
type Call struct {
	Op       string
	Slave    int
	State    fieldbus.State
	Index    uint16
	SubIndex uint8
	Data     []byte
}

type paramKey struct {
	slave    int
	index    uint16
	subIndex uint8
}

type readScript struct {
	mu     sync.Mutex
	values [][]byte
}

func (r *readScript) next() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := r.values[0]
	if len(r.values) > 1 {
		r.values = r.values[1:]
	}
	return slices.Clone(v)
}

// Bus is a simulated bus driver.
type Bus struct {
	mu           sync.Mutex
	specs        []SlaveSpec
	opened       bool
	mapped       bool
	iface        string
	states       []fieldbus.State
	held         map[int]bool
	stateScripts map[int][]fieldbus.State
	wkcOffset    int
	recvDelay    time.Duration
	inputs       [][]byte
	lastOutputs  [][]byte
	calls        []Call
	callLimit    int
	failOps      map[string]error
	firmware     *firmware

	params  *xsync.MapOf[paramKey, []byte]
	scripts *xsync.MapOf[paramKey, *readScript]
}

var _ fieldbus.Transport = (*Bus)(nil)

// Option configures a Bus.
type Option func(*Bus)

// WithFirmware enables the simulated wheel firmware, which answers calibration requests on the
// wheel modules' parameter channels.
func WithFirmware() Option {
	return func(b *Bus) { b.firmware = newFirmware() }
}

// WithFailure makes the named operation ("open", "discover", "map", "close", "writestate", ...) fail with err.
func WithFailure(op string, err error) Option {
	return func(b *Bus) { b.failOps[op] = err }
}

// WithCallLimit keeps at most the n most recent calls in the call log. Zero keeps every call.
func WithCallLimit(n int) Option {
	return func(b *Bus) { b.callLimit = max(n, 0) }
}

// New creates a simulated bus with the given slaves.
func New(specs []SlaveSpec, opts ...Option) *Bus {
	b := &Bus{
		specs:        slices.Clone(specs),
		held:         make(map[int]bool),
		stateScripts: make(map[int][]fieldbus.State),
		failOps:      make(map[string]error),
		params:       xsync.NewMapOf[paramKey, []byte](),
		scripts:      xsync.NewMapOf[paramKey, *readScript](),
	}

	b.states = make([]fieldbus.State, len(specs))
	for i := range b.states {
		b.states[i] = fieldbus.StateInit
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Open implements fieldbus.Transport.
func (b *Bus) Open(iface string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.record(Call{Op: "open"})
	if err := b.failOps["open"]; err != nil {
		return err
	}
	if iface == "" {
		return errors.New("simbus: empty interface name")
	}

	b.iface = iface
	b.opened = true

	return nil
}

// Close implements fieldbus.Transport.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.record(Call{Op: "close"})
	b.opened = false
	b.mapped = false

	return b.failOps["close"]
}

// Discover implements fieldbus.Transport.
func (b *Bus) Discover() ([]fieldbus.SlaveInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.record(Call{Op: "discover"})
	if err := b.check("discover"); err != nil {
		return nil, err
	}

	infos := make([]fieldbus.SlaveInfo, len(b.specs))
	for i, spec := range b.specs {
		infos[i] = spec.Info
		infos[i].Position = i
		if !b.held[i] {
			b.states[i] = fieldbus.StatePreOp
		}
	}

	return infos, nil
}

// MapProcessImage implements fieldbus.Transport.
func (b *Bus) MapProcessImage() (fieldbus.ImageLayout, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.record(Call{Op: "map"})
	if err := b.check("map"); err != nil {
		return fieldbus.ImageLayout{}, err
	}

	layout := fieldbus.ImageLayout{
		OutputSizes: make([]int, len(b.specs)),
		InputSizes:  make([]int, len(b.specs)),
	}
	b.inputs = make([][]byte, len(b.specs))
	for i, spec := range b.specs {
		layout.OutputSizes[i] = spec.OutputSize
		layout.InputSizes[i] = spec.InputSize
		b.inputs[i] = make([]byte, spec.InputSize)
		if spec.OutputSize > 0 {
			layout.ExpectedWKC += 2
		}
		if spec.InputSize > 0 {
			layout.ExpectedWKC++
		}
	}
	b.mapped = true

	return layout, nil
}

// WriteState implements fieldbus.Transport.
func (b *Bus) WriteState(slave int, state fieldbus.State) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.record(Call{Op: "writestate", Slave: slave, State: state})
	if err := b.check("writestate"); err != nil {
		return err
	}

	if slave == fieldbus.AllSlaves {
		for i := range b.states {
			b.applyState(i, state)
		}
		return nil
	}

	if slave < 0 || slave >= len(b.states) {
		return errNoSuchSlave
	}
	b.applyState(slave, state)

	return nil
}

func (b *Bus) applyState(slave int, state fieldbus.State) {
	if b.held[slave] || b.states[slave].IsNone() {
		return
	}

	cur := b.states[slave]
	if cur.HasError() && state&fieldbus.StateAck == 0 {
		// an error must be acknowledged before any other transition
		return
	}
	b.states[slave] = state.Base()
}

// ReadState implements fieldbus.Transport.
func (b *Bus) ReadState(slave int) (fieldbus.State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.record(Call{Op: "readstate", Slave: slave})
	if err := b.check("readstate"); err != nil {
		return fieldbus.StateNone, err
	}
	if slave < 0 || slave >= len(b.states) {
		return fieldbus.StateNone, errNoSuchSlave
	}

	return b.nextState(slave), nil
}

// ReadStates implements fieldbus.Transport.
func (b *Bus) ReadStates() ([]fieldbus.State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.record(Call{Op: "readstates"})
	if err := b.check("readstates"); err != nil {
		return nil, err
	}

	states := make([]fieldbus.State, len(b.states))
	for i := range b.states {
		states[i] = b.nextState(i)
	}

	return states, nil
}

// nextState pops the state script of slave, if any, and returns the current state.
func (b *Bus) nextState(slave int) fieldbus.State {
	if script := b.stateScripts[slave]; len(script) > 0 {
		b.states[slave] = script[0]
		if len(script) > 1 {
			b.stateScripts[slave] = script[1:]
		} else {
			delete(b.stateScripts, slave)
		}
	}

	return b.states[slave]
}

// SendProcessData implements fieldbus.Transport.
func (b *Bus) SendProcessData(outputs [][]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check("send"); err != nil {
		return err
	}
	if !b.mapped {
		return errNotMapped
	}

	b.lastOutputs = make([][]byte, len(outputs))
	for i, out := range outputs {
		b.lastOutputs[i] = slices.Clone(out)
	}

	return nil
}

// ReceiveProcessData implements fieldbus.Transport.
func (b *Bus) ReceiveProcessData(inputs [][]byte, timeout time.Duration) (int, error) {
	b.mu.Lock()
	delay := b.recvDelay
	b.mu.Unlock()

	if delay > 0 {
		time.Sleep(min(delay, timeout))
		if delay > timeout {
			return 0, nil
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check("receive"); err != nil {
		return 0, err
	}
	if !b.mapped {
		return 0, errNotMapped
	}

	wkc := 0
	for i, spec := range b.specs {
		st := b.states[i]
		if st.HasError() || st.IsNone() {
			continue
		}
		if spec.OutputSize > 0 && st.Base() == fieldbus.StateOp {
			wkc += 2
		}
		if spec.InputSize > 0 && st.Base() >= fieldbus.StateSafeOp {
			wkc++
			if i < len(inputs) {
				copy(inputs[i], b.inputs[i])
			}
		}
	}

	return max(wkc+b.wkcOffset, 0), nil
}

// Reconfigure implements fieldbus.Transport.
func (b *Bus) Reconfigure(slave int, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.record(Call{Op: "reconfigure", Slave: slave})
	if err := b.check("reconfigure"); err != nil {
		return err
	}
	if slave < 0 || slave >= len(b.states) {
		return errNoSuchSlave
	}
	if b.states[slave].IsNone() || b.held[slave] {
		return errNoResponse
	}
	b.states[slave] = fieldbus.StateSafeOp

	return nil
}

// Recover implements fieldbus.Transport.
func (b *Bus) Recover(slave int, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.record(Call{Op: "recover", Slave: slave})
	if err := b.check("recover"); err != nil {
		return err
	}
	if slave < 0 || slave >= len(b.states) {
		return errNoSuchSlave
	}
	if b.held[slave] {
		return errNoResponse
	}
	b.states[slave] = fieldbus.StateInit

	return nil
}

// ReadParam implements fieldbus.Transport.
func (b *Bus) ReadParam(slave int, index uint16, subIndex uint8) ([]byte, error) {
	b.mu.Lock()
	b.record(Call{Op: "readparam", Slave: slave, Index: index, SubIndex: subIndex})
	err := b.check("readparam")
	fw := b.firmware
	b.mu.Unlock()

	if err != nil {
		return nil, err
	}

	key := paramKey{slave: slave, index: index, subIndex: subIndex}
	if script, ok := b.scripts.Load(key); ok {
		return script.next(), nil
	}
	if fw != nil {
		if v, ok := fw.read(key); ok {
			return v, nil
		}
	}
	if v, ok := b.params.Load(key); ok {
		return slices.Clone(v), nil
	}

	return nil, fmt.Errorf("simbus: slave %d object 0x%04x:%d does not exist", slave, index, subIndex)
}

// WriteParam implements fieldbus.Transport.
func (b *Bus) WriteParam(slave int, index uint16, subIndex uint8, data []byte) error {
	b.mu.Lock()
	b.record(Call{Op: "writeparam", Slave: slave, Index: index, SubIndex: subIndex, Data: slices.Clone(data)})
	err := b.check("writeparam")
	fw := b.firmware
	b.mu.Unlock()

	if err != nil {
		return err
	}

	key := paramKey{slave: slave, index: index, subIndex: subIndex}
	b.params.Store(key, slices.Clone(data))
	if fw != nil {
		fw.write(key, data)
	}

	return nil
}

func (b *Bus) check(op string) error {
	if err := b.failOps[op]; err != nil {
		return err
	}
	if !b.opened {
		return errNotOpen
	}
	return nil
}

func (b *Bus) record(c Call) {
	if b.callLimit > 0 && len(b.calls) >= b.callLimit {
		keep := b.callLimit / 2
		b.calls = append(b.calls[:0], b.calls[len(b.calls)-keep:]...)
	}
	b.calls = append(b.calls, c)
}
