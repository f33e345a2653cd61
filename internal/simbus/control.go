package simbus

import (
	"slices"
	"time"

	"github.com/arloliu/go-wheelcal/fieldbus"
)

// Hold pins slave at state: transition requests, reconfiguration and recovery no longer change it.
func (b *Bus) Hold(slave int, state fieldbus.State) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.states[slave] = state
	b.held[slave] = true
}

// Release lets a held slave accept transitions again.
func (b *Bus) Release(slave int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.held, slave)
}

// Fail makes the named operation fail with err from now on. A nil err clears the failure.
func (b *Bus) Fail(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		delete(b.failOps, op)
		return
	}
	b.failOps[op] = err
}

// SetState forces the current state of slave.
func (b *Bus) SetState(slave int, state fieldbus.State) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.states[slave] = state
}

// State returns the current state of slave without consuming scripts.
func (b *Bus) State(slave int) fieldbus.State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.states[slave]
}

// ScriptStates makes the next state reads of slave return states in order.
// The last scripted state stays as the slave's state.
func (b *Bus) ScriptStates(slave int, states ...fieldbus.State) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stateScripts[slave] = slices.Clone(states)
}

// ScriptParam makes the next reads of (index, subIndex) on slave return values in order.
// The last value is repeated once the script is exhausted.
func (b *Bus) ScriptParam(slave int, index uint16, subIndex uint8, values ...[]byte) {
	if len(values) == 0 {
		b.scripts.Delete(paramKey{slave: slave, index: index, subIndex: subIndex})
		return
	}
	b.scripts.Store(paramKey{slave: slave, index: index, subIndex: subIndex}, &readScript{values: slices.Clone(values)})
}

// SetParam stores the value of a parameter object.
func (b *Bus) SetParam(slave int, index uint16, subIndex uint8, value []byte) {
	b.params.Store(paramKey{slave: slave, index: index, subIndex: subIndex}, slices.Clone(value))
}

// Param returns the last written value of a parameter object.
func (b *Bus) Param(slave int, index uint16, subIndex uint8) ([]byte, bool) {
	v, ok := b.params.Load(paramKey{slave: slave, index: index, subIndex: subIndex})
	return slices.Clone(v), ok
}

// SetWKCOffset adds offset to the working counter of every following cycle.
func (b *Bus) SetWKCOffset(offset int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.wkcOffset = offset
}

// SetReceiveDelay delays every receive by d.
func (b *Bus) SetReceiveDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.recvDelay = d
}

// SetInputs sets the input data the slave returns in every cycle.
func (b *Bus) SetInputs(slave int, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if slave < len(b.inputs) {
		copy(b.inputs[slave], data)
	}
}

// LastOutputs returns the output data of slave in the last transmitted frame.
func (b *Bus) LastOutputs(slave int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if slave >= len(b.lastOutputs) {
		return nil
	}
	return slices.Clone(b.lastOutputs[slave])
}

// Calls returns a copy of the recorded calls.
func (b *Bus) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()

	return slices.Clone(b.calls)
}

// CallsOf returns the recorded calls of operation op.
func (b *Bus) CallsOf(op string) []Call {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Call
	for _, c := range b.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// ParamWrites returns the recorded writes to (index, subIndex) on slave.
func (b *Bus) ParamWrites(slave int, index uint16, subIndex uint8) []Call {
	var out []Call
	for _, c := range b.CallsOf("writeparam") {
		if c.Slave == slave && c.Index == index && c.SubIndex == subIndex {
			out = append(out, c)
		}
	}
	return out
}

// StateWrites returns the recorded state requests addressed to slave.
func (b *Bus) StateWrites(slave int) []Call {
	var out []Call
	for _, c := range b.CallsOf("writestate") {
		if c.Slave == slave {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls clears the recorded calls.
func (b *Bus) ResetCalls() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = nil
}
