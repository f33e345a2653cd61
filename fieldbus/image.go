package fieldbus

import (
	"fmt"
	"sync/atomic"

	"github.com/arloliu/go-wheelcal/internal/util"
)

// ProcessImage holds the per-slave output and input buffers exchanged every cycle.
//
// Stored buffers are never mutated in place: every update installs a private copy through an atomic
// pointer swap, so readers always see a complete buffer.
type ProcessImage struct {
	outputs []atomic.Pointer[[]byte]
	inputs  []atomic.Pointer[[]byte]
}

// NewProcessImage allocates zeroed buffers for layout.
func NewProcessImage(layout ImageLayout) *ProcessImage {
	n := max(len(layout.OutputSizes), len(layout.InputSizes))
	img := &ProcessImage{
		outputs: make([]atomic.Pointer[[]byte], n),
		inputs:  make([]atomic.Pointer[[]byte], n),
	}

	for i := range n {
		out := make([]byte, sizeAt(layout.OutputSizes, i))
		in := make([]byte, sizeAt(layout.InputSizes, i))
		img.outputs[i].Store(&out)
		img.inputs[i].Store(&in)
	}

	return img
}

func sizeAt(sizes []int, i int) int {
	if i < len(sizes) {
		return sizes[i]
	}
	return 0
}

// SlaveCount returns the number of slaves in the image.
func (p *ProcessImage) SlaveCount() int { return len(p.outputs) }

// Outputs returns a copy of the output buffer of the slave at position.
func (p *ProcessImage) Outputs(position int) ([]byte, error) {
	if err := p.checkPosition(position); err != nil {
		return nil, err
	}

	return util.CloneSlice(*p.outputs[position].Load(), 0), nil
}

// SetOutputs installs a copy of buf as the output buffer of the slave at position.
// buf must have the mapped size.
func (p *ProcessImage) SetOutputs(position int, buf []byte) error {
	if err := p.checkPosition(position); err != nil {
		return err
	}

	cur := p.outputs[position].Load()
	if len(buf) != len(*cur) {
		return fmt.Errorf("%w: slave %d output size is %d, got %d", ErrInvalidBuffer, position, len(*cur), len(buf))
	}

	clone := util.CloneSlice(buf, 0)
	p.outputs[position].Store(&clone)

	return nil
}

// Inputs returns a copy of the input buffer of the slave at position.
func (p *ProcessImage) Inputs(position int) ([]byte, error) {
	if err := p.checkPosition(position); err != nil {
		return nil, err
	}

	return util.CloneSlice(*p.inputs[position].Load(), 0), nil
}

// OutputFrames returns the current output buffers indexed by position.
// The returned slices are shared and must not be modified.
func (p *ProcessImage) OutputFrames() [][]byte {
	frames := make([][]byte, len(p.outputs))
	for i := range p.outputs {
		frames[i] = *p.outputs[i].Load()
	}

	return frames
}

// NewInputFrames returns zeroed input buffers with the mapped sizes, ready to be filled by a receive.
func (p *ProcessImage) NewInputFrames() [][]byte {
	frames := make([][]byte, len(p.inputs))
	for i := range p.inputs {
		frames[i] = make([]byte, len(*p.inputs[i].Load()))
	}

	return frames
}

// StoreInputs takes ownership of frames and publishes them as the current input buffers.
func (p *ProcessImage) StoreInputs(frames [][]byte) {
	for i := range min(len(frames), len(p.inputs)) {
		frame := frames[i]
		p.inputs[i].Store(&frame)
	}
}

func (p *ProcessImage) checkPosition(position int) error {
	if position < 0 || position >= len(p.outputs) {
		return fmt.Errorf("%w: slave %d is not mapped", ErrInvalidBuffer, position)
	}
	return nil
}
