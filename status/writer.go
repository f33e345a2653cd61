package status

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// RegisterWriter is the subset of a Modbus client the writer uses.
type RegisterWriter interface {
	WriteMultipleRegisters(address, quantity uint16, value []byte) (results []byte, err error)
}

// Writer delivers snapshots into a status block of holding registers.
//
// The first delivery, and the first one after any failure, writes the full block including the
// session name. Other deliveries only rewrite the live slots that changed.
type Writer struct {
	mu       sync.Mutex
	client   RegisterWriter
	baseAddr uint16
	nameRegs []uint16

	needFull bool
	last     Snapshot
	closer   func() error
}

// NewWriter creates a writer for the block starting at baseAddr.
func NewWriter(client RegisterWriter, baseAddr uint16, name string) *Writer {
	return &Writer{
		client:   client,
		baseAddr: baseAddr,
		nameRegs: EncodeName(name),
		needFull: true,
	}
}

// Config is the Modbus TCP endpoint of a status block.
type Config struct {
	Endpoint string
	UnitID   uint8
	BaseAddr uint16
	Timeout  time.Duration
	Name     string
}

// Dial connects to a Modbus TCP endpoint and returns a writer for its status block.
func Dial(cfg Config) (*Writer, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("status: endpoint required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("status: connect %s: %w", cfg.Endpoint, err)
	}

	w := NewWriter(modbus.NewClient(h), cfg.BaseAddr, cfg.Name)
	w.closer = h.Close

	return w, nil
}

// Close closes the underlying connection, if the writer owns one.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closer == nil {
		return nil
	}
	return w.closer()
}

// Export delivers s into the status block.
func (w *Writer) Export(s Snapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.client == nil {
		return errors.New("status: writer has no client")
	}

	if w.needFull {
		regs := make([]uint16, BlockRegisters)
		copy(regs, Encode(s))
		copy(regs[SlotNameStart:], w.nameRegs)

		if err := w.write(w.baseAddr, regs); err != nil {
			return fmt.Errorf("status: full block write failed: %w", err)
		}

		w.needFull = false
		w.last = s
		return nil
	}

	prev := Encode(w.last)
	cur := Encode(s)

	first, last := -1, -1
	for i := range cur {
		if cur[i] != prev[i] {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return nil
	}

	if err := w.write(w.baseAddr+uint16(first), cur[first:last+1]); err != nil {
		// any failure introduces doubt, re-assert on next success
		w.needFull = true
		return fmt.Errorf("status: slots %d-%d write failed: %w", first, last, err)
	}
	w.last = s

	return nil
}

func (w *Writer) write(addr uint16, regs []uint16) error {
	payload := make([]byte, 2*len(regs))
	for i, r := range regs {
		payload[2*i] = byte(r >> 8)
		payload[2*i+1] = byte(r)
	}

	_, err := w.client.WriteMultipleRegisters(addr, uint16(len(regs)), payload)
	return err
}
