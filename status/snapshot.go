package status

// Snapshot is exactly what the writer is allowed to deliver.
type Snapshot struct {
	Health      uint16
	Phase       uint16
	LowestState uint16
	ExpectedWKC uint16
	ActualWKC   uint16
	LostSlaves  uint16
	Target      uint16
}

// Encode converts a Snapshot into the live slots of a status block.
// Layout is protocol-locked. No IO.
func Encode(s Snapshot) []uint16 {
	regs := make([]uint16, slotLiveEnd)

	regs[SlotHealth] = s.Health
	regs[SlotPhase] = s.Phase
	regs[SlotLowestState] = s.LowestState
	regs[SlotExpectedWKC] = s.ExpectedWKC
	regs[SlotActualWKC] = s.ActualWKC
	regs[SlotLostSlaves] = s.LostSlaves
	regs[SlotTarget] = s.Target

	return regs
}

// EncodeName packs up to NameMaxChars ASCII characters into SlotNameSlots registers,
// two characters per register in big-endian order. Non printable characters become '?'.
func EncodeName(name string) []uint16 {
	out := make([]uint16, SlotNameSlots)

	b := []byte(name)
	if len(b) > NameMaxChars {
		b = b[:NameMaxChars]
	}

	for i := range b {
		if b[i] < 0x20 || b[i] > 0x7e {
			b[i] = '?'
		}
	}

	for i := 0; i < NameMaxChars; i += 2 {
		var hi, lo byte
		if i < len(b) {
			hi = b[i]
		}
		if i+1 < len(b) {
			lo = b[i+1]
		}
		out[i/2] = uint16(hi)<<8 | uint16(lo)
	}

	return out
}
