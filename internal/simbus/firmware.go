package simbus

import (
	"sync"
)

// Wheel firmware object dictionary.
const (
	calibrationObjectFirst uint16 = 0x8100
	calibrationObjectLast  uint16 = 0x8102
	calibrationModeSub     uint8  = 8
	calibrationStatusSub   uint8  = 9

	commitObject uint16 = 0x8fff
	commitSub    uint8  = 1

	statusIdle       byte = 0
	statusRunning    byte = 3
	statusSuccess    byte = 7
	firmwareRunReads      = 3
)

type channelKey struct {
	slave int
	index uint16
}

type channelState struct {
	mode   byte
	reads  int
	status byte
}

// firmware answers calibration requests the way a wheel module does: an armed channel reports
// "running" for a few status reads and then success.
type firmware struct {
	mu       sync.Mutex
	channels map[channelKey]*channelState
	commits  map[int]int
}

func newFirmware() *firmware {
	return &firmware{
		channels: make(map[channelKey]*channelState),
		commits:  make(map[int]int),
	}
}

func isCalibrationObject(index uint16) bool {
	return index >= calibrationObjectFirst && index <= calibrationObjectLast
}

func (f *firmware) write(key paramKey, data []byte) {
	if len(data) == 0 {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case isCalibrationObject(key.index) && key.subIndex == calibrationModeSub:
		ch := f.channel(key)
		ch.mode = data[0]
		ch.reads = 0
		if ch.mode != 0 {
			ch.status = statusRunning
		}

	case key.index == commitObject && key.subIndex == commitSub && data[0] == 1:
		f.commits[key.slave]++
	}
}

func (f *firmware) read(key paramKey) ([]byte, bool) {
	if !isCalibrationObject(key.index) || key.subIndex != calibrationStatusSub {
		return nil, false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	ch := f.channel(key)
	if ch.mode != 0 {
		ch.reads++
		if ch.reads >= firmwareRunReads {
			ch.status = statusSuccess
		}
	}

	return []byte{ch.status}, true
}

func (f *firmware) channel(key paramKey) *channelState {
	ck := channelKey{slave: key.slave, index: key.index}
	ch, ok := f.channels[ck]
	if !ok {
		ch = &channelState{status: statusIdle}
		f.channels[ck] = ch
	}
	return ch
}

// Commits returns how many times the firmware of slave stored its calibration.
func (b *Bus) Commits(slave int) int {
	if b.firmware == nil {
		return 0
	}

	b.firmware.mu.Lock()
	defer b.firmware.mu.Unlock()

	return b.firmware.commits[slave]
}
