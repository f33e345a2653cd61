package calibration

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-wheelcal/fieldbus"
	"github.com/arloliu/go-wheelcal/internal/simbus"
)

func TestDefaultDirectory(t *testing.T) {
	require := require.New(t)

	dir := DefaultDirectory()
	require.Equal(8, dir.Len())

	for pos := 2; pos <= 5; pos++ {
		entry, ok := dir.Lookup(pos)
		require.True(ok)
		require.Equal(KindWheel, entry.Kind)
		require.EqualValues(WheelMinRevision, entry.MinRevision)
		require.NotNil(entry.Setup)
	}

	coupler, ok := dir.Lookup(0)
	require.True(ok)
	require.Nil(coupler.Setup)

	// matches the simulated wheel bus
	bus := simbus.New(simbus.DefaultTopology())
	require.NoError(bus.Open("eth0"))
	infos, err := bus.Discover()
	require.NoError(err)
	for _, info := range infos {
		_, err := dir.Check(info)
		require.NoError(err, "position %d", info.Position)
	}

	old := infos[3]
	old.Revision = WheelMinRevision - 1
	_, err = dir.Check(old)
	require.ErrorIs(err, fieldbus.ErrSlaveMismatch)
}

func TestWheelSetup(t *testing.T) {
	require := require.New(t)

	dev := newTestDevice(t)
	require.NoError(WheelSetup(context.Background(), dev, fieldbus.SlaveInfo{Position: testTarget}))

	rx := dev.bus.ParamWrites(testTarget, rxPDOAssign, assignFirst)
	require.Len(rx, 1)
	require.Equal(wheelRxPDO, binary.LittleEndian.Uint16(rx[0].Data))

	count, ok := dev.bus.Param(testTarget, txPDOAssign, assignCount)
	require.True(ok)
	require.Equal([]byte{1}, count)

	require.Contains(Hooks(), WheelSetupHook)
}

func TestCheckTarget(t *testing.T) {
	require := require.New(t)

	dir := DefaultDirectory()
	for pos := 2; pos <= 5; pos++ {
		require.NoError(CheckTarget(dir, pos))
	}

	for _, pos := range []int{0, 1, 6, 7, 8} {
		require.ErrorIs(CheckTarget(dir, pos), fieldbus.ErrSlaveMismatch, "position %d", pos)
	}
	require.ErrorContains(CheckTarget(dir, 0), "coupler")
}
