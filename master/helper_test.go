package master

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-wheelcal/calibration"
	"github.com/arloliu/go-wheelcal/fieldbus"
	"github.com/arloliu/go-wheelcal/internal/simbus"
	"github.com/arloliu/go-wheelcal/logger"
	"github.com/arloliu/go-wheelcal/status"
)

const testTarget = 2

func testOptions(extra ...Option) []Option {
	opts := []Option{
		WithCycleTime(2 * time.Millisecond),
		WithReceiveTimeout(2 * time.Millisecond),
		WithMonitorInterval(2 * time.Millisecond),
		WithStateTimeout(200 * time.Millisecond),
		WithStatePollInterval(2 * time.Millisecond),
		WithOperationalRetries(50, 5*time.Millisecond),
		WithRecoveryTimeout(10 * time.Millisecond),
		WithShutdownTimeout(time.Second),
		WithLogger(logger.NewMockLogger().AllowAll()),
	}
	return append(opts, extra...)
}

func newTestSession(t *testing.T, bus fieldbus.Transport, opts ...Option) *Session {
	t.Helper()

	s, err := NewSession(context.Background(), bus, calibration.DefaultDirectory(), testTarget, testOptions(opts...)...)
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)

	return s
}

// discoveredSession returns a session whose slaves are discovered and mapped and set to OP, without
// running the background loops.
func discoveredSession(t *testing.T) (*Session, *simbus.Bus) {
	t.Helper()
	require := require.New(t)

	bus := simbus.New(simbus.DefaultTopology(), simbus.WithFirmware())
	s := newTestSession(t, bus)

	require.NoError(s.Open("eth0"))
	require.NoError(s.discover(context.Background()))
	require.NoError(s.mapImage())
	require.NoError(bus.WriteState(fieldbus.AllSlaves, fieldbus.StateOp))

	return s, bus
}

func countInit(bus *simbus.Bus) int {
	n := 0
	for _, c := range bus.StateWrites(fieldbus.AllSlaves) {
		if c.State == fieldbus.StateInit {
			n++
		}
	}
	return n
}

// testProcedure is a Procedure that runs fn.
type testProcedure struct {
	fn     func(ctx context.Context, dev fieldbus.Device) error
	called atomic.Bool
}

func (p *testProcedure) Name() string { return "test procedure" }

func (p *testProcedure) Run(ctx context.Context, dev fieldbus.Device) error {
	p.called.Store(true)
	if p.fn == nil {
		return nil
	}
	return p.fn(ctx, dev)
}

// snapshotRecorder is a StatusExporter that keeps every snapshot.
type snapshotRecorder struct {
	mu    sync.Mutex
	snaps []status.Snapshot
}

func (r *snapshotRecorder) Export(snap status.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snaps = append(r.snaps, snap)
	return nil
}

func (r *snapshotRecorder) last() (status.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.snaps) == 0 {
		return status.Snapshot{}, false
	}
	return r.snaps[len(r.snaps)-1], true
}

// countLogCalls counts the calls of method on l logging msg.
func countLogCalls(l *logger.MockLogger, method string, msg string) int {
	n := 0
	for _, c := range l.Calls {
		if c.Method == method && len(c.Arguments) > 0 && c.Arguments[0] == msg {
			n++
		}
	}
	return n
}
