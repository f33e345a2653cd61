package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlogWriter_JSON(t *testing.T) {
	require := require.New(t)
	t.Setenv("ENV", "")

	var buf bytes.Buffer
	l := NewSlogWriter(&buf, InfoLevel, false)
	require.Equal(InfoLevel, l.Level())

	l.Debug("hidden")
	l.With("component", "master").Info("slaves discovered", "count", 8)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(lines, 1)

	var rec map[string]any
	require.NoError(json.Unmarshal([]byte(lines[0]), &rec))
	require.Equal("slaves discovered", rec["msg"])
	require.Equal("master", rec["component"])
	require.EqualValues(8, rec["count"])
	require.Contains(rec, "ts")

	// children share the level of their parent
	child := l.With("component", "monitor")
	l.SetLevel(DebugLevel)
	require.Equal(DebugLevel, child.Level())
	child.Debug("pass")
	require.Contains(buf.String(), `"msg":"pass"`)
}

func TestSetDefault(t *testing.T) {
	require := require.New(t)

	prev := GetLogger()
	t.Cleanup(func() { SetDefault(prev) })

	m := NewMockLogger()
	m.On("Warn", "working counter mismatch", []any{"expected", 16}).Return().Once()
	SetDefault(m)
	SetDefault(nil)
	require.Same(m, GetLogger())

	Warn("working counter mismatch", "expected", 16)
	m.AssertExpectations(t)
}
