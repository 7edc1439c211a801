package instrument

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}

	return out
}

func TestHandler_MasksAndCorrelates(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(newHandler(&Config{
		ServiceName: "ledgerguard",
		MaskFields:  []string{"PIN", " code "},
		LogOutput:   &buf,
	}, nil))

	ctx := SetCorrelationID(context.Background(), "attempt-1")
	logger.InfoContext(ctx, "login", "account_id", "alice", "pin", "1234",
		slog.Group("req", slog.String("code", "123456")),
		"extra", map[string]string{"code": "999999", "kind": "deposit"})
	logger.With("pin", "0000").Info("bound")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)

	first := lines[0]
	assert.Equal(t, "login", first["msg"])
	assert.Equal(t, "INFO", first["severity"])
	assert.Equal(t, "alice", first["account_id"])
	assert.Equal(t, "***", first["pin"])
	assert.Equal(t, map[string]any{"code": "***"}, first["req"])
	assert.Equal(t, map[string]any{"code": "***", "kind": "deposit"}, first["extra"])
	assert.Equal(t, "attempt-1", first["_cID"])
	assert.Equal(t, "ledgerguard", first["service"])
	assert.Contains(t, first, "ts")

	assert.Equal(t, "***", lines[1]["pin"])
	assert.NotContains(t, lines[1], "_cID")
}

func TestHandler_Level(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(newHandler(&Config{LogLevel: "warn", LogOutput: &buf}, nil))

	logger.Info("hidden")
	logger.Warn("shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["msg"])
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelError, parseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("loud"))
}

func TestNew_Disabled(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	ins, err := New(context.Background(), &Config{ServiceName: "svc", LogOutput: &buf})
	require.NoError(t, err)

	slog.Info("hello")
	assert.Contains(t, buf.String(), `"service":"svc"`)

	_, span := ins.Tracer("t").Start(context.Background(), "op")
	span.End()

	counter, err := ins.Meter("m").Int64Counter("c")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	assert.NoError(t, ins.Shutdown(context.Background()))
}

func TestCorrelationID(t *testing.T) {
	t.Parallel()

	assert.Empty(t, GetCorrelationID(context.Background()))
	assert.Equal(t, "x", GetCorrelationID(SetCorrelationID(context.Background(), "x")))
}
