// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/pollster/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// bufferSyncer lets the tests hand a plain buffer to zap.
func bufferSyncer(buf *bytes.Buffer) zapcore.WriteSyncer {
	return zapcore.AddSync(buf)
}

func TestNewLogger(t *testing.T) {
	t.Run("console format colorizes levels", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "pollster",
			Colors:      config.ColorConfig{Info: "green"},
		}
		logger := NewLogger(cfg, bufferSyncer(&buf))
		logger.Named("driver").Info("Attempt finished.", zap.Int("attempt", 3))
		require.NoError(t, logger.Sync())

		out := buf.String()
		assert.Contains(t, out, ansiColors["green"]+"INFO"+colorReset)
		assert.Contains(t, out, "pollster.driver.")
		assert.Contains(t, out, "Attempt finished.")
		assert.Contains(t, out, `"attempt": 3`)
	})

	t.Run("unknown color name falls back to plain level", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := config.LoggerConfig{Level: "info", Format: "console", Colors: config.ColorConfig{Warn: "chartreuse"}}
		logger := NewLogger(cfg, bufferSyncer(&buf))
		logger.Warn("plain")
		require.NoError(t, logger.Sync())

		assert.Contains(t, buf.String(), "WARN")
		assert.NotContains(t, buf.String(), colorReset)
	})

	t.Run("levels above error use the error color", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := config.LoggerConfig{Level: "debug", Format: "console", Colors: config.ColorConfig{Error: "red"}}
		logger := NewLogger(cfg, bufferSyncer(&buf))
		logger.DPanic("recovered")
		require.NoError(t, logger.Sync())

		assert.Contains(t, buf.String(), ansiColors["red"]+"DPANIC"+colorReset)
	})

	t.Run("json format produces parseable entries", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"}
		logger := NewLogger(cfg, bufferSyncer(&buf))
		logger.Warn("Attempt failed.", zap.String("reason", "fill_incomplete"))
		require.NoError(t, logger.Sync())

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "Attempt failed.", entry["msg"])
		assert.Equal(t, "fill_incomplete", entry["reason"])
	})

	t.Run("invalid level defaults to info", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(config.LoggerConfig{Level: "loud", Format: "json"}, bufferSyncer(&buf))
		logger.Debug("hidden")
		logger.Info("shown")
		require.NoError(t, logger.Sync())

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("log file receives json entries", func(t *testing.T) {
		var buf bytes.Buffer
		logFile := filepath.Join(t.TempDir(), "pollster.log")
		cfg := config.LoggerConfig{Level: "debug", Format: "console", LogFile: logFile, MaxSize: 1}
		logger := NewLogger(cfg, bufferSyncer(&buf))
		logger.Error("This should go to the file.")
		require.NoError(t, logger.Sync())

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"msg":"This should go to the file."`)
	})
}

func TestInitialize(t *testing.T) {
	t.Run("only the first call wins", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		var buf bytes.Buffer
		Initialize(config.LoggerConfig{Level: "info", ServiceName: "First"}, bufferSyncer(&buf))
		first := GetLogger()

		Initialize(config.LoggerConfig{Level: "debug", ServiceName: "Second"}, bufferSyncer(&buf))
		second := GetLogger()

		assert.Same(t, first, second)
		second.Info("test")
		Sync()
		assert.Contains(t, buf.String(), "First")
		assert.NotContains(t, buf.String(), "Second")
	})
}

func TestIsUnsyncable(t *testing.T) {
	stderrSync := &os.PathError{Op: "sync", Path: "/dev/stderr", Err: syscall.EINVAL}
	assert.True(t, isUnsyncable(stderrSync))
	assert.True(t, isUnsyncable(fmt.Errorf("tee: %w", syscall.ENOTTY)))
	assert.False(t, isUnsyncable(errors.New("disk full")))
}

func TestGetLogger(t *testing.T) {
	t.Run("returns a fallback logger if not initialized", func(t *testing.T) {
		ResetForTest()
		logger := GetLogger()
		require.NotNil(t, logger)
	})

	t.Run("returns the global logger after initialization", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		var buf bytes.Buffer
		Initialize(config.LoggerConfig{Level: "info", ServiceName: "GlobalTest"}, bufferSyncer(&buf))
		assert.Equal(t, globalLogger.Load(), GetLogger())
	})
}
