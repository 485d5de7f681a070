package observability

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/areino/taegis-detection-analysis/internal/config"
)

func resetLogger() {
	globalLogger = atomic.Pointer[zap.Logger]{}
	once = sync.Once{}
}

func TestGetLoggerBeforeInitialization(t *testing.T) {
	resetLogger()

	logger := GetLogger()
	require.NotNil(t, logger, "GetLogger must never return nil")
}

func TestInitializeLoggerFirstConfigurationWins(t *testing.T) {
	resetLogger()

	InitializeLogger(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "test"})
	first := GetLogger()
	require.NotNil(t, first)
	assert.True(t, first.Core().Enabled(zapcore.DebugLevel))

	InitializeLogger(config.LoggerConfig{Level: "error", Format: "console", ServiceName: "other"})
	assert.Same(t, first, GetLogger(), "a second initialization must be a no-op")
}

func TestInitializeLoggerInvalidLevelDefaultsToInfo(t *testing.T) {
	resetLogger()

	InitializeLogger(config.LoggerConfig{Level: "not-a-level", Format: "json", ServiceName: "test"})
	logger := GetLogger()
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestColorizedLevelEncoder(t *testing.T) {
	testCases := []struct {
		level zapcore.Level
		color string
	}{
		{zapcore.DebugLevel, colorCyan},
		{zapcore.InfoLevel, colorGreen},
		{zapcore.WarnLevel, colorYellow},
		{zapcore.ErrorLevel, colorRed},
		{zapcore.PanicLevel, colorMagenta},
	}

	for _, tc := range testCases {
		t.Run(tc.level.String(), func(t *testing.T) {
			enc := &captureEncoder{}
			colorizedLevelEncoder(tc.level, enc)
			require.Len(t, enc.appended, 1)
			assert.True(t, strings.HasPrefix(enc.appended[0], tc.color))
			assert.True(t, strings.HasSuffix(enc.appended[0], colorReset))
			assert.Contains(t, enc.appended[0], strings.ToUpper(tc.level.String()))
		})
	}
}

// captureEncoder records appended strings for encoder assertions.
type captureEncoder struct {
	appended []string
}

func (c *captureEncoder) AppendBool(bool)              {}
func (c *captureEncoder) AppendByteString([]byte)      {}
func (c *captureEncoder) AppendComplex128(complex128)  {}
func (c *captureEncoder) AppendComplex64(complex64)    {}
func (c *captureEncoder) AppendFloat64(float64)        {}
func (c *captureEncoder) AppendFloat32(float32)        {}
func (c *captureEncoder) AppendInt(int)                {}
func (c *captureEncoder) AppendInt64(int64)            {}
func (c *captureEncoder) AppendInt32(int32)            {}
func (c *captureEncoder) AppendInt16(int16)            {}
func (c *captureEncoder) AppendInt8(int8)              {}
func (c *captureEncoder) AppendString(s string)        { c.appended = append(c.appended, s) }
func (c *captureEncoder) AppendUint(uint)              {}
func (c *captureEncoder) AppendUint64(uint64)          {}
func (c *captureEncoder) AppendUint32(uint32)          {}
func (c *captureEncoder) AppendUint16(uint16)          {}
func (c *captureEncoder) AppendUint8(uint8)            {}
func (c *captureEncoder) AppendUintptr(uintptr)        {}
