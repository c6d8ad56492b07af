package log

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type bufferSyncer struct {
	bytes.Buffer
}

func (b *bufferSyncer) Sync() error { return nil }

func TestInitLoggerWithWriteSyncer(t *testing.T) {
	buf := &bufferSyncer{}
	lg, props, err := InitLoggerWithWriteSyncer(&Config{Level: "info", Format: "json"}, buf)
	require.NoError(t, err)
	require.NotNil(t, props)

	lg.Debug("dropped")
	lg.Info("published", FieldTopic("/camera/depth"), FieldDataType("xtensor_ros/f32"))

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"topic":"/camera/depth"`)
	assert.Contains(t, out, `"dataType":"xtensor_ros/f32"`)
	assert.Contains(t, out, `"level":"info"`)
}

func TestLeveledLoggersQuiet(t *testing.T) {
	t.Cleanup(func() { replaceLeveledLoggers(L()) })

	errOut := &bufferSyncer{}
	lg, _, err := InitLoggerWithWriteSyncer(&Config{Level: "warn"}, &bufferSyncer{}, zap.ErrorOutput(errOut))
	require.NoError(t, err)
	replaceLeveledLoggers(lg)
	assert.Empty(t, errOut.String())

	_, ok := _globalLevelLogger.Load(zapcore.InfoLevel)
	assert.False(t, ok)
	_, ok = _globalLevelLogger.Load(zapcore.ErrorLevel)
	assert.True(t, ok)
}

func TestInitLoggerBadLevel(t *testing.T) {
	_, _, err := InitLoggerWithWriteSyncer(&Config{Level: "loud"}, &bufferSyncer{})
	assert.Error(t, err)
}

func TestTextEncoderWith(t *testing.T) {
	buf := &bufferSyncer{}
	lg, _, err := InitLoggerWithWriteSyncer(&Config{Level: "debug", DisableTimestamp: true}, buf)
	require.NoError(t, err)

	lg.With(FieldModule("codec")).Warn("frame dropped", zap.Int("size", 12))
	line := buf.String()
	assert.True(t, strings.Contains(line, "WARN"))
	assert.Contains(t, line, "frame dropped")
	assert.Contains(t, line, `"module": "codec"`)
}

func TestCtxLogger(t *testing.T) {
	lg, props, err := InitTestLogger(t, &Config{Level: "debug"})
	require.NoError(t, err)
	oldL, oldP := L(), _globalP.Load().(*ZapProperties)
	ReplaceGlobals(lg, props)
	defer ReplaceGlobals(oldL, oldP)

	assert.NotNil(t, Ctx(nil))
	assert.NotNil(t, Ctx(context.Background()))

	ctx := WithTopic(context.Background(), "/imu", "xtensor_ros/F64")
	ctx = WithModule(ctx, "subscriber")
	Ctx(ctx).Info("subscribed")
	assert.NotSame(t, Ctx(context.Background()), Ctx(ctx))

	SetLevel(zapcore.WarnLevel)
	assert.Equal(t, zapcore.WarnLevel, GetLevel())
	SetLevel(zapcore.DebugLevel)
}

func TestRatedLogging(t *testing.T) {
	l := With(FieldComponent("test")).WithRateGroup("test.rated", 1, 1)
	assert.True(t, l.RatedInfo(1, "first"))
	assert.False(t, l.RatedInfo(1, "second"))
	assert.True(t, RatedWarn(0, "global limiter never drops by default"))
}

func TestBinder(t *testing.T) {
	var b Binder
	assert.NotNil(t, b.Logger())
	l := With(FieldTopic("/a"))
	b.SetLogger(l)
	assert.Same(t, l, b.Logger())
}
