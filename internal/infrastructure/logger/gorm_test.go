package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGorm(level gormlogger.LogLevel, slow time.Duration) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, slow), recorded
}

func TestGormLogger_LogMode(t *testing.T) {
	gl, _ := newObservedGorm(gormlogger.Info, 0)
	changed := gl.LogMode(gormlogger.Warn)

	assert.Equal(t, gormlogger.Info, gl.logLevel)
	clone, ok := changed.(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Warn, clone.logLevel)
}

func TestGormLogger_Trace(t *testing.T) {
	sql := func() (string, int64) { return "SELECT * FROM materials", 2 }

	t.Run("silent logs nothing", func(t *testing.T) {
		gl, recorded := newObservedGorm(gormlogger.Silent, 0)
		gl.Trace(context.Background(), time.Now(), sql, errors.New("boom"))
		assert.Zero(t, recorded.Len())
	})

	t.Run("errors are logged with the cycle id", func(t *testing.T) {
		gl, recorded := newObservedGorm(gormlogger.Warn, 0)
		ctx := WithCycleID(context.Background(), "c-1")
		gl.Trace(ctx, time.Now(), sql, errors.New("disk I/O error"))

		entries := recorded.FilterMessage("sql error").All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
		assert.Equal(t, "c-1", entries[0].ContextMap()["cycle_id"])
	})

	t.Run("record not found is not an error", func(t *testing.T) {
		gl, recorded := newObservedGorm(gormlogger.Warn, 0)
		gl.Trace(context.Background(), time.Now(), sql, gormlogger.ErrRecordNotFound)
		assert.Zero(t, recorded.Len())
	})

	t.Run("slow statements warn", func(t *testing.T) {
		gl, recorded := newObservedGorm(gormlogger.Warn, time.Millisecond)
		gl.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)
		assert.Equal(t, 1, recorded.FilterMessage("slow sql").Len())
	})

	t.Run("statements trace at info level", func(t *testing.T) {
		gl, recorded := newObservedGorm(gormlogger.Info, time.Hour)
		gl.Trace(context.Background(), time.Now(), sql, nil)
		entries := recorded.FilterMessage("sql").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "SELECT * FROM materials", entries[0].ContextMap()["sql"])
	})
}

func TestGormLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Info, GormLevel("debug"))
	assert.Equal(t, gormlogger.Warn, GormLevel("info"))
	assert.Equal(t, gormlogger.Error, GormLevel("error"))
}
