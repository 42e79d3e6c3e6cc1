package logger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestOperationAndTableFromSQL(t *testing.T) {
	cases := []struct {
		sql       string
		operation string
		table     string
	}{
		{`SELECT * FROM availability_declarations WHERE id = ?`, "SELECT", "availability_declarations"},
		{`INSERT INTO reconciliation_records (id) VALUES (?)`, "INSERT", "reconciliation_records"},
		{`UPDATE "control_periods" SET state = ?`, "UPDATE", "control_periods"},
		{`WITH latest AS (SELECT 1) SELECT * FROM latest`, "SELECT", "latest"},
		{``, "UNKNOWN", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.operation, operationFromSQL(tc.sql), tc.sql)
		assert.Equal(t, tc.table, tableFromSQL(tc.sql), tc.sql)
	}
}

func TestGormLoggerWarnsOnSlowQuery(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(GormLoggerConfig{
		Level:         gormlogger.Warn,
		SlowThreshold: time.Millisecond,
		Base:          zap.New(core),
	})

	l.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) {
		return `UPDATE availability_declarations SET version = version + 1 WHERE id = ? AND version = ?`, 0
	}, nil)

	entries := logs.FilterMessage("gorm.query").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "availability_declarations", fields["table"])
	assert.Equal(t, "UPDATE", fields["operation"])
	assert.Equal(t, int64(0), fields["rows_affected"])
}

func TestGormLoggerIgnoresRecordNotFound(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(GormLoggerConfig{
		Level:                gormlogger.Error,
		IgnoreRecordNotFound: true,
		Base:                 zap.New(core),
	})

	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return `SELECT * FROM control_periods`, 0
	}, gormlogger.ErrRecordNotFound)

	assert.Zero(t, logs.Len())
}
