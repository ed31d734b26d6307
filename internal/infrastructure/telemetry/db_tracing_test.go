package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/erp/sourcing/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type dispatchRow struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func openTracedDB(t *testing.T, cfg telemetry.DBTracingConfig) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Use(telemetry.NewDBTracingPlugin(cfg, zaptest.NewLogger(t))))
	require.NoError(t, db.AutoMigrate(&dispatchRow{}))
	return db
}

func findSpan(spans []sdktrace.ReadOnlySpan, table string) sdktrace.ReadOnlySpan {
	for _, s := range spans {
		for _, kv := range s.Attributes() {
			if kv.Key == "db.sql.table" && kv.Value.AsString() == table {
				return s
			}
		}
	}
	return nil
}

func TestDBTracingPlugin_Name(t *testing.T) {
	assert.Equal(t, "sourcing:db_tracing", telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{}, nil).Name())
}

func TestDBTracingPlugin_Disabled(t *testing.T) {
	sr := setupTestTracer(t)
	db := openTracedDB(t, telemetry.DBTracingConfig{Enabled: false})

	require.NoError(t, db.WithContext(context.Background()).Create(&dispatchRow{Name: "a"}).Error)
	assert.Empty(t, sr.Ended())
}

func TestDBTracingPlugin_RecordsQueries(t *testing.T) {
	sr := setupTestTracer(t)
	db := openTracedDB(t, telemetry.DBTracingConfig{Enabled: true, DBSystem: "sqlite"})

	ctx, parent := telemetry.StartSpan(context.Background(), "dispatch.create")
	require.NoError(t, db.WithContext(ctx).Create(&dispatchRow{Name: "a"}).Error)
	var rows []dispatchRow
	require.NoError(t, db.WithContext(ctx).Find(&rows).Error)
	parent.End()

	spans := sr.Ended()
	span := findSpan(spans, "dispatch_rows")
	require.NotNil(t, span, "query span carries the table name")
	assert.Equal(t, parent.SpanContext().TraceID(), span.Parent().TraceID())
	assert.NotEqual(t, codes.Error, span.Status().Code)
}

func TestDBTracingPlugin_MarksErrorsAndSlowQueries(t *testing.T) {
	sr := setupTestTracer(t)
	db := openTracedDB(t, telemetry.DBTracingConfig{Enabled: true, DBSystem: "sqlite", SlowQueryThresh: time.Nanosecond})

	ctx := context.Background()
	require.NoError(t, db.WithContext(ctx).Create(&dispatchRow{Name: "a"}).Error)
	require.Error(t, db.WithContext(ctx).Create(&dispatchRow{ID: 1, Name: "dup"}).Error)

	var failed, slow bool
	for _, s := range sr.Ended() {
		if s.Status().Code == codes.Error {
			failed = true
		}
		for _, kv := range s.Attributes() {
			if kv.Key == "db.slow_query" && kv.Value.AsBool() {
				slow = true
			}
		}
	}
	assert.True(t, failed, "duplicate key marks the span failed")
	assert.True(t, slow, "every query exceeds a 1ns threshold")
}
