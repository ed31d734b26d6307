//go:build integration

package persistence

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	dispatchapp "github.com/erp/sourcing/internal/application/dispatch"
	"github.com/erp/sourcing/internal/domain/sourcing"
	"github.com/erp/sourcing/internal/infrastructure/config"
	"github.com/erp/sourcing/internal/infrastructure/migration"
	"github.com/erp/sourcing/internal/infrastructure/persistence/models"
	"github.com/erp/sourcing/internal/infrastructure/telemetry"
	"github.com/erp/sourcing/migrations"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newPostgresTestDB starts a PostgreSQL container and applies the embedded migrations
func newPostgresTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("sourcing_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	sqlDB, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	m, err := migration.NewEmbedded(sqlDB, migrations.FS, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())
	require.NoError(t, m.Close())

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return db
}

func TestIntegration_ConcurrentDispatchCommitsOnce(t *testing.T) {
	db := newPostgresTestDB(t)
	ctx := context.Background()

	rows, err := NewGormStatusRepository(db).FindAll(ctx)
	require.NoError(t, err)
	statuses, err := sourcing.NewStatusCatalog(rows, nil)
	require.NoError(t, err)

	supplier := models.SupplierModel{ID: uuid.New(), Name: "Acme Valves"}
	customer := models.CustomerModel{ID: uuid.New(), Name: "Northwind"}
	require.NoError(t, db.Create(&supplier).Error)
	require.NoError(t, db.Create(&customer).Error)

	inq := sourcing.Inquiry{
		InquiryNumber: "INQ-1",
		Status:        sourcing.StatusOpen,
		SupplierID:    &supplier.ID,
		CustomerID:    customer.ID,
		ProductName:   "Gate valve",
	}
	inq.ID = uuid.New()
	inq.CreatedAt = time.Now()
	inq.UpdatedAt = inq.CreatedAt
	require.NoError(t, db.Create(models.InquiryModelFromDomain(&inq, statuses)).Error)

	scope := NewGormDispatchTransactionScope(db, statuses)
	query := sourcing.EligibilityQuery{
		Direction:      sourcing.DirectionToSupplier,
		CounterpartyID: supplier.ID,
		InquiryIDs:     []uuid.UUID{inq.ID},
	}

	const racers = 4
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		committed int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			batch, err := sourcing.NewDispatchBatch(sourcing.DirectionToSupplier, supplier.ID,
				[]sourcing.Inquiry{inq}, "", uuid.New(), time.Now())
			if err != nil {
				t.Error(err)
				return
			}
			err = scope.Execute(ctx, func(repos dispatchapp.TransactionalRepositories) error {
				n, err := repos.Inquiries().MarkDispatched(ctx, query, time.Now())
				if err != nil {
					return err
				}
				if n != int64(len(query.InquiryIDs)) {
					return sourcing.ErrTransactionConflict
				}
				return repos.Batches().Create(ctx, batch)
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				committed++
			case errors.Is(err, sourcing.ErrTransactionConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, committed)
	assert.Equal(t, racers-1, conflicts)

	var links int64
	require.NoError(t, db.Model(&models.BatchLineLinkModel{}).Where("inquiry_id = ?", inq.ID).Count(&links).Error)
	assert.Equal(t, int64(1), links)
}

func TestIntegration_DatabaseInstallsTracingPlugin(t *testing.T) {
	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("sourcing_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(original) })

	plugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{Enabled: true}, zap.NewNop())
	db, err := NewDatabaseWithCustomLogger(&config.DatabaseConfig{
		Host:         host,
		Port:         port.Int(),
		User:         "postgres",
		Password:     "postgres",
		DBName:       "sourcing_test",
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 1,
	}, logger.Default.LogMode(logger.Silent), plugin)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var one int
	require.NoError(t, db.DB.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
	assert.NotEmpty(t, sr.Ended(), "queries are traced")

	_, installed := db.DB.Config.Plugins[plugin.Name()]
	assert.True(t, installed)
}
