package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type widget struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func TestConfig(t *testing.T) {
	t.Run("defaults to in-memory sqlite", func(t *testing.T) {
		var cfg Config
		cfg.ApplyDefaults()
		assert.Equal(t, DriverSQLite, cfg.Driver)
		assert.NotEmpty(t, cfg.DSN)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("mysql requires dsn", func(t *testing.T) {
		cfg := Config{Driver: DriverMySQL}
		cfg.ApplyDefaults()
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := Config{Driver: "oracle", DSN: "x"}
		cfg.ApplyDefaults()
		assert.Error(t, cfg.Validate())
	})
}

func TestOpen_SQLite(t *testing.T) {
	db, err := Open(Config{Driver: DriverSQLite, DSN: "file::memory:"}, nil)
	require.NoError(t, err)
	defer Close(db)

	require.NoError(t, db.AutoMigrate(&widget{}))
	require.NoError(t, db.Create(&widget{Name: "a"}).Error)

	var got widget
	require.NoError(t, db.First(&got).Error)
	assert.Equal(t, "a", got.Name)
}

func TestOpen_InvalidConfig(t *testing.T) {
	_, err := Open(Config{Driver: DriverPostgres}, nil)
	assert.Error(t, err)
}

func TestOtelPlugin_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Use(NewOtelPlugin(tp).WithTraceSQL(true)))
	require.NoError(t, db.AutoMigrate(&widget{}))

	require.NoError(t, db.WithContext(context.Background()).Create(&widget{Name: "b"}).Error)

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	assert.Contains(t, names, "gorm.create widgets")
}
