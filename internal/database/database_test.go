package database

import (
	"context"
	"testing"

	"productapi/internal/config"
	"productapi/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLiteMemory(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		DSN:          "file:database_open_test?mode=memory&cache=shared",
		MaxOpenConns: 5,
		MaxIdleConns: 1,
		AutoMigrate:  true,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	assert.True(t, db.Migrator().HasTable(&models.Product{}))
	assert.True(t, db.Migrator().HasTable("products"))
	assert.NoError(t, Ping(ctx, db))

	p := models.Product{Name: "Desk", Price: 120}
	require.NoError(t, db.Create(&p).Error)
	assert.NotZero(t, p.ID)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle", DSN: "x"}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}
