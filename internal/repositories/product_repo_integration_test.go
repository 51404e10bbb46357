//go:build integration

package repositories_test

import (
	"context"
	"testing"
	"time"

	"productapi/internal/config"
	"productapi/internal/database"
	"productapi/internal/models"
	"productapi/internal/repositories"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

// setupPostgres starts a PostgreSQL container and returns a migrated
// connection to it.
func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := postgresContainer.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.Open(ctx, config.DatabaseConfig{
		Driver:          config.DriverPostgres,
		DSN:             connStr,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
		AutoMigrate:     true,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	return db
}

func TestProductRepository_Postgres(t *testing.T) {
	db := setupPostgres(t)

	runRepositoryContract(t, func(t *testing.T) repositories.ProductRepository {
		require.NoError(t, db.Exec("TRUNCATE TABLE products RESTART IDENTITY").Error)
		return repositories.NewGORMProductRepository(db)
	})
}

func TestProductRepository_PostgresNameLength(t *testing.T) {
	db := setupPostgres(t)
	repo := repositories.NewGORMProductRepository(db)
	ctx := context.Background()

	name := ""
	for i := 0; i < 255; i++ {
		name += "é"
	}
	p := &models.Product{Name: name, Price: 1}
	require.NoError(t, repo.Save(ctx, p))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, name, got.Name)
}
