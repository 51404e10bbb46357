package repositories_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"productapi/internal/config"
	"productapi/internal/database"
	"productapi/internal/models"
	"productapi/internal/repositories"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dbCounter int64

// newSQLiteRepository returns a GORM repository over a fresh in-memory database.
func newSQLiteRepository(t *testing.T) repositories.ProductRepository {
	t.Helper()

	dsn := fmt.Sprintf("file:repo_test_%d?mode=memory&cache=shared", atomic.AddInt64(&dbCounter, 1))
	db, err := database.Open(context.Background(), config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		DSN:          dsn,
		MaxOpenConns: 1,
		AutoMigrate:  true,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	return repositories.NewGORMProductRepository(db)
}

func implementations() map[string]func(t *testing.T) repositories.ProductRepository {
	return map[string]func(t *testing.T) repositories.ProductRepository{
		"memory": func(t *testing.T) repositories.ProductRepository {
			return repositories.NewMockProductRepository()
		},
		"gorm-sqlite": newSQLiteRepository,
	}
}

func TestProductRepository_Contract(t *testing.T) {
	for name, newRepo := range implementations() {
		t.Run(name, func(t *testing.T) {
			runRepositoryContract(t, newRepo)
		})
	}
}

// runRepositoryContract checks the behaviour every ProductRepository must share.
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) repositories.ProductRepository) {
	t.Run("SaveAssignsIDAndGetByIDReturnsIt", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		p := &models.Product{Name: "Laptop", Price: 1200}
		require.NoError(t, repo.Save(ctx, p))
		assert.NotZero(t, p.ID)

		got, err := repo.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, *p, *got)
	})

	t.Run("GetByIDUnknownIsNotFound", func(t *testing.T) {
		repo := newRepo(t)

		got, err := repo.GetByID(context.Background(), 4242)
		assert.Nil(t, got)
		assert.True(t, errors.Is(err, models.ErrProductNotFound))
	})

	t.Run("SaveExistingUpdates", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		p := &models.Product{Name: "Camera", Price: 499.99}
		require.NoError(t, repo.Save(ctx, p))
		id := p.ID

		p.Price = 599.99
		require.NoError(t, repo.Save(ctx, p))
		assert.Equal(t, id, p.ID)

		got, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 599.99, got.Price)

		all, err := repo.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("GetAllKeepsInsertionOrder", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		all, err := repo.GetAll(ctx)
		require.NoError(t, err)
		assert.NotNil(t, all)
		assert.Empty(t, all)

		for _, name := range []string{"Zebra", "Apple", "Mango"} {
			require.NoError(t, repo.Save(ctx, &models.Product{Name: name, Price: 1}))
		}

		all, err = repo.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "Zebra", all[0].Name)
		assert.Equal(t, "Apple", all[1].Name)
		assert.Equal(t, "Mango", all[2].Name)
	})

	t.Run("ExistsByID", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		p := &models.Product{Name: "Phone", Price: 300}
		require.NoError(t, repo.Save(ctx, p))

		exists, err := repo.ExistsByID(ctx, p.ID)
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.ExistsByID(ctx, p.ID+100)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("SaveAfterDeleteIsNotFound", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		p := &models.Product{Name: "Camera", Price: 499.99}
		require.NoError(t, repo.Save(ctx, p))

		stale, err := repo.GetByID(ctx, p.ID)
		require.NoError(t, err)
		require.NoError(t, repo.Delete(ctx, p.ID))

		stale.Price = 599.99
		err = repo.Save(ctx, stale)
		assert.ErrorIs(t, err, models.ErrProductNotFound)

		exists, err := repo.ExistsByID(ctx, p.ID)
		require.NoError(t, err)
		assert.False(t, exists)

		all, err := repo.GetAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("SaveUnknownIDIsNotFound", func(t *testing.T) {
		repo := newRepo(t)

		err := repo.Save(context.Background(), &models.Product{ID: 77, Name: "Ghost", Price: 1})
		assert.ErrorIs(t, err, models.ErrProductNotFound)

		_, err = repo.GetByID(context.Background(), 77)
		assert.ErrorIs(t, err, models.ErrProductNotFound)
	})

	t.Run("SaveAllAssignsDistinctIDsInOrder", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		batch := []models.Product{
			{Name: "A", Price: 1},
			{Name: "B", Price: 2},
			{Name: "C", Price: 3},
		}
		require.NoError(t, repo.SaveAll(ctx, batch))

		seen := map[int64]bool{}
		for i, p := range batch {
			assert.NotZero(t, p.ID, "item %d", i)
			assert.False(t, seen[p.ID])
			seen[p.ID] = true
		}
		assert.Less(t, batch[0].ID, batch[1].ID)
		assert.Less(t, batch[1].ID, batch[2].ID)

		all, err := repo.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("SaveAllEmptyIsNoop", func(t *testing.T) {
		repo := newRepo(t)
		assert.NoError(t, repo.SaveAll(context.Background(), nil))
	})

	t.Run("Delete", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		p := &models.Product{Name: "Mouse", Price: 25}
		require.NoError(t, repo.Save(ctx, p))
		require.NoError(t, repo.Delete(ctx, p.ID))

		_, err := repo.GetByID(ctx, p.ID)
		assert.ErrorIs(t, err, models.ErrProductNotFound)

		err = repo.Delete(ctx, p.ID)
		assert.ErrorIs(t, err, models.ErrProductNotFound)
	})

	t.Run("FindByNameContainingIgnoresCase", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		for _, name := range []string{"Gaming Laptop", "laptop stand", "Keyboard", "100%_Cotton"} {
			require.NoError(t, repo.Save(ctx, &models.Product{Name: name, Price: 10}))
		}

		found, err := repo.FindByNameContaining(ctx, "LAPTOP")
		require.NoError(t, err)
		require.Len(t, found, 2)
		for _, p := range found {
			assert.Contains(t, strings.ToLower(p.Name), "laptop")
		}

		found, err = repo.FindByNameContaining(ctx, "%_")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "100%_Cotton", found[0].Name)

		found, err = repo.FindByNameContaining(ctx, "tablet")
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("TransactionCommits", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		err := repo.Transaction(ctx, func(tx repositories.ProductRepository) error {
			return tx.Save(ctx, &models.Product{Name: "Chair", Price: 80})
		})
		require.NoError(t, err)

		all, err := repo.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("TransactionRollsBackOnError", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		existing := &models.Product{Name: "Table", Price: 150}
		require.NoError(t, repo.Save(ctx, existing))

		boom := errors.New("boom")
		err := repo.Transaction(ctx, func(tx repositories.ProductRepository) error {
			if err := tx.Save(ctx, &models.Product{Name: "Lamp", Price: 30}); err != nil {
				return err
			}
			changed := *existing
			changed.Price = 1
			if err := tx.Save(ctx, &changed); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		all, err := repo.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, 150.0, all[0].Price)
	})
}

func TestProductRepository_FindByNameContainingFoldsUnicode(t *testing.T) {
	for name, newRepo := range implementations() {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()

			for _, n := range []string{"ÇAMERA", "Camera", "Élan"} {
				require.NoError(t, repo.Save(ctx, &models.Product{Name: n, Price: 10}))
			}

			found, err := repo.FindByNameContaining(ctx, "çam")
			require.NoError(t, err)
			require.Len(t, found, 1)
			assert.Equal(t, "ÇAMERA", found[0].Name)

			found, err = repo.FindByNameContaining(ctx, "ÉLAN")
			require.NoError(t, err)
			require.Len(t, found, 1)
			assert.Equal(t, "Élan", found[0].Name)

			found, err = repo.FindByNameContaining(ctx, "%")
			require.NoError(t, err)
			assert.Empty(t, found)
		})
	}
}

func TestMockProductRepository_RollbackKeepsOutsideWrites(t *testing.T) {
	repo := repositories.NewMockProductRepository()
	ctx := context.Background()

	outside := &models.Product{Name: "Outside", Price: 5}
	done := make(chan error, 1)
	boom := errors.New("boom")

	err := repo.Transaction(ctx, func(tx repositories.ProductRepository) error {
		if err := tx.Save(ctx, &models.Product{Name: "Inside", Price: 1}); err != nil {
			return err
		}
		go func() { done <- repo.Save(ctx, outside) }()

		select {
		case err := <-done:
			t.Errorf("write outside the transaction finished early: %v", err)
		case <-time.After(50 * time.Millisecond):
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, <-done)

	got, err := repo.GetByID(ctx, outside.ID)
	require.NoError(t, err)
	assert.Equal(t, "Outside", got.Name)

	next := &models.Product{Name: "Next", Price: 2}
	require.NoError(t, repo.Save(ctx, next))
	assert.NotEqual(t, outside.ID, next.ID)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Outside", all[0].Name)
	assert.Equal(t, "Next", all[1].Name)
}

func TestMockProductRepository_ConcurrentWritersGetUniqueIDs(t *testing.T) {
	repo := repositories.NewMockProductRepository()
	ctx := context.Background()
	boom := errors.New("boom")

	const writers = 20
	var wg sync.WaitGroup
	ids := make(chan int64, writers)
	for i := 0; i < writers; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			p := &models.Product{Name: fmt.Sprintf("P%d", i), Price: 1}
			if err := repo.Save(ctx, p); err == nil {
				ids <- p.ID
			}
		}(i)
		go func() {
			defer wg.Done()
			_ = repo.Transaction(ctx, func(tx repositories.ProductRepository) error {
				_ = tx.Save(ctx, &models.Product{Name: "rolled back", Price: 1})
				return boom
			})
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		assert.False(t, seen[id], "id %d assigned twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, writers)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, writers)
}
