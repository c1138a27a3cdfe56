package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/config"
	"expensetracker/internal/storage"
	"expensetracker/internal/store/memory"
)

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db", DataFile: "e.json"})
	require.NoError(t, err)
	assert.Equal(t, Config{Type: SQLiteBackend, SQLiteDBPath: "x.db", DataFile: "e.json"}, cfg)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{Type: MemoryBackend}.Validate())
	assert.Error(t, Config{Type: "sheets"}.Validate())
	assert.Error(t, Config{Type: SQLiteBackend}.Validate())
	assert.Error(t, Config{Type: PostgresBackend}.Validate())
	for _, typ := range Types() {
		assert.True(t, typ.IsValid(), typ.String())
	}
}

func TestFactoryCreate(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)

	t.Run("memory", func(t *testing.T) {
		res, err := f.Create(ctx, Config{Type: MemoryBackend})
		require.NoError(t, err)
		assert.IsType(t, &memory.Store{}, res.Repository)
		assert.Nil(t, res.Events)
		assert.NoError(t, res.Ping(ctx))
		assert.NoError(t, res.Cleanup())
	})

	t.Run("memory with file", func(t *testing.T) {
		res, err := f.Create(ctx, Config{Type: MemoryBackend, DataFile: filepath.Join(t.TempDir(), "e.json")})
		require.NoError(t, err)
		all, err := res.Repository.GetAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("sqlite", func(t *testing.T) {
		res, err := f.Create(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "e.db")})
		require.NoError(t, err)
		defer res.Cleanup()
		assert.IsType(t, &storage.SQLiteRepository{}, res.Repository)
		assert.NotNil(t, res.Events)
		assert.NoError(t, res.Ping(ctx))
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := f.Create(ctx, Config{Type: "sheets"})
		assert.Error(t, err)
	})
}
