package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/consensus-cli/internal/config"
)

func TestOpen(t *testing.T) {
	t.Run("fixture", func(t *testing.T) {
		st, err := Open(context.Background(), config.StoreConfig{Driver: "fixture", FixturePath: "testdata/fixture.yaml"})
		require.NoError(t, err)
		defer st.Close() //nolint:errcheck
		assert.IsType(t, &FixtureStore{}, st)
	})

	t.Run("sqlite", func(t *testing.T) {
		st, err := Open(context.Background(), config.StoreConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "c.db")})
		require.NoError(t, err)
		defer st.Close() //nolint:errcheck
		assert.IsType(t, &SQLiteStore{}, st)
		assert.NoError(t, st.Migrate(context.Background()))
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := Open(context.Background(), config.StoreConfig{Driver: "mongo"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown driver")
	})

	t.Run("bad postgres url", func(t *testing.T) {
		_, err := Open(context.Background(), config.StoreConfig{Driver: "postgres", DatabaseURL: "://bad"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "postgres: parse config")
	})
}
