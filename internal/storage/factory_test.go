package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbh1312/sleep-cash-backend/internal"
	"github.com/bbh1312/sleep-cash-backend/internal/config"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []string{"file", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			cfg := &config.Config{
				DBType:     backend,
				DataFile:   filepath.Join(dir, "state.json"),
				SQLitePath: filepath.Join(dir, "nested", "sleepcash.db"),
			}
			s, err := Open(cfg, internal.NewNopLogger())
			require.NoError(t, err)
			assert.NoError(t, s.Ping(context.Background()))
			assert.NoError(t, s.Close())
		})
	}

	_, err := Open(&config.Config{DBType: "mongo"}, internal.NewNopLogger())
	assert.Error(t, err)
}
