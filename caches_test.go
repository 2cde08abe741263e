package refmatch

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/refmatch/config"
	"github.com/poiesic/refmatch/core"
	"github.com/poiesic/refmatch/embedcache"
	"github.com/poiesic/refmatch/storage"
)

// fileBackedConfig keeps caches on disk so they outlive the service that
// built them.
func fileBackedConfig(t *testing.T) *config.File {
	t.Helper()
	cfg := testConfig()
	cfg.Storage.Backend = config.BackendFile
	cfg.Storage.BlobDir = filepath.Join(t.TempDir(), "caches")
	return cfg
}

func openTestCaches(t *testing.T, cfg *config.File) *Caches {
	t.Helper()
	caches, err := OpenCaches(cfg, InMemory())
	require.NoError(t, err)
	t.Cleanup(func() { caches.Close() })
	return caches
}

func TestCaches_List(t *testing.T) {
	cfg := fileBackedConfig(t)
	svc, provider := newTestService(t, cfg)
	require.NoError(t, svc.Close())

	infos, err := openTestCaches(t, cfg).List(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 3)

	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
		assert.NoError(t, info.Err)
		assert.Equal(t, provider.GetMockEmbedder().ModelName, info.Manifest.Model)
		assert.Positive(t, info.Manifest.Count)
	}
	assert.Equal(t, []string{"major_embeddings", "school_cbse_embeddings", "school_icse_embeddings"}, names)
}

func TestCaches_Drop(t *testing.T) {
	ctx := context.Background()
	cfg := fileBackedConfig(t)
	svc, _ := newTestService(t, cfg)
	require.NoError(t, svc.Close())

	caches := openTestCaches(t, cfg)

	name, err := caches.Drop(ctx, "school", "ICSE")
	require.NoError(t, err)
	assert.Equal(t, "school_icse_embeddings", name)

	infos, err := caches.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "major_embeddings", infos[0].Name)
	assert.Equal(t, "school_cbse_embeddings", infos[1].Name)

	_, err = caches.Drop(ctx, "school", "ICSE")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = caches.Drop(ctx, "", "")
	assert.ErrorIs(t, err, core.ErrInvalidPartition)
}

func TestCaches_DropThenReconcile(t *testing.T) {
	ctx := context.Background()
	cfg := fileBackedConfig(t)
	svc, _ := newTestService(t, cfg)
	require.NoError(t, svc.Close())

	caches := openTestCaches(t, cfg)
	_, err := caches.Drop(ctx, "major", "")
	require.NoError(t, err)

	svc, _ = newTestService(t, cfg)
	major, ok := svc.Engine("major")
	require.True(t, ok)
	require.Len(t, major.Reports(), 1)
	assert.Equal(t, embedcache.ActionCreated, major.Reports()[0].Action)
}

func TestOpenCaches_NilConfig(t *testing.T) {
	_, err := OpenCaches(nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
