package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestLocalStoragePutGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	content := []byte("https://a.example\nhttps://b.example\n")
	metadata := &Metadata{
		ContentType: "text/plain",
		TaskID:      "dsc_1",
		CreatedAt:   time.Now(),
	}

	require.NoError(t, s.Put(ctx, "discovery/dsc_1/urls.txt", content, metadata))

	got, err := s.Get(ctx, "discovery/dsc_1/urls.txt")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	info, err := s.GetInfo(ctx, "discovery/dsc_1/urls.txt")
	require.NoError(t, err)
	assert.Equal(t, "discovery/dsc_1/urls.txt", info.Key)
	assert.Equal(t, int64(len(content)), info.Size)
	assert.Equal(t, ComputeChecksum(content), info.Checksum)
	assert.Equal(t, "text/plain", info.ContentType)
	require.NotNil(t, info.Metadata)
	assert.Equal(t, "dsc_1", info.Metadata.TaskID)
}

func TestLocalStorageGetMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	_, err := s.Get(ctx, "scrapes/nope/results.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "artifact not found")
}

func TestLocalStorageExistsAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	require.NoError(t, s.Put(ctx, "scrapes/scr_1/results.csv", []byte("header\n"), nil))

	exists, err := s.Exists(ctx, "scrapes/scr_1/results.csv")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.Delete(ctx, "scrapes/scr_1/results.csv"))

	exists, err = s.Exists(ctx, "scrapes/scr_1/results.csv")
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting a missing key is not an error.
	assert.NoError(t, s.Delete(ctx, "scrapes/scr_1/results.csv"))
}

func TestLocalStorageList(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	require.NoError(t, s.Put(ctx, "discovery/dsc_1/urls.txt", []byte("a"), &Metadata{TaskID: "dsc_1"}))
	require.NoError(t, s.Put(ctx, "discovery/dsc_2/urls.txt", []byte("b"), nil))
	require.NoError(t, s.Put(ctx, "scrapes/scr_1/results.csv", []byte("c"), nil))

	keys, err := s.List(ctx, "discovery/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"discovery/dsc_1/urls.txt",
		"discovery/dsc_2/urls.txt",
	}, keys)

	// Metadata sidecars never show up as keys.
	for _, key := range keys {
		assert.NotContains(t, key, ".meta")
	}
}

func TestLocalStoragePathTraversal(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	require.NoError(t, s.Put(ctx, "/rooted/key.txt", []byte("x"), nil))

	// A rooted key is stored relative to the base path.
	keys, err := s.List(ctx, "rooted/")
	require.NoError(t, err)
	assert.Equal(t, []string{"rooted/key.txt"}, keys)
}

func TestBuildArtifactKeys(t *testing.T) {
	assert.Equal(t, "discovery/dsc_abc/urls.txt", BuildDiscoveryKey("dsc_abc"))
	assert.Equal(t, "scrapes/scr_abc/results.csv", BuildScrapeCSVKey("scr_abc"))
}
