package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/subaccount-factory/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBackend(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := filepath.Join(t.TempDir(), "blobs")

	backend, err := NewFileBackend(dir, logger)
	require.NoError(t, err)
	assert.True(t, backend.Available(ctx))
	assert.Equal(t, "file://"+dir, backend.LocationURI())

	_, err = backend.Get(ctx, interfaces.StateLabel)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)

	require.NoError(t, backend.Put(ctx, interfaces.StateLabel, []byte("v1")))
	require.NoError(t, backend.Put(ctx, interfaces.StateLabel, []byte("v2")))

	data, err := backend.Get(ctx, interfaces.StateLabel)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")

	assert.Error(t, backend.Put(ctx, "../escape", []byte("x")))
	_, err = backend.Get(ctx, "../escape")
	assert.Error(t, err)
}

func TestStorageBackendFactory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sf := NewStorageBackendFactory(logger)
	dir := t.TempDir()

	fileLoc, err := interfaces.NewStorageBackendLocation("file://" + dir)
	require.NoError(t, err)
	backend, err := sf.BlobStoreFor(fileLoc)
	require.NoError(t, err)
	assert.IsType(t, &FileBackend{}, backend)

	s3Loc, err := interfaces.NewStorageBackendLocation("s3://key:secret@bucket/factory/?region=eu-west-1&endpoint=http://localhost:9000")
	require.NoError(t, err)
	backend, err = sf.BlobStoreFor(s3Loc)
	require.NoError(t, err)
	assert.Equal(t, "s3-bucket", backend.Name())
	assert.NotContains(t, backend.LocationURI(), "secret")

	ipfsLoc, err := interfaces.NewStorageBackendLocation("ipfs://localhost:5001/factory?timeout=5s")
	require.NoError(t, err)
	backend, err = sf.BlobStoreFor(ipfsLoc)
	require.NoError(t, err)
	assert.Equal(t, "ipfs-localhost-5001", backend.Name())

	vaultLoc, err := interfaces.NewStorageBackendLocation("vault://localhost:8200/secret/factory?insecure=true")
	require.NoError(t, err)
	backend, err = sf.BlobStoreFor(vaultLoc)
	require.NoError(t, err)
	assert.Equal(t, "vault-secret-factory", backend.Name())

	badIPFS, err := interfaces.NewStorageBackendLocation("ipfs://localhost:5001/?timeout=soon")
	require.NoError(t, err)
	_, err = sf.BlobStoreFor(badIPFS)
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)

	multi, err := sf.CreateMultiBackend([]interfaces.StorageBackendLocation{fileLoc, badIPFS})
	require.NoError(t, err)
	assert.Equal(t, "multi-storage", multi.Name())

	_, err = sf.CreateMultiBackend([]interfaces.StorageBackendLocation{badIPFS})
	assert.Error(t, err)
}
