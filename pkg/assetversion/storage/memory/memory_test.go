package memory_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/historiar/monument-assets/pkg/assetversion"
	"github.com/historiar/monument-assets/pkg/assetversion/storage/memory"
)

func TestUploadDownloadRoundTrip(t *testing.T) {
	backend := memory.New()
	ctx := context.Background()

	err := backend.UploadWithParams(ctx, strings.NewReader("glb-bytes"), assetversion.UploadParams{
		ObjectKey: "models/test/key",
		MimeType:  "model/gltf-binary",
	})
	require.NoError(t, err)

	reader, err := backend.Download(ctx, "models/test/key")
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "glb-bytes", string(data))

	meta, err := backend.GetObjectMeta(ctx, "models/test/key")
	require.NoError(t, err)
	assert.Equal(t, int64(9), meta.Size)
	assert.Equal(t, "model/gltf-binary", meta.ContentType)
	assert.False(t, meta.UpdatedAt.IsZero())
}

func TestDownloadMissingKey(t *testing.T) {
	backend := memory.New()

	_, err := backend.Download(context.Background(), "models/missing")
	assert.ErrorIs(t, err, assetversion.ErrKeyNotFound)
}

func TestDelete(t *testing.T) {
	backend := memory.New()
	ctx := context.Background()

	require.NoError(t, backend.Upload(ctx, "models/key", strings.NewReader("data")))
	require.True(t, backend.Exists(ctx, "models/key"))

	require.NoError(t, backend.Delete(ctx, "models/key"))
	assert.False(t, backend.Exists(ctx, "models/key"))

	err := backend.Delete(ctx, "models/key")
	assert.ErrorIs(t, err, assetversion.ErrKeyNotFound)
}

func TestGetDownloadURL(t *testing.T) {
	backend := memory.New()

	url, err := backend.GetDownloadURL(context.Background(), "models/key", "statue.glb")
	require.NoError(t, err)
	assert.Equal(t, "memory://models/key", url)
}

func TestListByPrefix(t *testing.T) {
	backend := memory.New()
	ctx := context.Background()

	require.NoError(t, backend.Upload(ctx, "models/a/1", strings.NewReader("x")))
	require.NoError(t, backend.Upload(ctx, "models/b/2", strings.NewReader("xy")))
	require.NoError(t, backend.Upload(ctx, "attachments/c/3", strings.NewReader("xyz")))

	all, err := backend.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	models, err := backend.List(ctx, "models/")
	require.NoError(t, err)
	require.Len(t, models, 2)
	// Sorted by key
	assert.Equal(t, "models/a/1", models[0].Key)
	assert.Equal(t, "models/b/2", models[1].Key)
}
