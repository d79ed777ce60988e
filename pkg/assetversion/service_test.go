package assetversion_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/historiar/monument-assets/pkg/assetversion"
	"github.com/historiar/monument-assets/pkg/assetversion/repo/memory"
	memorystorage "github.com/historiar/monument-assets/pkg/assetversion/storage/memory"
)

func TestServiceCreation(t *testing.T) {
	tests := []struct {
		name        string
		options     []assetversion.Option
		expectError bool
	}{
		{
			name:        "no options should fail",
			options:     []assetversion.Option{},
			expectError: true,
		},
		{
			name: "repository without blob store should fail",
			options: []assetversion.Option{
				assetversion.WithRepository(memory.New()),
			},
			expectError: true,
		},
		{
			name: "with repository and blob store should succeed",
			options: []assetversion.Option{
				assetversion.WithRepository(memory.New()),
				assetversion.WithBlobStore("memory", memorystorage.New()),
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := assetversion.New(tt.options...)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func setupTestService(t *testing.T) (assetversion.Service, *memorystorage.Backend) {
	t.Helper()

	repo := memory.New()
	store := memorystorage.New()

	svc, err := assetversion.New(
		assetversion.WithRepository(repo),
		assetversion.WithBlobStore("memory", store),
		assetversion.WithEventSink(assetversion.NewNoopEventSink()),
	)
	require.NoError(t, err)
	require.NotNil(t, svc)

	return svc, store
}

func createTestMonument(t *testing.T, svc assetversion.Service) *assetversion.Monument {
	t.Helper()

	monument, err := svc.CreateMonument(context.Background(), assetversion.CreateMonumentRequest{
		Name:        "Arc de Triomphe",
		Description: "Napoleonic triumphal arch",
	})
	require.NoError(t, err)
	return monument
}

func uploadModel(t *testing.T, svc assetversion.Service, monumentID uuid.UUID, body string) *assetversion.UploadVersionResult {
	t.Helper()

	result, err := svc.UploadNewVersion(context.Background(), assetversion.UploadVersionRequest{
		MonumentID: monumentID,
		Reader:     strings.NewReader(body),
		FileName:   "monument.glb",
		MimeType:   "model/gltf-binary",
		ByteSize:   int64(len(body)),
		UploadedBy: uuid.New(),
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func TestMonumentOperations(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	t.Run("CreateMonument", func(t *testing.T) {
		monument, err := svc.CreateMonument(ctx, assetversion.CreateMonumentRequest{
			Name:        "Brandenburg Gate",
			Description: "Neoclassical monument in Berlin",
		})
		assert.NoError(t, err)
		assert.NotNil(t, monument)
		assert.Equal(t, "Brandenburg Gate", monument.Name)
		assert.Empty(t, monument.ActiveAssetURL)
		assert.False(t, monument.CreatedAt.IsZero())
	})

	t.Run("CreateMonumentRequiresName", func(t *testing.T) {
		_, err := svc.CreateMonument(ctx, assetversion.CreateMonumentRequest{})
		var validationErr *assetversion.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("GetMonument", func(t *testing.T) {
		created := createTestMonument(t, svc)

		retrieved, err := svc.GetMonument(ctx, created.ID)
		assert.NoError(t, err)
		assert.Equal(t, created.ID, retrieved.ID)
		assert.Equal(t, created.Name, retrieved.Name)
	})

	t.Run("GetMonumentNotFound", func(t *testing.T) {
		_, err := svc.GetMonument(ctx, uuid.New())
		assert.ErrorIs(t, err, assetversion.ErrMonumentNotFound)
	})

	t.Run("ListMonuments", func(t *testing.T) {
		before, err := svc.ListMonuments(ctx)
		require.NoError(t, err)

		createTestMonument(t, svc)

		after, err := svc.ListMonuments(ctx)
		assert.NoError(t, err)
		assert.Len(t, after, len(before)+1)
	})
}

func TestUploadNewVersion(t *testing.T) {
	ctx := context.Background()

	t.Run("FirstUploadBecomesActive", func(t *testing.T) {
		svc, store := setupTestService(t)
		monument := createTestMonument(t, svc)

		result := uploadModel(t, svc, monument.ID, "glb-bytes-v1")

		assert.True(t, result.Record.IsActive)
		assert.Equal(t, assetversion.AssetClassModel, result.Record.AssetClass)
		assert.NotEmpty(t, result.Record.StorageKey)
		assert.NotEmpty(t, result.PublicURL)
		assert.True(t, store.Exists(ctx, result.Record.StorageKey))

		updated, err := svc.GetMonument(ctx, monument.ID)
		require.NoError(t, err)
		assert.Equal(t, result.Record.StorageKey, updated.ActiveAssetKey)
		assert.Equal(t, result.PublicURL, updated.ActiveAssetURL)
	})

	t.Run("SecondUploadFlipsActive", func(t *testing.T) {
		svc, store := setupTestService(t)
		monument := createTestMonument(t, svc)

		first := uploadModel(t, svc, monument.ID, "glb-bytes-v1")
		second := uploadModel(t, svc, monument.ID, "glb-bytes-v2")

		assert.True(t, second.Record.IsActive)

		previous, err := svc.GetVersion(ctx, monument.ID, first.Record.ID)
		require.NoError(t, err)
		assert.False(t, previous.IsActive)

		// Older blobs stay in storage until their record is deleted.
		assert.True(t, store.Exists(ctx, first.Record.StorageKey))
		assert.True(t, store.Exists(ctx, second.Record.StorageKey))

		updated, err := svc.GetMonument(ctx, monument.ID)
		require.NoError(t, err)
		assert.Equal(t, second.Record.StorageKey, updated.ActiveAssetKey)
	})

	t.Run("ImageUpload", func(t *testing.T) {
		svc, _ := setupTestService(t)
		monument := createTestMonument(t, svc)

		result, err := svc.UploadNewVersion(ctx, assetversion.UploadVersionRequest{
			MonumentID: monument.ID,
			Reader:     strings.NewReader("png-bytes"),
			FileName:   "photo.png",
			MimeType:   "image/png",
			ByteSize:   9,
			UploadedBy: uuid.New(),
		})
		require.NoError(t, err)
		assert.Equal(t, assetversion.AssetClassImage, result.Record.AssetClass)
		assert.True(t, result.Record.IsActive)
	})

	t.Run("OversizedModelRejectedBeforeAnyWrite", func(t *testing.T) {
		svc, store := setupTestService(t)
		monument := createTestMonument(t, svc)

		_, err := svc.UploadNewVersion(ctx, assetversion.UploadVersionRequest{
			MonumentID: monument.ID,
			Reader:     strings.NewReader("pretend-60mb"),
			FileName:   "huge.glb",
			MimeType:   "model/gltf-binary",
			ByteSize:   60 << 20,
			UploadedBy: uuid.New(),
		})
		var validationErr *assetversion.ValidationError
		require.ErrorAs(t, err, &validationErr)

		versions, err := svc.ListVersions(ctx, monument.ID)
		require.NoError(t, err)
		assert.Empty(t, versions)

		blobs, err := store.List(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, blobs)
	})

	t.Run("BodyLargerThanDeclaredRejected", func(t *testing.T) {
		svc, _ := setupTestService(t)
		monument := createTestMonument(t, svc)

		// Declared size passes the check; the stream itself is over the
		// image limit and must be cut off mid-upload.
		body := strings.Repeat("x", int(assetversion.MaxImageBytes)+1)
		_, err := svc.UploadNewVersion(ctx, assetversion.UploadVersionRequest{
			MonumentID: monument.ID,
			Reader:     strings.NewReader(body),
			FileName:   "photo.png",
			MimeType:   "image/png",
			ByteSize:   9,
			UploadedBy: uuid.New(),
		})
		var validationErr *assetversion.ValidationError
		require.ErrorAs(t, err, &validationErr)

		versions, err := svc.ListVersions(ctx, monument.ID)
		require.NoError(t, err)
		assert.Empty(t, versions)
	})

	t.Run("MismatchedExtensionRejected", func(t *testing.T) {
		svc, _ := setupTestService(t)
		monument := createTestMonument(t, svc)

		_, err := svc.UploadNewVersion(ctx, assetversion.UploadVersionRequest{
			MonumentID: monument.ID,
			Reader:     strings.NewReader("bytes"),
			FileName:   "model.gltf",
			MimeType:   "model/gltf-binary",
			ByteSize:   5,
			UploadedBy: uuid.New(),
		})
		var validationErr *assetversion.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("UnsupportedTypeRejected", func(t *testing.T) {
		svc, _ := setupTestService(t)
		monument := createTestMonument(t, svc)

		_, err := svc.UploadNewVersion(ctx, assetversion.UploadVersionRequest{
			MonumentID: monument.ID,
			Reader:     strings.NewReader("bytes"),
			FileName:   "scene.fbx",
			MimeType:   "application/octet-stream",
			ByteSize:   5,
			UploadedBy: uuid.New(),
		})
		var validationErr *assetversion.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("UnknownMonument", func(t *testing.T) {
		svc, _ := setupTestService(t)

		_, err := svc.UploadNewVersion(ctx, assetversion.UploadVersionRequest{
			MonumentID: uuid.New(),
			Reader:     strings.NewReader("bytes"),
			FileName:   "monument.glb",
			MimeType:   "model/gltf-binary",
			ByteSize:   5,
			UploadedBy: uuid.New(),
		})
		assert.ErrorIs(t, err, assetversion.ErrMonumentNotFound)
	})

	t.Run("UnknownBackend", func(t *testing.T) {
		svc, _ := setupTestService(t)
		monument := createTestMonument(t, svc)

		_, err := svc.UploadNewVersion(ctx, assetversion.UploadVersionRequest{
			MonumentID:         monument.ID,
			Reader:             strings.NewReader("bytes"),
			FileName:           "monument.glb",
			MimeType:           "model/gltf-binary",
			ByteSize:           5,
			UploadedBy:         uuid.New(),
			StorageBackendName: "not-registered",
		})
		assert.ErrorIs(t, err, assetversion.ErrStorageBackendNotFound)
	})
}

func TestActivateVersion(t *testing.T) {
	ctx := context.Background()

	t.Run("RollbackToOlderVersion", func(t *testing.T) {
		svc, _ := setupTestService(t)
		monument := createTestMonument(t, svc)

		first := uploadModel(t, svc, monument.ID, "glb-bytes-v1")
		second := uploadModel(t, svc, monument.ID, "glb-bytes-v2")

		restored, err := svc.ActivateVersion(ctx, monument.ID, first.Record.ID)
		require.NoError(t, err)
		assert.True(t, restored.IsActive)

		demoted, err := svc.GetVersion(ctx, monument.ID, second.Record.ID)
		require.NoError(t, err)
		assert.False(t, demoted.IsActive)

		updated, err := svc.GetMonument(ctx, monument.ID)
		require.NoError(t, err)
		assert.Equal(t, first.Record.StorageKey, updated.ActiveAssetKey)
	})

	t.Run("ActivateAlreadyActiveIsNoop", func(t *testing.T) {
		svc, _ := setupTestService(t)
		monument := createTestMonument(t, svc)

		result := uploadModel(t, svc, monument.ID, "glb-bytes-v1")

		record, err := svc.ActivateVersion(ctx, monument.ID, result.Record.ID)
		assert.NoError(t, err)
		assert.True(t, record.IsActive)

		versions, err := svc.ListVersions(ctx, monument.ID)
		require.NoError(t, err)
		active := 0
		for _, v := range versions {
			if v.IsActive {
				active++
			}
		}
		assert.Equal(t, 1, active)
	})

	t.Run("ActivateVersionOfOtherMonument", func(t *testing.T) {
		svc, _ := setupTestService(t)
		monumentA := createTestMonument(t, svc)
		monumentB := createTestMonument(t, svc)

		result := uploadModel(t, svc, monumentA.ID, "glb-bytes-v1")

		_, err := svc.ActivateVersion(ctx, monumentB.ID, result.Record.ID)
		assert.ErrorIs(t, err, assetversion.ErrVersionNotFound)
	})
}

func TestDeleteVersion(t *testing.T) {
	ctx := context.Background()

	t.Run("DeleteActiveVersionIsConflict", func(t *testing.T) {
		svc, store := setupTestService(t)
		monument := createTestMonument(t, svc)

		result := uploadModel(t, svc, monument.ID, "glb-bytes-v1")

		err := svc.DeleteVersion(ctx, monument.ID, result.Record.ID)
		assert.ErrorIs(t, err, assetversion.ErrVersionActive)

		// Nothing was removed.
		assert.True(t, store.Exists(ctx, result.Record.StorageKey))
		record, err := svc.GetVersion(ctx, monument.ID, result.Record.ID)
		require.NoError(t, err)
		assert.True(t, record.IsActive)
	})

	t.Run("DeleteAfterRollingForward", func(t *testing.T) {
		svc, store := setupTestService(t)
		monument := createTestMonument(t, svc)

		first := uploadModel(t, svc, monument.ID, "glb-bytes-v1")
		second := uploadModel(t, svc, monument.ID, "glb-bytes-v2")

		err := svc.DeleteVersion(ctx, monument.ID, first.Record.ID)
		require.NoError(t, err)

		assert.False(t, store.Exists(ctx, first.Record.StorageKey))
		assert.True(t, store.Exists(ctx, second.Record.StorageKey))

		_, err = svc.GetVersion(ctx, monument.ID, first.Record.ID)
		assert.ErrorIs(t, err, assetversion.ErrVersionNotFound)
	})

	t.Run("DeleteToleratesMissingBlob", func(t *testing.T) {
		svc, store := setupTestService(t)
		monument := createTestMonument(t, svc)

		first := uploadModel(t, svc, monument.ID, "glb-bytes-v1")
		uploadModel(t, svc, monument.ID, "glb-bytes-v2")

		// Blob removed out of band; the record delete still succeeds.
		require.NoError(t, store.Delete(ctx, first.Record.StorageKey))

		err := svc.DeleteVersion(ctx, monument.ID, first.Record.ID)
		assert.NoError(t, err)
	})

	t.Run("DeleteUnknownVersion", func(t *testing.T) {
		svc, _ := setupTestService(t)
		monument := createTestMonument(t, svc)

		err := svc.DeleteVersion(ctx, monument.ID, uuid.New())
		assert.ErrorIs(t, err, assetversion.ErrVersionNotFound)
	})
}

func TestListVersionsNewestFirst(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()
	monument := createTestMonument(t, svc)

	first := uploadModel(t, svc, monument.ID, "glb-bytes-v1")
	second := uploadModel(t, svc, monument.ID, "glb-bytes-v2")
	third := uploadModel(t, svc, monument.ID, "glb-bytes-v3")

	versions, err := svc.ListVersions(ctx, monument.ID)
	require.NoError(t, err)
	require.Len(t, versions, 3)

	assert.Equal(t, third.Record.ID, versions[0].ID)
	assert.Equal(t, second.Record.ID, versions[1].ID)
	assert.Equal(t, first.Record.ID, versions[2].ID)
}

func TestConcurrentUploadsKeepOneActive(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()
	monument := createTestMonument(t, svc)

	const uploads = 8
	var wg sync.WaitGroup
	errs := make([]error, uploads)
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.UploadNewVersion(ctx, assetversion.UploadVersionRequest{
				MonumentID: monument.ID,
				Reader:     strings.NewReader("glb-bytes"),
				FileName:   "monument.glb",
				MimeType:   "model/gltf-binary",
				ByteSize:   9,
				UploadedBy: uuid.New(),
			})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	versions, err := svc.ListVersions(ctx, monument.ID)
	require.NoError(t, err)
	require.Len(t, versions, uploads)

	active := 0
	for _, v := range versions {
		if v.IsActive {
			active++
		}
	}
	assert.Equal(t, 1, active)

	updated, err := svc.GetMonument(ctx, monument.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, updated.ActiveAssetKey)
}

func TestAttachmentOperations(t *testing.T) {
	ctx := context.Background()

	t.Run("AddAndListAttachments", func(t *testing.T) {
		svc, store := setupTestService(t)
		monument := createTestMonument(t, svc)

		attachment, err := svc.AddAttachment(ctx, assetversion.AddAttachmentRequest{
			MonumentID: monument.ID,
			Reader:     strings.NewReader("jpeg-bytes"),
			FileName:   "engraving-1887.jpg",
			MimeType:   "image/jpeg",
			ByteSize:   10,
		})
		require.NoError(t, err)
		assert.True(t, store.Exists(ctx, attachment.StorageKey))
		assert.Contains(t, attachment.StorageKey, string(assetversion.AssetClassAttachment)+"/")

		attachments, err := svc.ListAttachments(ctx, monument.ID)
		require.NoError(t, err)
		require.Len(t, attachments, 1)
		assert.Equal(t, attachment.ID, attachments[0].ID)
	})

	t.Run("AttachmentLinkedToVersion", func(t *testing.T) {
		svc, _ := setupTestService(t)
		monument := createTestMonument(t, svc)
		version := uploadModel(t, svc, monument.ID, "glb-bytes-v1")

		attachment, err := svc.AddAttachment(ctx, assetversion.AddAttachmentRequest{
			MonumentID:     monument.ID,
			ParentRecordID: &version.Record.ID,
			Reader:         strings.NewReader("jpeg-bytes"),
			FileName:       "detail.jpg",
			MimeType:       "image/jpeg",
			ByteSize:       10,
		})
		require.NoError(t, err)
		require.NotNil(t, attachment.ParentRecordID)
		assert.Equal(t, version.Record.ID, *attachment.ParentRecordID)
	})

	t.Run("NonImageAttachmentRejected", func(t *testing.T) {
		svc, _ := setupTestService(t)
		monument := createTestMonument(t, svc)

		_, err := svc.AddAttachment(ctx, assetversion.AddAttachmentRequest{
			MonumentID: monument.ID,
			Reader:     strings.NewReader("glb-bytes"),
			FileName:   "extra.glb",
			MimeType:   "model/gltf-binary",
			ByteSize:   9,
		})
		var validationErr *assetversion.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("DeleteAttachment", func(t *testing.T) {
		svc, store := setupTestService(t)
		monument := createTestMonument(t, svc)

		attachment, err := svc.AddAttachment(ctx, assetversion.AddAttachmentRequest{
			MonumentID: monument.ID,
			Reader:     strings.NewReader("jpeg-bytes"),
			FileName:   "engraving.jpg",
			MimeType:   "image/jpeg",
			ByteSize:   10,
		})
		require.NoError(t, err)

		require.NoError(t, svc.DeleteAttachment(ctx, monument.ID, attachment.ID))
		assert.False(t, store.Exists(ctx, attachment.StorageKey))

		attachments, err := svc.ListAttachments(ctx, monument.ID)
		require.NoError(t, err)
		assert.Empty(t, attachments)
	})

	t.Run("DeleteAttachmentOnSecondaryBackend", func(t *testing.T) {
		svc, _ := setupTestService(t)
		monument := createTestMonument(t, svc)

		archive := memorystorage.New()
		svc.RegisterBackend("archive", archive)

		attachment, err := svc.AddAttachment(ctx, assetversion.AddAttachmentRequest{
			MonumentID:         monument.ID,
			Reader:             strings.NewReader("jpeg-bytes"),
			FileName:           "engraving.jpg",
			MimeType:           "image/jpeg",
			ByteSize:           10,
			StorageBackendName: "archive",
		})
		require.NoError(t, err)
		assert.Equal(t, "archive", attachment.StorageBackendName)
		require.True(t, archive.Exists(ctx, attachment.StorageKey))

		// The delete must go to the backend the blob was uploaded to.
		require.NoError(t, svc.DeleteAttachment(ctx, monument.ID, attachment.ID))
		assert.False(t, archive.Exists(ctx, attachment.StorageKey))
	})
}

func TestStorageKeysNeverReused(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()
	monument := createTestMonument(t, svc)

	seen := make(map[string]bool)
	var keys []string
	for i := 0; i < 5; i++ {
		result := uploadModel(t, svc, monument.ID, "glb-bytes")
		keys = append(keys, result.Record.StorageKey)
		assert.False(t, seen[result.Record.StorageKey])
		seen[result.Record.StorageKey] = true
	}

	// Deleting a version does not release its key for reuse.
	require.NoError(t, svc.DeleteVersion(ctx, monument.ID, mustFindInactive(t, svc, monument.ID)))
	result := uploadModel(t, svc, monument.ID, "glb-bytes")
	assert.NotContains(t, keys, result.Record.StorageKey)
}

func mustFindInactive(t *testing.T, svc assetversion.Service, monumentID uuid.UUID) uuid.UUID {
	t.Helper()

	versions, err := svc.ListVersions(context.Background(), monumentID)
	require.NoError(t, err)
	for _, v := range versions {
		if !v.IsActive {
			return v.ID
		}
	}
	t.Fatal("no inactive version found")
	return uuid.Nil
}

func TestRegisterBackend(t *testing.T) {
	svc, _ := setupTestService(t)

	second := memorystorage.New()
	svc.RegisterBackend("archive", second)

	backend, err := svc.GetBackend("archive")
	assert.NoError(t, err)
	assert.NotNil(t, backend)

	_, err = svc.GetBackend("missing")
	assert.True(t, errors.Is(err, assetversion.ErrStorageBackendNotFound))
}
