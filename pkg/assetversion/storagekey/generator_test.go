package storagekey_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/historiar/monument-assets/pkg/assetversion/storagekey"
)

func TestTimestampGeneratorKeyShape(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	gen := storagekey.NewTimestampGeneratorWithClock(func() time.Time { return fixed })
	monumentID := uuid.New()

	key := gen.GenerateKey("models", monumentID, "Statue of Liberty.glb")

	parts := strings.SplitN(key, "/", 3)
	require.Len(t, parts, 3)
	assert.Equal(t, "models", parts[0])
	assert.Equal(t, monumentID.String(), parts[1])

	nameParts := strings.SplitN(parts[2], "_", 3)
	require.Len(t, nameParts, 3)
	assert.Equal(t, fmt.Sprintf("%d", fixed.UnixMilli()), nameParts[0])
	assert.Len(t, nameParts[1], 8)
	assert.Equal(t, "Statue_of_Liberty.glb", nameParts[2])
}

func TestTimestampGeneratorUniqueWithinMillisecond(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	gen := storagekey.NewTimestampGeneratorWithClock(func() time.Time { return fixed })
	monumentID := uuid.New()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key := gen.GenerateKey("models", monumentID, "statue.glb")
		assert.False(t, seen[key], "key %q generated twice", key)
		seen[key] = true
	}
}

func TestTimestampGeneratorSanitizesClass(t *testing.T) {
	gen := storagekey.NewTimestampGenerator()
	monumentID := uuid.New()

	key := gen.GenerateKey("Models!", monumentID, "statue.glb")
	assert.True(t, strings.HasPrefix(key, "models_/"), "got %q", key)

	key = gen.GenerateKey("", monumentID, "statue.glb")
	assert.True(t, strings.HasPrefix(key, "assets/"), "got %q", key)
}

func TestCustomFuncGenerator(t *testing.T) {
	gen := storagekey.NewCustomFuncGenerator(func(assetClass string, monumentID uuid.UUID, fileName string) string {
		return assetClass + "/" + fileName
	})

	key := gen.GenerateKey("models", uuid.New(), "statue.glb")
	assert.Equal(t, "models/statue.glb", key)
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "clean name untouched", in: "statue.glb", want: "statue.glb"},
		{name: "spaces replaced", in: "statue of liberty.glb", want: "statue_of_liberty.glb"},
		{name: "unicode replaced", in: "statuë.glb", want: "statu_.glb"},
		{name: "path separators neutralized", in: "../../etc/passwd", want: "etc_passwd"},
		{name: "leading dots trimmed", in: "...hidden", want: "hidden"},
		{name: "underscores and hyphens kept", in: "a_b-c.glb", want: "a_b-c.glb"},
		{name: "empty falls back", in: "", want: "asset"},
		{name: "all invalid falls back", in: "...", want: "asset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, storagekey.SanitizeFileName(tt.in))
		})
	}
}

func TestSanitizePathComponent(t *testing.T) {
	assert.Equal(t, "models", storagekey.SanitizePathComponent("Models"))
	assert.Equal(t, "a_b", storagekey.SanitizePathComponent("A B"))
}
