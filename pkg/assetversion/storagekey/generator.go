package storagekey

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generator defines the interface for storage key derivation strategies
type Generator interface {
	// GenerateKey derives the backend key for a new blob:
	// {assetClass}/{monumentID}/{timestampMillis}_{suffix}_{sanitizedName}
	GenerateKey(assetClass string, monumentID uuid.UUID, fileName string) string
}

// TimestampGenerator derives keys from a millisecond timestamp plus a short
// random suffix. The suffix keeps two uploads for the same monument in the
// same millisecond from colliding.
type TimestampGenerator struct {
	now func() time.Time
}

// NewTimestampGenerator creates the default key generator
func NewTimestampGenerator() *TimestampGenerator {
	return &TimestampGenerator{now: time.Now}
}

// NewTimestampGeneratorWithClock creates a generator with an injected clock,
// for tests.
func NewTimestampGeneratorWithClock(now func() time.Time) *TimestampGenerator {
	return &TimestampGenerator{now: now}
}

func (g *TimestampGenerator) GenerateKey(assetClass string, monumentID uuid.UUID, fileName string) string {
	class := SanitizePathComponent(assetClass)
	if class == "" {
		class = "assets"
	}
	name := SanitizeFileName(fileName)
	return fmt.Sprintf("%s/%s/%d_%s_%s",
		class, monumentID, g.now().UTC().UnixMilli(), randomSuffix(), name)
}

// CustomFuncGenerator allows callers to provide their own key derivation
type CustomFuncGenerator struct {
	GenerateFunc func(assetClass string, monumentID uuid.UUID, fileName string) string
}

func NewCustomFuncGenerator(fn func(assetClass string, monumentID uuid.UUID, fileName string) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{GenerateFunc: fn}
}

func (g *CustomFuncGenerator) GenerateKey(assetClass string, monumentID uuid.UUID, fileName string) string {
	return g.GenerateFunc(assetClass, monumentID, fileName)
}

// SanitizeFileName strips every character outside [A-Za-z0-9._-] from a file
// name. An empty result falls back to "asset" so keys stay well-formed.
func SanitizeFileName(fileName string) string {
	var b strings.Builder
	b.Grow(len(fileName))
	for _, r := range fileName {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "asset"
	}
	return out
}

// SanitizePathComponent lowercases and sanitizes a single path segment.
func SanitizePathComponent(component string) string {
	return strings.ToLower(SanitizeFileName(component))
}

func randomSuffix() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is effectively fatal elsewhere; a timestamp
		// fallback keeps key derivation total.
		return fmt.Sprintf("%08x", time.Now().UnixNano()&0xffffffff)
	}
	return hex.EncodeToString(buf)
}
