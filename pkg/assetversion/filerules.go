package assetversion

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Size limits per asset class.
const (
	MaxImageBytes int64 = 10 << 20 // 10MB
	MaxModelBytes int64 = 50 << 20 // 50MB
)

// FileRule is the normalized acceptance rule for one MIME type. Rules are
// resolved once at ingestion; downstream code branches on AssetClass, never
// on raw MIME strings or extensions again.
type FileRule struct {
	Class      AssetClass
	MIME       string
	Extensions []string
	MaxBytes   int64
}

var fileRules = []FileRule{
	{Class: AssetClassImage, MIME: "image/jpeg", Extensions: []string{".jpg", ".jpeg"}, MaxBytes: MaxImageBytes},
	{Class: AssetClassImage, MIME: "image/png", Extensions: []string{".png"}, MaxBytes: MaxImageBytes},
	{Class: AssetClassImage, MIME: "image/webp", Extensions: []string{".webp"}, MaxBytes: MaxImageBytes},
	{Class: AssetClassModel, MIME: "model/gltf-binary", Extensions: []string{".glb"}, MaxBytes: MaxModelBytes},
	{Class: AssetClassModel, MIME: "model/gltf+json", Extensions: []string{".gltf"}, MaxBytes: MaxModelBytes},
}

// ResolveFileRule validates a MIME type / file name pair against the
// acceptance rules and returns the matching rule. The extension must agree
// with the declared MIME type; a mismatched pair is rejected.
func ResolveFileRule(mimeType, fileName string) (FileRule, error) {
	mime := strings.ToLower(strings.TrimSpace(mimeType))
	ext := strings.ToLower(filepath.Ext(fileName))

	for _, rule := range fileRules {
		if rule.MIME != mime {
			continue
		}
		for _, allowed := range rule.Extensions {
			if allowed == ext {
				return rule, nil
			}
		}
		return FileRule{}, &ValidationError{
			Field:  "file_name",
			Reason: fmt.Sprintf("extension %q does not match declared type %s", ext, mime),
		}
	}

	return FileRule{}, &ValidationError{
		Field:  "mime_type",
		Reason: fmt.Sprintf("unsupported type %q", mime),
	}
}

// CheckFileSize validates a declared byte size against a rule's limit.
func CheckFileSize(rule FileRule, byteSize int64) error {
	if byteSize < 0 {
		return &ValidationError{Field: "byte_size", Reason: "must be >= 0"}
	}
	if byteSize > rule.MaxBytes {
		return &ValidationError{
			Field:  "byte_size",
			Reason: fmt.Sprintf("exceeds %dMB limit for %s", rule.MaxBytes>>20, rule.Class),
		}
	}
	return nil
}
