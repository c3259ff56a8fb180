package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"interior_portal_backend/platform/apperr"

	"github.com/google/uuid"
)

// AllowedContentTypes covers receipts (images, PDF), room photos and reports.
var AllowedContentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/heic":      true,
	"application/pdf": true,
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ValidateUpload checks content type and size against maxSize.
func ValidateUpload(contentType string, size, maxSize int64) error {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if !AllowedContentTypes[ct] {
		return apperr.Validation(fmt.Sprintf("content type %q is not allowed", contentType))
	}
	if size <= 0 {
		return apperr.Validation("file size must be positive")
	}
	if maxSize > 0 && size > maxSize {
		return apperr.Validation(fmt.Sprintf("file size %d exceeds maximum of %d bytes", size, maxSize))
	}
	return nil
}

// ObjectKey builds a collision-free key under folder that keeps a readable
// version of the original file name.
func ObjectKey(folder, fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	ext := strings.ToLower(path.Ext(base))
	stem := unsafeNameChars.ReplaceAllString(strings.TrimSuffix(base, path.Ext(base)), "-")
	stem = strings.Trim(stem, "-.")
	if stem == "" {
		stem = "file"
	}
	if len(stem) > 60 {
		stem = stem[:60]
	}
	return path.Join(folder, fmt.Sprintf("%s-%s%s", stem, uuid.NewString()[:8], ext))
}
