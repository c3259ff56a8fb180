// Package storage is the object storage adapter shared by the payment,
// form-photo and report features.
package storage

import (
	"context"
	"io"
	"time"
)

// PresignedURLTTL bounds how long a presigned upload or download stays valid.
const PresignedURLTTL = 15 * time.Minute

// PresignedURL is a time-limited direct link to an object.
type PresignedURL struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Upload describes an object a client intends to PUT through a presigned URL.
type Upload struct {
	Bucket      string
	Folder      string
	FileName    string
	ContentType string
	Size        int64
}

// Service is the object storage contract. Consumers usually depend on a
// narrower interface of their own.
type Service interface {
	PresignUpload(ctx context.Context, upload Upload) (PresignedURL, error)
	PresignDownload(ctx context.Context, bucket, fileKey string) (PresignedURL, error)
	Put(ctx context.Context, bucket, folder, fileName, contentType string, r io.Reader, size int64) (string, error)
	Exists(ctx context.Context, bucket, fileKey string) (bool, error)
	Delete(ctx context.Context, bucket, fileKey string) error
	EnsureBucket(ctx context.Context, bucket string) error
}

// Config is the MinIO connection settings.
type Config interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	IsMinIOEnabled() bool
}
