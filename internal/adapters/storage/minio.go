package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIO implements Service against a MinIO or other S3-compatible endpoint.
type MinIO struct {
	client      *minio.Client
	maxFileSize int64
}

var _ Service = (*MinIO)(nil)

func NewMinIO(cfg Config) (*MinIO, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, errors.New("MinIO is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("create MinIO client: %w", err)
	}

	return &MinIO{client: client, maxFileSize: cfg.GetMinIOMaxFileSize()}, nil
}

func (s *MinIO) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

func (s *MinIO) PresignUpload(ctx context.Context, upload Upload) (PresignedURL, error) {
	if err := ValidateUpload(upload.ContentType, upload.Size, s.maxFileSize); err != nil {
		return PresignedURL{}, err
	}

	fileKey := ObjectKey(upload.Folder, upload.FileName)
	expiresAt := time.Now().Add(PresignedURLTTL)
	signed, err := s.client.PresignedPutObject(ctx, upload.Bucket, fileKey, PresignedURLTTL)
	if err != nil {
		return PresignedURL{}, fmt.Errorf("presign upload: %w", err)
	}

	return PresignedURL{URL: signed.String(), FileKey: fileKey, ExpiresAt: expiresAt}, nil
}

func (s *MinIO) PresignDownload(ctx context.Context, bucket, fileKey string) (PresignedURL, error) {
	expiresAt := time.Now().Add(PresignedURLTTL)
	signed, err := s.client.PresignedGetObject(ctx, bucket, fileKey, PresignedURLTTL, url.Values{})
	if err != nil {
		return PresignedURL{}, fmt.Errorf("presign download: %w", err)
	}
	return PresignedURL{URL: signed.String(), FileKey: fileKey, ExpiresAt: expiresAt}, nil
}

func (s *MinIO) Put(ctx context.Context, bucket, folder, fileName, contentType string, r io.Reader, size int64) (string, error) {
	if err := ValidateUpload(contentType, size, s.maxFileSize); err != nil {
		return "", err
	}

	fileKey := ObjectKey(folder, fileName)
	if _, err := s.client.PutObject(ctx, bucket, fileKey, r, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("upload %s: %w", fileKey, err)
	}
	return fileKey, nil
}

func (s *MinIO) Exists(ctx context.Context, bucket, fileKey string) (bool, error) {
	_, err := s.client.StatObject(ctx, bucket, fileKey, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", fileKey, err)
}

func (s *MinIO) Delete(ctx context.Context, bucket, fileKey string) error {
	if err := s.client.RemoveObject(ctx, bucket, fileKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s: %w", fileKey, err)
	}
	return nil
}
