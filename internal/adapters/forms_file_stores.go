package adapters

import (
	"bytes"
	"context"

	"interior_portal_backend/internal/adapters/storage"
	"interior_portal_backend/internal/forms/ports"
)

// FormPhotoStore binds object storage to the inspection photos bucket.
type FormPhotoStore struct {
	storage storage.Service
	bucket  string
}

func NewFormPhotoStore(storageSvc storage.Service, bucket string) *FormPhotoStore {
	return &FormPhotoStore{storage: storageSvc, bucket: bucket}
}

func (s *FormPhotoStore) PutPhoto(ctx context.Context, folder, fileName, contentType string, data []byte) (string, error) {
	return s.storage.Put(ctx, s.bucket, folder, fileName, contentType, bytes.NewReader(data), int64(len(data)))
}

func (s *FormPhotoStore) PresignPhoto(ctx context.Context, fileKey string) (ports.PresignedURL, error) {
	presigned, err := s.storage.PresignDownload(ctx, s.bucket, fileKey)
	if err != nil {
		return ports.PresignedURL{}, err
	}
	return ports.PresignedURL(presigned), nil
}

// FormReportStore binds object storage to the inspection reports bucket.
type FormReportStore struct {
	storage storage.Service
	bucket  string
}

func NewFormReportStore(storageSvc storage.Service, bucket string) *FormReportStore {
	return &FormReportStore{storage: storageSvc, bucket: bucket}
}

func (s *FormReportStore) PutReport(ctx context.Context, folder, fileName string, pdf []byte) (string, error) {
	return s.storage.Put(ctx, s.bucket, folder, fileName, "application/pdf", bytes.NewReader(pdf), int64(len(pdf)))
}

func (s *FormReportStore) PresignReport(ctx context.Context, fileKey string) (ports.PresignedURL, error) {
	presigned, err := s.storage.PresignDownload(ctx, s.bucket, fileKey)
	if err != nil {
		return ports.PresignedURL{}, err
	}
	return ports.PresignedURL(presigned), nil
}

func (s *FormReportStore) DeleteReport(ctx context.Context, fileKey string) error {
	return s.storage.Delete(ctx, s.bucket, fileKey)
}

var (
	_ ports.PhotoStore  = (*FormPhotoStore)(nil)
	_ ports.ReportStore = (*FormReportStore)(nil)
)
