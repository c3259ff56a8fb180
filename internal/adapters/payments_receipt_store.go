package adapters

import (
	"context"

	"interior_portal_backend/internal/adapters/storage"
	"interior_portal_backend/internal/payments/ports"
)

// ReceiptStore binds the object storage service to the receipts bucket.
type ReceiptStore struct {
	storage storage.Service
	bucket  string
}

func NewReceiptStore(storageSvc storage.Service, bucket string) *ReceiptStore {
	return &ReceiptStore{storage: storageSvc, bucket: bucket}
}

func (s *ReceiptStore) PresignReceiptUpload(ctx context.Context, folder, fileName, contentType string, size int64) (ports.PresignedURL, error) {
	presigned, err := s.storage.PresignUpload(ctx, storage.Upload{
		Bucket:      s.bucket,
		Folder:      folder,
		FileName:    fileName,
		ContentType: contentType,
		Size:        size,
	})
	if err != nil {
		return ports.PresignedURL{}, err
	}
	return ports.PresignedURL(presigned), nil
}

func (s *ReceiptStore) PresignReceiptDownload(ctx context.Context, fileKey string) (ports.PresignedURL, error) {
	presigned, err := s.storage.PresignDownload(ctx, s.bucket, fileKey)
	if err != nil {
		return ports.PresignedURL{}, err
	}
	return ports.PresignedURL(presigned), nil
}

func (s *ReceiptStore) ReceiptExists(ctx context.Context, fileKey string) (bool, error) {
	return s.storage.Exists(ctx, s.bucket, fileKey)
}

var _ ports.ReceiptStore = (*ReceiptStore)(nil)
