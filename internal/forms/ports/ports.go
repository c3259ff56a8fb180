// Package ports declares the storage and rendering collaborators of the
// forms context.
package ports

import (
	"context"
	"time"
)

// PresignedURL is a time-limited download link.
type PresignedURL struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// PhotoStore keeps room photos.
type PhotoStore interface {
	PutPhoto(ctx context.Context, folder, fileName, contentType string, data []byte) (string, error)
	PresignPhoto(ctx context.Context, fileKey string) (PresignedURL, error)
}

// ReportStore keeps generated report PDFs.
type ReportStore interface {
	PutReport(ctx context.Context, folder, fileName string, pdf []byte) (string, error)
	PresignReport(ctx context.Context, fileKey string) (PresignedURL, error)
	DeleteReport(ctx context.Context, fileKey string) error
}

// PDFRenderer turns a self-contained HTML document into a PDF.
type PDFRenderer interface {
	RenderPDF(ctx context.Context, html []byte) ([]byte, error)
}
