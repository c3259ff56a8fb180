// Package ports declares what the payments context needs from the rest of
// the system. Adapters in internal/adapters implement them.
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PublicPaymentRequest identifies the inspection request behind a public
// payment token.
type PublicPaymentRequest struct {
	InspectionRequestID uuid.UUID
	ClientID            uuid.UUID
}

// PaymentTokenResolver resolves a public payment token. Unknown tokens are
// not found and lapsed ones are gone.
type PaymentTokenResolver interface {
	ResolvePaymentToken(ctx context.Context, rawToken string) (PublicPaymentRequest, error)
}

// PresignedURL is a time-limited direct link to a receipt object.
type PresignedURL struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ReceiptStore holds uploaded receipt files.
type ReceiptStore interface {
	PresignReceiptUpload(ctx context.Context, folder, fileName, contentType string, size int64) (PresignedURL, error)
	PresignReceiptDownload(ctx context.Context, fileKey string) (PresignedURL, error)
	ReceiptExists(ctx context.Context, fileKey string) (bool, error)
}
