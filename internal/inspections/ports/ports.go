// Package ports defines what the inspections domain needs from external
// systems. Implementations are wired by the composition root.
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PaymentLinkRequest describes the checkout a client is asked to pay.
type PaymentLinkRequest struct {
	InspectionRequestID uuid.UUID
	Title               string
	Description         string
	Amount              float64
	PayerEmail          string
	ReturnURL           string
	ExpiresAt           time.Time
}

// PaymentLink is the provider artifact created for a request.
type PaymentLink struct {
	URL         string
	ProviderRef string
}

// PaymentLinkProvider creates hosted checkout links.
type PaymentLinkProvider interface {
	CreatePaymentLink(ctx context.Context, req PaymentLinkRequest) (PaymentLink, error)
}

// ExpiryScheduler schedules the background job that invalidates a payment
// token once it lapses.
type ExpiryScheduler interface {
	SchedulePaymentLinkExpiry(ctx context.Context, inspectionRequestID uuid.UUID, runAt time.Time) error
}
