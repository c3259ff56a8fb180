package transport

import (
	"time"

	"interior_portal_backend/internal/inspections/repository"
)

type CreateRequest struct {
	ClientID        *string  `json:"clientId" validate:"omitempty,uuid"`
	ContactName     string   `json:"contactName" validate:"required,notblank,max=200"`
	ContactEmail    string   `json:"contactEmail" validate:"required,email"`
	ContactPhone    string   `json:"contactPhone" validate:"required,max=32"`
	PropertyAddress string   `json:"propertyAddress" validate:"required,notblank,max=500"`
	PropertyType    string   `json:"propertyType" validate:"required,notblank,max=100"`
	PropertySizeSqm *float64 `json:"propertySizeSqm" validate:"omitempty,gt=0"`
	PreferredDate   *string  `json:"preferredDate" validate:"omitempty,datetime=2006-01-02"`
	Notes           *string  `json:"notes" validate:"omitempty,max=2000"`
}

type UpdateStatusRequest struct {
	Status string  `json:"status" validate:"required"`
	Reason *string `json:"reason" validate:"omitempty,max=1000"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"required,notblank,max=1000"`
}

type PaymentLinkRequest struct {
	EstimatedCost float64 `json:"estimatedCost" validate:"required,gt=0"`
}

type ListQuery struct {
	Status   *string `form:"status"`
	ClientID *string `form:"clientId" validate:"omitempty,uuid"`
	Page     int     `form:"page" validate:"omitempty,min=1"`
	PageSize int     `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

type PaymentLinkResponse struct {
	Request    repository.InspectionRequest `json:"request"`
	PaymentURL string                       `json:"paymentUrl"`
	PublicURL  string                       `json:"publicUrl"`
	Token      string                       `json:"token"`
	ExpiresAt  time.Time                    `json:"expiresAt"`
	QRCode     string                       `json:"qrCode"`
}

// PublicPaymentView is what an unauthenticated payer sees on the payment page.
type PublicPaymentView struct {
	ID              string     `json:"id"`
	ContactName     string     `json:"contactName"`
	PropertyAddress string     `json:"propertyAddress"`
	PropertyType    string     `json:"propertyType"`
	Status          string     `json:"status"`
	PaymentStatus   string     `json:"paymentStatus"`
	EstimatedCost   *float64   `json:"estimatedCost,omitempty"`
	PaymentURL      *string    `json:"paymentUrl,omitempty"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
}
