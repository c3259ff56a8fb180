package transport

import (
	"time"

	"github.com/google/uuid"
)

type CreateMaterialRequest struct {
	ProjectID    *uuid.UUID `json:"projectId,omitempty"`
	MaterialName string     `json:"materialName" validate:"required,notblank,max=200"`
	Quantity     float64    `json:"quantity" validate:"required,gt=0"`
	Unit         string     `json:"unit" validate:"required,notblank,max=30"`
	Supplier     *string    `json:"supplier,omitempty" validate:"omitempty,max=200"`
	NeededBy     *time.Time `json:"neededBy,omitempty"`
	Notes        *string    `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type CreateWarrantyRequest struct {
	ProjectID   *uuid.UUID `json:"projectId,omitempty"`
	ClientID    *uuid.UUID `json:"clientId,omitempty"`
	Title       string     `json:"title" validate:"required,notblank,max=200"`
	Description string     `json:"description" validate:"required,notblank,max=4000"`
}

// StatusRequest is the body of PATCH /material-requests/:id/status and
// PATCH /warranty-claims/:id/status.
type StatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type ListQuery struct {
	ProjectID string `form:"projectId" validate:"omitempty,uuid"`
}
