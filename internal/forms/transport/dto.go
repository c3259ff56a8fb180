package transport

import "github.com/google/uuid"

type CreateFormRequest struct {
	InspectionRequestID uuid.UUID      `json:"inspectionRequestId" validate:"required"`
	RoomName            string         `json:"roomName" validate:"required,notblank,max=120"`
	RoomType            string         `json:"roomType" validate:"required,notblank,max=60"`
	Measurements        map[string]any `json:"measurements"`
	ConditionNotes      *string        `json:"conditionNotes,omitempty" validate:"omitempty,max=4000"`
}

// UpdateFormRequest changes only the fields present in the body.
type UpdateFormRequest struct {
	RoomName       *string        `json:"roomName,omitempty" validate:"omitempty,max=120"`
	RoomType       *string        `json:"roomType,omitempty" validate:"omitempty,max=60"`
	Measurements   map[string]any `json:"measurements,omitempty"`
	ConditionNotes *string        `json:"conditionNotes,omitempty" validate:"omitempty,max=4000"`
}

type ReviewRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve return"`
}

type ListQuery struct {
	InspectionRequestID string `form:"inspectionRequestId" validate:"required,uuid"`
}
