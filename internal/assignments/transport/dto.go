package transport

import "time"

type CreateRequest struct {
	InspectionRequestID string  `json:"inspectionRequestId" validate:"required,uuid"`
	InspectorID         string  `json:"inspectorId" validate:"required,uuid"`
	Notes               *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// StatusRequest is the body of PATCH /assignments/status/:id.
type StatusRequest struct {
	Status              string     `json:"status" validate:"required"`
	InspectionStartTime *time.Time `json:"inspection_start_time,omitempty"`
	DeclineReason       *string    `json:"decline_reason,omitempty" validate:"omitempty,max=1000"`
	ActionNotes         *string    `json:"action_notes,omitempty" validate:"omitempty,max=2000"`
}

type AcceptRequest struct {
	InspectionStartTime *time.Time `json:"inspectionStartTime,omitempty"`
	Notes               *string    `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type DeclineRequest struct {
	Reason string  `json:"reason" validate:"required,notblank,max=1000"`
	Notes  *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type NotesRequest struct {
	Notes *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type ListQuery struct {
	InspectorID         *string `form:"inspectorId" validate:"omitempty,uuid"`
	InspectionRequestID *string `form:"inspectionRequestId" validate:"omitempty,uuid"`
	Status              *string `form:"status"`
	Page                int     `form:"page" validate:"omitempty,min=1"`
	PageSize            int     `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

type InspectorQuery struct {
	Availability *string `form:"availability"`
}

type AvailabilityRequest struct {
	Availability string `json:"availability" validate:"required"`
}
