package transport

import (
	"time"

	"github.com/google/uuid"
)

type CreateProjectRequest struct {
	Name          string     `json:"name" validate:"required,notblank,max=200"`
	ClientID      *uuid.UUID `json:"clientId,omitempty"`
	Description   *string    `json:"description,omitempty" validate:"omitempty,max=4000"`
	TeamID        *uuid.UUID `json:"teamId,omitempty"`
	EstimatedCost *float64   `json:"estimatedCost,omitempty" validate:"omitempty,gte=0"`
}

type ListProjectsQuery struct {
	ClientID string `form:"clientId" validate:"omitempty,uuid"`
	TeamID   string `form:"teamId" validate:"omitempty,uuid"`
	Status   string `form:"status"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

type AssignTeamRequest struct {
	TeamID uuid.UUID `json:"teamId" validate:"required"`
}

type CreateTaskRequest struct {
	Title       string     `json:"title" validate:"required,notblank,max=200"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=4000"`
	AssigneeID  *uuid.UUID `json:"assigneeId,omitempty"`
	Weight      *float64   `json:"weight,omitempty" validate:"omitempty,gte=0"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}

// UpdateTaskRequest is the body of PUT /tasks/:id.
type UpdateTaskRequest struct {
	Status             *string `json:"status,omitempty"`
	ProgressPercentage *int    `json:"progressPercentage,omitempty" validate:"omitempty,min=0,max=100"`
}

type CreateTeamRequest struct {
	Name   string     `json:"name" validate:"required,notblank,max=120"`
	LeadID *uuid.UUID `json:"leadId,omitempty"`
}

type AddMemberRequest struct {
	UserID uuid.UUID `json:"userId" validate:"required"`
	Role   string    `json:"role" validate:"required,notblank,max=60"`
}

// AvailabilityRequest is the body of PUT /teams/:id/members/:memberId/availability.
type AvailabilityRequest struct {
	Availability string `json:"availability" validate:"required"`
	Workload     *int   `json:"workload,omitempty" validate:"omitempty,min=0,max=100"`
}
