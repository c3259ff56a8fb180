// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"interior_portal_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// Event names. The notification module uses these as SSE event types.
const (
	NameUserCreated             = "auth.user.created"
	NameInspectionStatusChanged = "inspections.status_changed"
	NamePaymentLinkGenerated    = "inspections.payment_link_generated"
	NamePaymentSubmitted        = "payments.submitted"
	NamePaymentVerified         = "payments.verified"
	NameAssignmentCreated       = "assignments.created"
	NameAssignmentUpdated       = "assignments.updated"
	NameFormSubmitted           = "forms.submitted"
	NameReportGenerated         = "forms.report_generated"
	NameTaskUpdated             = "projects.task_updated"
	NameProjectProgressChanged  = "projects.progress_changed"
	NameBoardItemMoved          = "boards.item_moved"
)

// =============================================================================
// Auth
// =============================================================================

// UserCreated is published after sign-up or admin user creation.
type UserCreated struct {
	BaseEvent
	UserID uuid.UUID `json:"userId"`
	Email  string    `json:"email"`
	Roles  []string  `json:"roles"`
}

func (e UserCreated) EventName() string { return NameUserCreated }

// =============================================================================
// Inspections
// =============================================================================

// InspectionStatusChanged is published on every inspection request transition,
// including the ones driven by payments and assignments.
type InspectionStatusChanged struct {
	BaseEvent
	InspectionRequestID uuid.UUID `json:"inspectionRequestId"`
	ClientID            uuid.UUID `json:"clientId"`
	From                string    `json:"from"`
	To                  string    `json:"to"`
	Reason              string    `json:"reason,omitempty"`
}

func (e InspectionStatusChanged) EventName() string { return NameInspectionStatusChanged }

// PaymentLinkGenerated is published when a CSR issues a payment link.
type PaymentLinkGenerated struct {
	BaseEvent
	InspectionRequestID uuid.UUID `json:"inspectionRequestId"`
	ClientID            uuid.UUID `json:"clientId"`
	EstimatedCost       float64   `json:"estimatedCost"`
	PaymentURL          string    `json:"paymentUrl"`
}

func (e PaymentLinkGenerated) EventName() string { return NamePaymentLinkGenerated }

// =============================================================================
// Payments
// =============================================================================

// PaymentSubmitted is published when a client uploads a receipt.
type PaymentSubmitted struct {
	BaseEvent
	PaymentID           uuid.UUID `json:"paymentId"`
	InspectionRequestID uuid.UUID `json:"inspectionRequestId"`
	ClientID            uuid.UUID `json:"clientId"`
	AmountEntered       float64   `json:"amountEntered"`
}

func (e PaymentSubmitted) EventName() string { return NamePaymentSubmitted }

// PaymentVerified is published after a receipt is approved or rejected.
type PaymentVerified struct {
	BaseEvent
	PaymentID           uuid.UUID `json:"paymentId"`
	InspectionRequestID uuid.UUID `json:"inspectionRequestId"`
	ClientID            uuid.UUID `json:"clientId"`
	Status              string    `json:"status"`
	VerifiedBy          uuid.UUID `json:"verifiedBy"`
}

func (e PaymentVerified) EventName() string { return NamePaymentVerified }

// =============================================================================
// Assignments
// =============================================================================

// AssignmentCreated is pushed to the assigned inspector.
type AssignmentCreated struct {
	BaseEvent
	AssignmentID        uuid.UUID `json:"assignmentId"`
	InspectionRequestID uuid.UUID `json:"inspectionRequestId"`
	InspectorID         uuid.UUID `json:"inspectorId"`
	AssignedBy          uuid.UUID `json:"assignedBy"`
	PropertyAddress     string    `json:"propertyAddress"`
}

func (e AssignmentCreated) EventName() string { return NameAssignmentCreated }

// AssignmentUpdated is pushed to CSRs on every assignment status change.
type AssignmentUpdated struct {
	BaseEvent
	AssignmentID        uuid.UUID `json:"assignmentId"`
	InspectionRequestID uuid.UUID `json:"inspectionRequestId"`
	InspectorID         uuid.UUID `json:"inspectorId"`
	From                string    `json:"from"`
	To                  string    `json:"to"`
	DeclineReason       string    `json:"declineReason,omitempty"`
}

func (e AssignmentUpdated) EventName() string { return NameAssignmentUpdated }

// =============================================================================
// Inspector forms
// =============================================================================

// FormSubmitted is published when an inspector submits a room form for review.
type FormSubmitted struct {
	BaseEvent
	FormID              uuid.UUID `json:"formId"`
	InspectionRequestID uuid.UUID `json:"inspectionRequestId"`
	InspectorID         uuid.UUID `json:"inspectorId"`
}

func (e FormSubmitted) EventName() string { return NameFormSubmitted }

// ReportGenerated is published once the inspection PDF is stored.
type ReportGenerated struct {
	BaseEvent
	InspectionRequestID uuid.UUID `json:"inspectionRequestId"`
	FileKey             string    `json:"fileKey"`
	FormCount           int       `json:"formCount"`
}

func (e ReportGenerated) EventName() string { return NameReportGenerated }

// =============================================================================
// Projects
// =============================================================================

// TaskUpdated is published after a task status or percentage change.
type TaskUpdated struct {
	BaseEvent
	TaskID             uuid.UUID `json:"taskId"`
	ProjectID          uuid.UUID `json:"projectId"`
	Status             string    `json:"status"`
	ProgressPercentage int       `json:"progressPercentage"`
}

func (e TaskUpdated) EventName() string { return NameTaskUpdated }

// ProjectProgressChanged is published when recomputation changes progress or status.
type ProjectProgressChanged struct {
	BaseEvent
	ProjectID      uuid.UUID `json:"projectId"`
	ClientID       uuid.UUID `json:"clientId"`
	Progress       int       `json:"progress"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previousStatus"`
}

func (e ProjectProgressChanged) EventName() string { return NameProjectProgressChanged }

// =============================================================================
// Boards
// =============================================================================

// BoardItemMoved is published when a card moves between board columns.
type BoardItemMoved struct {
	BaseEvent
	Board  string    `json:"board"` // "material" or "warranty"
	ItemID uuid.UUID `json:"itemId"`
	From   string    `json:"from"`
	To     string    `json:"to"`
}

func (e BoardItemMoved) EventName() string { return NameBoardItemMoved }
