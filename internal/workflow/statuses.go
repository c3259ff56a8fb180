package workflow

// InspectionStatus is the lifecycle status of an inspection request.
type InspectionStatus string

const (
	InspectionPending          InspectionStatus = "pending"
	InspectionPaymentRequired  InspectionStatus = "payment-required"
	InspectionPaymentSubmitted InspectionStatus = "payment-submitted"
	InspectionVerified         InspectionStatus = "verified"
	InspectionAssigned         InspectionStatus = "assigned"
	InspectionInProgress       InspectionStatus = "in-progress"
	InspectionCompleted        InspectionStatus = "completed"
	InspectionCancelled        InspectionStatus = "cancelled"
)

// Inspections governs inspection request status changes. The moves back to
// payment-required and verified are reserved for payment rejection and
// inspector decline respectively.
var Inspections = NewMachine("inspection request",
	[]InspectionStatus{
		InspectionPending, InspectionPaymentRequired, InspectionPaymentSubmitted, InspectionVerified,
		InspectionAssigned, InspectionInProgress, InspectionCompleted, InspectionCancelled,
	},
	map[InspectionStatus][]InspectionStatus{
		InspectionPending:          {InspectionPaymentRequired, InspectionCancelled},
		InspectionPaymentRequired:  {InspectionPaymentSubmitted, InspectionCancelled},
		InspectionPaymentSubmitted: {InspectionVerified, InspectionPaymentRequired, InspectionCancelled},
		InspectionVerified:         {InspectionAssigned, InspectionCancelled},
		InspectionAssigned:         {InspectionInProgress, InspectionVerified, InspectionCancelled},
		InspectionInProgress:       {InspectionCompleted, InspectionCancelled},
	},
)

// PaymentStatus is the payment state stored on an inspection request.
type PaymentStatus string

const (
	PaymentUnpaid               PaymentStatus = "unpaid"
	PaymentAwaitingVerification PaymentStatus = "awaiting-verification"
	PaymentPaid                 PaymentStatus = "paid"
	PaymentRejected             PaymentStatus = "rejected"
)

// ReceiptStatus is the review state of an uploaded payment receipt.
type ReceiptStatus string

const (
	ReceiptPending  ReceiptStatus = "pending"
	ReceiptApproved ReceiptStatus = "approved"
	ReceiptRejected ReceiptStatus = "rejected"
)

var Receipts = NewMachine("payment receipt",
	[]ReceiptStatus{ReceiptPending, ReceiptApproved, ReceiptRejected},
	map[ReceiptStatus][]ReceiptStatus{
		ReceiptPending: {ReceiptApproved, ReceiptRejected},
	},
)

// AssignmentStatus is the lifecycle status of an inspector assignment.
type AssignmentStatus string

const (
	AssignmentAssigned   AssignmentStatus = "assigned"
	AssignmentInProgress AssignmentStatus = "in-progress"
	AssignmentPaused     AssignmentStatus = "paused"
	AssignmentDeclined   AssignmentStatus = "declined"
	AssignmentCompleted  AssignmentStatus = "completed"
	AssignmentCancelled  AssignmentStatus = "cancelled"
)

// Assignments governs assignment status changes. Cancelled is only reached
// when the inspection request itself is cancelled.
var Assignments = NewMachine("assignment",
	[]AssignmentStatus{AssignmentAssigned, AssignmentInProgress, AssignmentPaused, AssignmentDeclined, AssignmentCompleted, AssignmentCancelled},
	map[AssignmentStatus][]AssignmentStatus{
		AssignmentAssigned:   {AssignmentInProgress, AssignmentDeclined, AssignmentCancelled},
		AssignmentInProgress: {AssignmentPaused, AssignmentCompleted, AssignmentCancelled},
		AssignmentPaused:     {AssignmentInProgress, AssignmentCancelled},
	},
)

// OpenAssignmentStatuses keep an inspector occupied, as stored in the database.
var OpenAssignmentStatuses = []string{
	string(AssignmentAssigned),
	string(AssignmentInProgress),
	string(AssignmentPaused),
}

// InspectorAvailability is the dispatch state of an inspector.
type InspectorAvailability string

const (
	InspectorAvailable   InspectorAvailability = "available"
	InspectorBusy        InspectorAvailability = "busy"
	InspectorUnavailable InspectorAvailability = "unavailable"
)

var InspectorAvailabilities = NewEnum("inspector availability", InspectorAvailable, InspectorBusy, InspectorUnavailable)

// FormStatus is the completion status of an inspector form.
type FormStatus string

const (
	FormDraft     FormStatus = "draft"
	FormSubmitted FormStatus = "submitted"
	FormApproved  FormStatus = "approved"
)

var Forms = NewMachine("inspector form",
	[]FormStatus{FormDraft, FormSubmitted, FormApproved},
	map[FormStatus][]FormStatus{
		FormDraft:     {FormSubmitted},
		FormSubmitted: {FormApproved, FormDraft},
	},
)

// TaskStatus is the status of a project task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "Pending"
	TaskInProgress TaskStatus = "In Progress"
	TaskDone       TaskStatus = "Done"
	TaskCompleted  TaskStatus = "Completed"
	TaskBlocked    TaskStatus = "Blocked"
)

// Finished reports whether the task counts toward completed weight.
func (s TaskStatus) Finished() bool {
	return s == TaskDone || s == TaskCompleted
}

var Tasks = NewMachine("task",
	[]TaskStatus{TaskPending, TaskInProgress, TaskDone, TaskCompleted, TaskBlocked},
	map[TaskStatus][]TaskStatus{
		TaskPending:    {TaskInProgress, TaskDone, TaskCompleted, TaskBlocked},
		TaskInProgress: {TaskDone, TaskCompleted, TaskBlocked, TaskPending},
		TaskBlocked:    {TaskPending, TaskInProgress},
		TaskDone:       {TaskInProgress},
		TaskCompleted:  {TaskInProgress},
	},
)

// ProjectStatus is derived from team assignment and task progress.
type ProjectStatus string

const (
	ProjectOnHold     ProjectStatus = "On Hold"
	ProjectActive     ProjectStatus = "Active"
	ProjectInProgress ProjectStatus = "In Progress"
	ProjectCompleted  ProjectStatus = "Completed"
)

var Projects = NewEnum("project", ProjectOnHold, ProjectActive, ProjectInProgress, ProjectCompleted)

// MemberAvailability is the availability of a team member.
type MemberAvailability string

const (
	MemberAvailable MemberAvailability = "available"
	MemberBusy      MemberAvailability = "busy"
	MemberOnLeave   MemberAvailability = "on-leave"
)

var MemberAvailabilities = NewEnum("team member availability", MemberAvailable, MemberBusy, MemberOnLeave)

// MaterialStatus is a material request board column.
type MaterialStatus string

const (
	MaterialPending   MaterialStatus = "Pending"
	MaterialApproved  MaterialStatus = "Approved"
	MaterialOrdered   MaterialStatus = "Ordered"
	MaterialDelivered MaterialStatus = "Delivered"
	MaterialRejected  MaterialStatus = "Rejected"
)

// Materials enforces membership only; cards move freely between columns.
var Materials = NewEnum("material request",
	MaterialPending, MaterialApproved, MaterialOrdered, MaterialDelivered, MaterialRejected)

// WarrantyStatus is a warranty claim board column.
type WarrantyStatus string

const (
	WarrantySubmitted   WarrantyStatus = "Submitted"
	WarrantyUnderReview WarrantyStatus = "Under Review"
	WarrantyApproved    WarrantyStatus = "Approved"
	WarrantyInProgress  WarrantyStatus = "In Progress"
	WarrantyResolved    WarrantyStatus = "Resolved"
	WarrantyRejected    WarrantyStatus = "Rejected"
)

var Warranties = NewEnum("warranty claim",
	WarrantySubmitted, WarrantyUnderReview, WarrantyApproved, WarrantyInProgress, WarrantyResolved, WarrantyRejected)
