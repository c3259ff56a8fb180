package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"interior_portal_backend/internal/workflow"
	"interior_portal_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	receiptNotFoundMsg = "payment receipt not found"
	requestNotFoundMsg = "inspection request not found"
)

// Receipt is a client's proof of payment awaiting CSR verification.
type Receipt struct {
	ID                  uuid.UUID              `json:"id"`
	InspectionRequestID uuid.UUID              `json:"inspectionRequestId"`
	SubmittedBy         *uuid.UUID             `json:"submittedBy,omitempty"`
	AmountEntered       float64                `json:"amountEntered"`
	EstimatedCost       *float64               `json:"estimatedCost,omitempty"`
	ReceiptFileKey      string                 `json:"receiptFileKey"`
	Status              workflow.ReceiptStatus `json:"status"`
	VerifiedAmount      *float64               `json:"verifiedAmount,omitempty"`
	VerifiedBy          *uuid.UUID             `json:"verifiedBy,omitempty"`
	VerifiedAt          *time.Time             `json:"verifiedAt,omitempty"`
	RejectionReason     *string                `json:"rejectionReason,omitempty"`
	CreatedAt           time.Time              `json:"createdAt"`
	UpdatedAt           time.Time              `json:"updatedAt"`
}

// RequestSnapshot is the slice of an inspection request payments reads and writes.
type RequestSnapshot struct {
	ID            uuid.UUID                 `json:"id"`
	ClientID      uuid.UUID                 `json:"clientId"`
	Status        workflow.InspectionStatus `json:"status"`
	PaymentStatus workflow.PaymentStatus    `json:"paymentStatus"`
	EstimatedCost *float64                  `json:"estimatedCost,omitempty"`
}

type NewReceipt struct {
	InspectionRequestID uuid.UUID
	SubmittedBy         *uuid.UUID
	AmountEntered       float64
	FileKey             string
}

// Verification is a CSR's decision on a pending receipt.
type Verification struct {
	ReceiptID      uuid.UUID
	Approve        bool
	VerifiedAmount float64
	VerifiedBy     uuid.UUID
	Reason         *string
	At             time.Time
}

// Outcome is the state of a receipt and its request after a write, plus the
// request status before it.
type Outcome struct {
	Receipt        Receipt
	Request        RequestSnapshot
	PreviousStatus workflow.InspectionStatus
}

type Reader interface {
	GetRequest(ctx context.Context, id uuid.UUID) (RequestSnapshot, error)
	GetReceipt(ctx context.Context, id uuid.UUID) (Receipt, error)
	ListReceipts(ctx context.Context, requestID uuid.UUID) ([]Receipt, error)
}

type Writer interface {
	// SubmitReceipt records a pending receipt and moves the request to
	// payment-submitted in one transaction.
	SubmitReceipt(ctx context.Context, in NewReceipt) (Outcome, error)
	// ApplyVerification settles a pending receipt and moves the request to
	// verified or back to payment-required in one transaction.
	ApplyVerification(ctx context.Context, v Verification) (Outcome, error)
}

type Repository interface {
	Reader
	Writer
}

type Repo struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

const receiptColumns = `id, inspection_request_id, submitted_by, amount_entered::float8,
	estimated_cost::float8, receipt_file_key, status, verified_amount::float8,
	verified_by, verified_at, rejection_reason, created_at, updated_at`

const snapshotColumns = `id, client_id, status, payment_status, estimated_cost::float8`

func scanReceipt(row pgx.Row) (Receipt, error) {
	var r Receipt
	err := row.Scan(
		&r.ID, &r.InspectionRequestID, &r.SubmittedBy, &r.AmountEntered,
		&r.EstimatedCost, &r.ReceiptFileKey, &r.Status, &r.VerifiedAmount,
		&r.VerifiedBy, &r.VerifiedAt, &r.RejectionReason, &r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Receipt{}, apperr.NotFound(receiptNotFoundMsg)
	}
	return r, err
}

func scanSnapshot(row pgx.Row) (RequestSnapshot, error) {
	var s RequestSnapshot
	err := row.Scan(&s.ID, &s.ClientID, &s.Status, &s.PaymentStatus, &s.EstimatedCost)
	if errors.Is(err, pgx.ErrNoRows) {
		return RequestSnapshot{}, apperr.NotFound(requestNotFoundMsg)
	}
	return s, err
}

func (r *Repo) GetRequest(ctx context.Context, id uuid.UUID) (RequestSnapshot, error) {
	snap, err := scanSnapshot(r.pool.QueryRow(ctx, `SELECT `+snapshotColumns+` FROM inspection_requests WHERE id = $1`, id))
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return RequestSnapshot{}, fmt.Errorf("get inspection request: %w", err)
	}
	return snap, err
}

func (r *Repo) GetReceipt(ctx context.Context, id uuid.UUID) (Receipt, error) {
	receipt, err := scanReceipt(r.pool.QueryRow(ctx, `SELECT `+receiptColumns+` FROM payment_receipts WHERE id = $1`, id))
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return Receipt{}, fmt.Errorf("get payment receipt: %w", err)
	}
	return receipt, err
}

func (r *Repo) ListReceipts(ctx context.Context, requestID uuid.UUID) ([]Receipt, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+receiptColumns+` FROM payment_receipts
		WHERE inspection_request_id = $1
		ORDER BY created_at DESC`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list payment receipts: %w", err)
	}
	defer rows.Close()

	receipts := make([]Receipt, 0)
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment receipt: %w", err)
		}
		receipts = append(receipts, receipt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment receipts: %w", err)
	}
	return receipts, nil
}

func (r *Repo) SubmitReceipt(ctx context.Context, in NewReceipt) (Outcome, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Outcome{}, fmt.Errorf("begin receipt submission: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := lockRequest(ctx, tx, in.InspectionRequestID)
	if err != nil {
		return Outcome{}, err
	}
	if err := workflow.Inspections.Transition(before.Status, workflow.InspectionPaymentSubmitted); err != nil {
		return Outcome{}, err
	}
	if before.Status == workflow.InspectionPaymentSubmitted {
		return Outcome{}, apperr.Conflict("a receipt is already awaiting verification")
	}

	receipt, err := scanReceipt(tx.QueryRow(ctx, `
		INSERT INTO payment_receipts (
			inspection_request_id, submitted_by, amount_entered, estimated_cost, receipt_file_key, status
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+receiptColumns,
		in.InspectionRequestID, in.SubmittedBy, in.AmountEntered, before.EstimatedCost, in.FileKey, workflow.ReceiptPending))
	if err != nil {
		return Outcome{}, fmt.Errorf("insert payment receipt: %w", err)
	}

	after, err := updateRequest(ctx, tx, in.InspectionRequestID, workflow.InspectionPaymentSubmitted, workflow.PaymentAwaitingVerification)
	if err != nil {
		return Outcome{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Outcome{}, fmt.Errorf("commit receipt submission: %w", err)
	}
	return Outcome{Receipt: receipt, Request: after, PreviousStatus: before.Status}, nil
}

func (r *Repo) ApplyVerification(ctx context.Context, v Verification) (Outcome, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Outcome{}, fmt.Errorf("begin payment verification: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanReceipt(tx.QueryRow(ctx, `SELECT `+receiptColumns+` FROM payment_receipts WHERE id = $1 FOR UPDATE`, v.ReceiptID))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return Outcome{}, err
		}
		return Outcome{}, fmt.Errorf("lock payment receipt: %w", err)
	}

	receiptTarget, requestTarget, paymentTarget := workflow.ReceiptRejected, workflow.InspectionPaymentRequired, workflow.PaymentRejected
	if v.Approve {
		receiptTarget, requestTarget, paymentTarget = workflow.ReceiptApproved, workflow.InspectionVerified, workflow.PaymentPaid
	}
	if current.Status != workflow.ReceiptPending {
		return Outcome{}, &workflow.TransitionError{Entity: workflow.Receipts.Entity(), From: string(current.Status), To: string(receiptTarget)}
	}

	before, err := lockRequest(ctx, tx, current.InspectionRequestID)
	if err != nil {
		return Outcome{}, err
	}
	if err := workflow.Inspections.Transition(before.Status, requestTarget); err != nil {
		return Outcome{}, err
	}

	receipt, err := scanReceipt(tx.QueryRow(ctx, `
		UPDATE payment_receipts
		SET status = $2,
			verified_amount = $3,
			verified_by = $4,
			verified_at = $5,
			rejection_reason = $6,
			updated_at = now()
		WHERE id = $1
		RETURNING `+receiptColumns,
		v.ReceiptID, receiptTarget, v.VerifiedAmount, v.VerifiedBy, v.At, v.Reason))
	if err != nil {
		return Outcome{}, fmt.Errorf("update payment receipt: %w", err)
	}

	after, err := updateRequest(ctx, tx, current.InspectionRequestID, requestTarget, paymentTarget)
	if err != nil {
		return Outcome{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Outcome{}, fmt.Errorf("commit payment verification: %w", err)
	}
	return Outcome{Receipt: receipt, Request: after, PreviousStatus: before.Status}, nil
}

func lockRequest(ctx context.Context, tx pgx.Tx, id uuid.UUID) (RequestSnapshot, error) {
	snap, err := scanSnapshot(tx.QueryRow(ctx, `SELECT `+snapshotColumns+` FROM inspection_requests WHERE id = $1 FOR UPDATE`, id))
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return RequestSnapshot{}, fmt.Errorf("lock inspection request: %w", err)
	}
	return snap, err
}

func updateRequest(ctx context.Context, tx pgx.Tx, id uuid.UUID, status workflow.InspectionStatus, payment workflow.PaymentStatus) (RequestSnapshot, error) {
	snap, err := scanSnapshot(tx.QueryRow(ctx, `
		UPDATE inspection_requests
		SET status = $2, payment_status = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+snapshotColumns, id, status, payment))
	if err != nil {
		return RequestSnapshot{}, fmt.Errorf("update inspection request payment state: %w", err)
	}
	return snap, nil
}
