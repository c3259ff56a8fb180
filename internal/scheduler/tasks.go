package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const TaskPaymentLinkExpiry = "inspections.payment_link_expiry"

type PaymentLinkExpiryPayload struct {
	InspectionRequestID string `json:"inspectionRequestId"`
}

func NewPaymentLinkExpiryTask(inspectionRequestID uuid.UUID) (*asynq.Task, error) {
	data, err := json.Marshal(PaymentLinkExpiryPayload{InspectionRequestID: inspectionRequestID.String()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentLinkExpiry, data), nil
}

func ParsePaymentLinkExpiryPayload(task *asynq.Task) (uuid.UUID, error) {
	var payload PaymentLinkExpiryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(payload.InspectionRequestID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid inspection request id %q: %w", payload.InspectionRequestID, err)
	}
	return id, nil
}
