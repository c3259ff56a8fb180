package transport

// UploadURLRequest asks for a presigned receipt upload.
type UploadURLRequest struct {
	FileName    string `json:"fileName" validate:"required,notblank,max=255"`
	ContentType string `json:"contentType" validate:"required"`
	Size        int64  `json:"size" validate:"required,gt=0"`
}

// SubmitReceiptRequest is sent after the receipt file has been uploaded.
type SubmitReceiptRequest struct {
	Amount  float64 `json:"amount" validate:"required,gt=0"`
	FileKey string  `json:"fileKey" validate:"required,notblank"`
}

// VerifyRequest is the CSR's payment verification decision.
type VerifyRequest struct {
	PaymentAmount float64 `json:"paymentAmount" validate:"gte=0"`
	Action        string  `json:"action" validate:"required,oneof=approve reject approved rejected"`
	Reason        *string `json:"reason,omitempty" validate:"omitempty,max=1000"`
}

// LegacyVerifyRequest is the body of POST /inspection-estimation/:id/verify-payment.
type LegacyVerifyRequest struct {
	PaymentAmount float64 `json:"paymentAmount" validate:"gte=0"`
	Status        string  `json:"status" validate:"required"`
	Reason        *string `json:"reason,omitempty" validate:"omitempty,max=1000"`
}
