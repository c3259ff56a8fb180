package adapters

import (
	"context"

	inspectionsvc "interior_portal_backend/internal/inspections/service"
	"interior_portal_backend/internal/payments/ports"
)

// PaymentTokenResolver lets the payments context resolve public payment
// tokens issued by the inspections context.
type PaymentTokenResolver struct {
	svc *inspectionsvc.Service
}

func NewPaymentTokenResolver(svc *inspectionsvc.Service) *PaymentTokenResolver {
	return &PaymentTokenResolver{svc: svc}
}

func (r *PaymentTokenResolver) ResolvePaymentToken(ctx context.Context, rawToken string) (ports.PublicPaymentRequest, error) {
	req, err := r.svc.ResolvePaymentToken(ctx, rawToken)
	if err != nil {
		return ports.PublicPaymentRequest{}, err
	}
	return ports.PublicPaymentRequest{InspectionRequestID: req.ID, ClientID: req.ClientID}, nil
}

var _ ports.PaymentTokenResolver = (*PaymentTokenResolver)(nil)
