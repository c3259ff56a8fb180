package mercadopago

import (
	"context"
	"strconv"
	"strings"
	"time"

	"interior_portal_backend/internal/inspections/ports"
)

// Mock fabricates checkout links for local development and tests.
type Mock struct {
	baseURL string
}

func NewMock(baseURL string) *Mock {
	return &Mock{baseURL: strings.TrimRight(baseURL, "/")}
}

func (m *Mock) CreatePaymentLink(_ context.Context, req ports.PaymentLinkRequest) (ports.PaymentLink, error) {
	ref := "mock-" + strconv.FormatInt(time.Now().UTC().UnixNano(), 10)
	return ports.PaymentLink{
		URL:         m.baseURL + "/mock-checkout/" + req.InspectionRequestID.String() + "?ref=" + ref,
		ProviderRef: ref,
	}, nil
}
