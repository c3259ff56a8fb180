package mercadopago

import (
	"context"
	"strings"
	"testing"
	"time"

	"interior_portal_backend/internal/inspections/ports"
	"interior_portal_backend/platform/logger"

	"github.com/google/uuid"
)

type paymentConfig struct {
	mock  bool
	token string
}

func (c paymentConfig) GetAppBaseURL() string             { return "https://portal.example/" }
func (c paymentConfig) GetMercadoPagoAccessToken() string { return c.token }
func (c paymentConfig) GetPaymentGatewayMock() bool       { return c.mock }
func (c paymentConfig) GetPaymentCurrency() string        { return "PHP" }
func (c paymentConfig) GetPaymentLinkTTL() time.Duration  { return time.Hour }

func TestNewSelectsMockMode(t *testing.T) {
	provider, err := New(paymentConfig{mock: true}, logger.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := provider.(*Mock); !ok {
		t.Fatalf("expected mock provider, got %T", provider)
	}
}

func TestNewRequiresAccessToken(t *testing.T) {
	if _, err := New(paymentConfig{}, logger.Nop()); err != ErrMissingAccessToken {
		t.Fatalf("expected ErrMissingAccessToken, got %v", err)
	}
}

func TestMockLink(t *testing.T) {
	id := uuid.New()
	link, err := NewMock("https://portal.example/").CreatePaymentLink(context.Background(), ports.PaymentLinkRequest{InspectionRequestID: id})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(link.URL, "https://portal.example/mock-checkout/"+id.String()) || link.ProviderRef == "" {
		t.Fatalf("unexpected link %+v", link)
	}
}
