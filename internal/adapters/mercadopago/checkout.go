// Package mercadopago implements the inspection payment-link port with
// Mercado Pago checkout preferences.
package mercadopago

import (
	"context"
	"errors"
	"fmt"
	"time"

	"interior_portal_backend/internal/inspections/ports"
	"interior_portal_backend/platform/config"
	"interior_portal_backend/platform/logger"

	mpconfig "github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/preference"
)

var ErrMissingAccessToken = errors.New("missing MERCADOPAGO_ACCESS_TOKEN")

// Checkout creates one checkout preference per payment link.
type Checkout struct {
	client   preference.Client
	currency string
	log      *logger.Logger
}

// New returns the live provider, or a mock when PAYMENT_GATEWAY_MOCK is set.
func New(cfg config.PaymentConfig, log *logger.Logger) (ports.PaymentLinkProvider, error) {
	if cfg.GetPaymentGatewayMock() {
		log.Info("payment gateway mock mode enabled")
		return NewMock(cfg.GetAppBaseURL()), nil
	}
	if cfg.GetMercadoPagoAccessToken() == "" {
		return nil, ErrMissingAccessToken
	}

	sdkCfg, err := mpconfig.New(cfg.GetMercadoPagoAccessToken())
	if err != nil {
		return nil, fmt.Errorf("mercado pago config: %w", err)
	}
	log.Info("mercado pago checkout client initialized")

	return &Checkout{
		client:   preference.NewClient(sdkCfg),
		currency: cfg.GetPaymentCurrency(),
		log:      log,
	}, nil
}

func (c *Checkout) CreatePaymentLink(ctx context.Context, req ports.PaymentLinkRequest) (ports.PaymentLink, error) {
	now := time.Now().UTC()
	expiresAt := req.ExpiresAt

	request := preference.Request{
		ExternalReference: req.InspectionRequestID.String(),
		Items: []preference.ItemRequest{{
			ID:          req.InspectionRequestID.String(),
			Title:       req.Title,
			Description: req.Description,
			CurrencyID:  c.currency,
			Quantity:    1,
			UnitPrice:   req.Amount,
		}},
		Payer: &preference.PayerRequest{
			Email: req.PayerEmail,
		},
		BackURLs: &preference.BackURLsRequest{
			Success: req.ReturnURL,
			Pending: req.ReturnURL,
			Failure: req.ReturnURL,
		},
		Expires:            true,
		ExpirationDateFrom: &now,
		ExpirationDateTo:   &expiresAt,
	}

	resp, err := c.client.Create(ctx, request)
	if err != nil {
		c.log.Error("mercado pago preference failed", "inspectionRequestId", req.InspectionRequestID, "error", err)
		return ports.PaymentLink{}, fmt.Errorf("create preference: %w", err)
	}

	c.log.Info("mercado pago preference created", "inspectionRequestId", req.InspectionRequestID, "preferenceId", resp.ID)
	return ports.PaymentLink{URL: resp.InitPoint, ProviderRef: resp.ID}, nil
}
