package adapters

import (
	"context"

	"interior_portal_backend/internal/forms/ports"
	"interior_portal_backend/internal/pdf"
)

// ReportRenderer converts report HTML through Gotenberg with A4 report margins.
type ReportRenderer struct {
	gotenberg *pdf.Gotenberg
}

func NewReportRenderer(g *pdf.Gotenberg) *ReportRenderer {
	return &ReportRenderer{gotenberg: g}
}

func (r *ReportRenderer) RenderPDF(ctx context.Context, html []byte) ([]byte, error) {
	if r.gotenberg == nil {
		return nil, pdf.ErrNotConfigured
	}
	return r.gotenberg.ConvertHTML(ctx, html, pdf.ReportPageOpts())
}

var _ ports.PDFRenderer = (*ReportRenderer)(nil)
