// Package pdf converts HTML documents to PDF through a Gotenberg instance.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"interior_portal_backend/platform/config"
)

// ErrNotConfigured is returned by New when no Gotenberg URL is set.
var ErrNotConfigured = errors.New("gotenberg is not configured")

// Gotenberg renders HTML to PDF with Gotenberg's Chromium route.
type Gotenberg struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

func New(cfg config.GotenbergConfig) (*Gotenberg, error) {
	if !cfg.IsGotenbergEnabled() {
		return nil, ErrNotConfigured
	}
	return NewGotenberg(cfg.GetGotenbergURL(), cfg.GetGotenbergUsername(), cfg.GetGotenbergPassword()), nil
}

// NewGotenberg builds a client for baseURL. Basic auth is sent when both
// username and password are set.
func NewGotenberg(baseURL, username, password string) *Gotenberg {
	return &Gotenberg{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		http:     &http.Client{Timeout: 60 * time.Second},
	}
}

// PageOpts controls paper margins (inches) and an optional footer.
type PageOpts struct {
	MarginTop    string
	MarginBottom string
	MarginLeft   string
	MarginRight  string
	FooterHTML   []byte
	WaitDelay    string
}

// ReportPageOpts is the A4 layout used for inspection reports.
func ReportPageOpts() PageOpts {
	return PageOpts{
		MarginTop:    "0.6",
		MarginBottom: "0.8",
		MarginLeft:   "0.5",
		MarginRight:  "0.5",
		WaitDelay:    "1s",
	}
}

// ConvertHTML posts indexHTML and returns the PDF bytes.
func (g *Gotenberg) ConvertHTML(ctx context.Context, indexHTML []byte, opts PageOpts) ([]byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	fields := [][2]string{
		{"paperWidth", "8.27"},
		{"paperHeight", "11.7"},
		{"marginTop", opts.MarginTop},
		{"marginBottom", opts.MarginBottom},
		{"marginLeft", opts.MarginLeft},
		{"marginRight", opts.MarginRight},
		{"printBackground", "true"},
	}
	if opts.WaitDelay != "" {
		fields = append(fields, [2]string{"waitDelay", opts.WaitDelay}, [2]string{"skipNetworkIdleEvent", "true"})
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("write field %s: %w", f[0], err)
		}
	}

	if err := addFile(writer, "index.html", "text/html", indexHTML); err != nil {
		return nil, err
	}
	if len(opts.FooterHTML) > 0 {
		if err := addFile(writer, "footer.html", "text/html", opts.FooterHTML); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	return g.post(ctx, "/forms/chromium/convert/html", body, writer.FormDataContentType())
}

func (g *Gotenberg) post(ctx context.Context, path string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if g.username != "" && g.password != "" {
		req.SetBasicAuth(g.username, g.password)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gotenberg %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("gotenberg %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gotenberg response: %w", err)
	}
	return out, nil
}

func addFile(w *multipart.Writer, filename, mimeType string, content []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, filename))
	h.Set("Content-Type", mimeType)

	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create part %s: %w", filename, err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("write part %s: %w", filename, err)
	}
	return nil
}
