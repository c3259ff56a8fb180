package pdf

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertHTML(t *testing.T) {
	var gotUser, gotPass, gotHTML, gotMargin string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forms/chromium/convert/html", r.URL.Path)
		gotUser, gotPass, _ = r.BasicAuth()
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotMargin = r.FormValue("marginTop")

		f, _, err := r.FormFile("files")
		require.NoError(t, err)
		b, _ := io.ReadAll(f)
		gotHTML = string(b)

		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer srv.Close()

	client := NewGotenberg(srv.URL+"/", "user", "secret")
	out, err := client.ConvertHTML(context.Background(), []byte("<h1>Report</h1>"), ReportPageOpts())
	require.NoError(t, err)

	assert.Equal(t, "%PDF-1.7", string(out))
	assert.Equal(t, "user", gotUser)
	assert.Equal(t, "secret", gotPass)
	assert.Equal(t, "<h1>Report</h1>", gotHTML)
	assert.Equal(t, "0.6", gotMargin)
}

func TestConvertHTMLErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "chromium crashed", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewGotenberg(srv.URL, "", "").ConvertHTML(context.Background(), []byte("<p/>"), PageOpts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "chromium crashed")
}

type disabledConfig struct{}

func (disabledConfig) GetGotenbergURL() string      { return "" }
func (disabledConfig) GetGotenbergUsername() string { return "" }
func (disabledConfig) GetGotenbergPassword() string { return "" }
func (disabledConfig) IsGotenbergEnabled() bool     { return false }

func TestNewRequiresURL(t *testing.T) {
	_, err := New(disabledConfig{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
