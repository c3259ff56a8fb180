package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"interior_portal_backend/platform/authz"
	"interior_portal_backend/platform/httpkit"
	"interior_portal_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientMatches(t *testing.T) {
	user := uuid.New()
	tests := []struct {
		name     string
		roles    []string
		audience Audience
		want     bool
	}{
		{"by user id", []string{authz.RoleClient}, Audience{UserIDs: []uuid.UUID{user}}, true},
		{"other user", []string{authz.RoleClient}, Audience{UserIDs: []uuid.UUID{uuid.New()}}, false},
		{"by role", []string{authz.RoleInspector, authz.RoleCSR}, Audience{Roles: []string{authz.RoleCSR}}, true},
		{"wrong role", []string{authz.RoleWarehouse}, Audience{Roles: []string{authz.RoleCSR}}, false},
		{"admin sees role events", []string{authz.RoleAdmin}, Audience{Roles: []string{authz.RoleWarehouse}}, true},
		{"admin does not see private events", []string{authz.RoleAdmin}, Audience{UserIDs: []uuid.UUID{uuid.New()}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &client{userID: user, roles: tt.roles}
			assert.Equal(t, tt.want, c.matches(tt.audience))
		})
	}
}

func TestDeliverDropsWhenBufferFull(t *testing.T) {
	s := New(logger.Nop())
	c := &client{userID: uuid.New(), roles: []string{authz.RoleCSR}, events: make(chan []byte, 1)}
	require.True(t, s.addClient(c))

	aud := Audience{Roles: []string{authz.RoleCSR}}
	assert.Equal(t, 1, s.Deliver(aud, json.RawMessage(`{"type":"a"}`)))
	assert.Equal(t, 0, s.Deliver(aud, json.RawMessage(`{"type":"b"}`)))

	s.removeClient(c)
	assert.Equal(t, 0, s.Connections())
}

func TestCloseRefusesNewStreams(t *testing.T) {
	s := New(logger.Nop())
	c := &client{userID: uuid.New(), events: make(chan []byte, 1)}
	require.True(t, s.addClient(c))

	s.Close()
	_, open := <-c.events
	assert.False(t, open)
	// removeClient after Close must not close the channel twice.
	s.removeClient(c)
	assert.False(t, s.addClient(&client{userID: uuid.New(), events: make(chan []byte, 1)}))
}

func TestHandlerStreamsAddressedEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := New(logger.Nop())
	userID := uuid.New()

	engine := gin.New()
	engine.GET("/events", func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, userID)
		c.Set(httpkit.ContextRolesKey, []string{authz.RoleClient})
		c.Next()
	}, s.Handler())
	srv := httptest.NewServer(engine)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	readEvent := func() (string, string) {
		var name, data string
		for lines.Scan() {
			line := lines.Text()
			switch {
			case strings.HasPrefix(line, "event:"):
				name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			case line == "" && name != "":
				return name, data
			}
		}
		return name, data
	}

	name, _ := readEvent()
	require.Equal(t, "connected", name)

	// Not addressed to this user: skipped.
	assert.Equal(t, 0, s.Deliver(Audience{Roles: []string{authz.RoleCSR}}, json.RawMessage(`{"type":"payments.submitted"}`)))
	assert.Equal(t, 1, s.Deliver(Audience{UserIDs: []uuid.UUID{userID}}, json.RawMessage(`{"type":"payments.verified","data":{"status":"Approved"}}`)))

	name, data := readEvent()
	assert.Equal(t, "payments.verified", name)
	assert.JSONEq(t, `{"type":"payments.verified","data":{"status":"Approved"}}`, data)
}
