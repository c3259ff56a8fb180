package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"interior_portal_backend/internal/events"
	"interior_portal_backend/internal/notification/sse"
	"interior_portal_backend/platform/authz"
	platformevents "interior_portal_backend/platform/events"
	"interior_portal_backend/platform/logger"

	"github.com/google/uuid"
)

type stubFanout struct {
	mu   sync.Mutex
	err  error
	sent []sse.Envelope
}

func (f *stubFanout) Publish(_ context.Context, env sse.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, env)
	return f.err
}

func TestAudienceFor(t *testing.T) {
	client, inspector := uuid.New(), uuid.New()
	tests := []struct {
		name      string
		event     events.Event
		wantUsers []uuid.UUID
		wantRoles []string
	}{
		{"inspection moves reach client and csr", events.InspectionStatusChanged{ClientID: client}, []uuid.UUID{client}, []string{authz.RoleCSR}},
		{"new receipt reaches csr", events.PaymentSubmitted{ClientID: client}, nil, []string{authz.RoleCSR}},
		{"assignment reaches inspector", events.AssignmentCreated{InspectorID: inspector}, []uuid.UUID{inspector}, []string{authz.RoleCSR}},
		{"progress without client", events.ProjectProgressChanged{}, nil, []string{authz.RoleProjectManager}},
		{"warranty board", events.BoardItemMoved{Board: "warranty"}, nil, []string{authz.RoleCSR, authz.RoleProjectManager}},
		{"material board", events.BoardItemMoved{Board: "material"}, nil, []string{authz.RoleWarehouse, authz.RoleProjectManager}},
		{"unrouted", events.UserCreated{}, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := audienceFor(tt.event)
			if len(got.UserIDs) != len(tt.wantUsers) {
				t.Fatalf("users = %v, want %v", got.UserIDs, tt.wantUsers)
			}
			for i := range tt.wantUsers {
				if got.UserIDs[i] != tt.wantUsers[i] {
					t.Fatalf("users = %v, want %v", got.UserIDs, tt.wantUsers)
				}
			}
			if len(got.Roles) != len(tt.wantRoles) {
				t.Fatalf("roles = %v, want %v", got.Roles, tt.wantRoles)
			}
			for i := range tt.wantRoles {
				if got.Roles[i] != tt.wantRoles[i] {
					t.Fatalf("roles = %v, want %v", got.Roles, tt.wantRoles)
				}
			}
		})
	}
}

func TestHandleGoesThroughFanout(t *testing.T) {
	bus := platformevents.NewInMemoryBus(logger.Nop())
	fanout := &stubFanout{}
	NewModule(bus, sse.New(logger.Nop()), fanout, logger.Nop())

	paymentID := uuid.New()
	if err := bus.PublishSync(context.Background(), events.PaymentSubmitted{BaseEvent: events.NewBaseEvent(), PaymentID: paymentID}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(fanout.sent) != 1 {
		t.Fatalf("expected one envelope, got %d", len(fanout.sent))
	}

	var got struct {
		Type string `json:"type"`
		Data struct {
			PaymentID uuid.UUID `json:"paymentId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(fanout.sent[0].Event, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != events.NamePaymentSubmitted || got.Data.PaymentID != paymentID {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestFanoutFailureFallsBackToLocal(t *testing.T) {
	bus := platformevents.NewInMemoryBus(logger.Nop())
	hub := sse.New(logger.Nop())
	fanout := &stubFanout{err: errors.New("redis down")}
	m := NewModule(bus, hub, fanout, logger.Nop())

	// No local connections: delivery is a no-op, and the error stays inside.
	if err := m.handle(context.Background(), events.TaskUpdated{TaskID: uuid.New()}); err != nil {
		t.Fatalf("handle returned %v", err)
	}
	if len(fanout.sent) != 1 {
		t.Fatalf("fan-out not attempted")
	}
}
