// Package notification pushes domain events to connected users as
// Server-Sent Events. Domain modules publish on the bus and never know who is
// listening.
package notification

import (
	"context"
	"encoding/json"

	"interior_portal_backend/internal/events"
	apphttp "interior_portal_backend/internal/http"
	"interior_portal_backend/internal/notification/sse"
	"interior_portal_backend/platform/authz"
	"interior_portal_backend/platform/logger"

	"github.com/google/uuid"
)

// Fanout relays envelopes to every API instance, this one included.
type Fanout interface {
	Publish(ctx context.Context, env sse.Envelope) error
}

type Module struct {
	hub    *sse.Service
	fanout Fanout
	log    *logger.Logger
}

// NewModule subscribes to the domain events. fanout may be nil, in which case
// events reach only the connections held by this process.
func NewModule(bus events.Bus, hub *sse.Service, fanout Fanout, log *logger.Logger) *Module {
	m := &Module{hub: hub, fanout: fanout, log: log}
	m.subscribe(bus)
	return m
}

func (m *Module) Name() string {
	return "notification"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/events", m.hub.Handler())
}

func (m *Module) subscribe(bus events.Bus) {
	for _, name := range []string{
		events.NameInspectionStatusChanged,
		events.NamePaymentLinkGenerated,
		events.NamePaymentSubmitted,
		events.NamePaymentVerified,
		events.NameAssignmentCreated,
		events.NameAssignmentUpdated,
		events.NameFormSubmitted,
		events.NameReportGenerated,
		events.NameTaskUpdated,
		events.NameProjectProgressChanged,
		events.NameBoardItemMoved,
	} {
		bus.Subscribe(name, events.HandlerFunc(m.handle))
	}
}

func (m *Module) handle(ctx context.Context, e events.Event) error {
	audience := audienceFor(e)
	if audience.Empty() {
		return nil
	}
	data, err := json.Marshal(sse.Event{Type: e.EventName(), OccurredAt: e.OccurredAt(), Data: e})
	if err != nil {
		m.log.Error("encode sse event", "event", e.EventName(), "error", err)
		return nil
	}

	if m.fanout != nil {
		err := m.fanout.Publish(ctx, sse.Envelope{Audience: audience, Event: data})
		if err == nil {
			return nil
		}
		m.log.Warn("realtime fan-out failed, delivering locally", "event", e.EventName(), "error", err)
	}
	m.hub.Deliver(audience, data)
	return nil
}

// audienceFor decides who sees an event. Admins are implied by any role.
func audienceFor(e events.Event) sse.Audience {
	switch ev := e.(type) {
	case events.InspectionStatusChanged:
		return sse.Audience{UserIDs: users(ev.ClientID), Roles: []string{authz.RoleCSR}}
	case events.PaymentLinkGenerated:
		return sse.Audience{UserIDs: users(ev.ClientID)}
	case events.PaymentSubmitted:
		return sse.Audience{Roles: []string{authz.RoleCSR}}
	case events.PaymentVerified:
		return sse.Audience{UserIDs: users(ev.ClientID), Roles: []string{authz.RoleCSR}}
	case events.AssignmentCreated:
		return sse.Audience{UserIDs: users(ev.InspectorID), Roles: []string{authz.RoleCSR}}
	case events.AssignmentUpdated:
		return sse.Audience{UserIDs: users(ev.InspectorID), Roles: []string{authz.RoleCSR}}
	case events.FormSubmitted, events.ReportGenerated:
		return sse.Audience{Roles: []string{authz.RoleCSR}}
	case events.TaskUpdated:
		return sse.Audience{Roles: []string{authz.RoleProjectManager}}
	case events.ProjectProgressChanged:
		return sse.Audience{UserIDs: users(ev.ClientID), Roles: []string{authz.RoleProjectManager}}
	case events.BoardItemMoved:
		if ev.Board == "warranty" {
			return sse.Audience{Roles: []string{authz.RoleCSR, authz.RoleProjectManager}}
		}
		return sse.Audience{Roles: []string{authz.RoleWarehouse, authz.RoleProjectManager}}
	default:
		return sse.Audience{}
	}
}

func users(ids ...uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id != uuid.Nil {
			out = append(out, id)
		}
	}
	return out
}

var _ apphttp.Module = (*Module)(nil)
