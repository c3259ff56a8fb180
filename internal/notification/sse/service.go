// Package sse provides Server-Sent Events support for real-time notifications.
package sse

import (
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"interior_portal_backend/platform/authz"
	"interior_portal_backend/platform/httpkit"
	"interior_portal_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	clientBuffer      = 32
	heartbeatInterval = 25 * time.Second
)

// Event is an SSE payload. Type is the domain event name.
type Event struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data,omitempty"`
}

// Audience selects connected users by id or by role. Admins receive every
// role-addressed event.
type Audience struct {
	UserIDs []uuid.UUID `json:"userIds,omitempty"`
	Roles   []string    `json:"roles,omitempty"`
}

// Empty reports whether the audience addresses nobody.
func (a Audience) Empty() bool {
	return len(a.UserIDs) == 0 && len(a.Roles) == 0
}

// Envelope is an addressed event, as carried between API instances.
type Envelope struct {
	Audience Audience        `json:"audience"`
	Event    json.RawMessage `json:"event"`
}

type client struct {
	userID uuid.UUID
	roles  []string
	events chan []byte
}

func (c *client) matches(a Audience) bool {
	if slices.Contains(a.UserIDs, c.userID) {
		return true
	}
	if len(a.Roles) == 0 {
		return false
	}
	if slices.Contains(c.roles, authz.RoleAdmin) {
		return true
	}
	for _, r := range c.roles {
		if slices.Contains(a.Roles, r) {
			return true
		}
	}
	return false
}

// Service manages SSE connections and local delivery.
type Service struct {
	mu      sync.RWMutex
	clients map[uuid.UUID][]*client
	closed  bool
	log     *logger.Logger
}

func New(log *logger.Logger) *Service {
	return &Service{
		clients: make(map[uuid.UUID][]*client),
		log:     log,
	}
}

func (s *Service) addClient(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[c.userID] = append(s.clients[c.userID], c)
	return true
}

func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := s.clients[c.userID]
	idx := slices.Index(clients, c)
	if idx < 0 {
		// Already dropped by Close.
		return
	}
	s.clients[c.userID] = slices.Delete(clients, idx, idx+1)
	if len(s.clients[c.userID]) == 0 {
		delete(s.clients, c.userID)
	}
	close(c.events)
}

// Deliver pushes an encoded event to every local connection the audience
// selects and returns how many received it. A full buffer drops the event for
// that connection.
func (s *Service) Deliver(audience Audience, event json.RawMessage) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	delivered := 0
	for userID, clients := range s.clients {
		for _, c := range clients {
			if !c.matches(audience) {
				continue
			}
			select {
			case c.events <- event:
				delivered++
			default:
				s.log.Warn("sse buffer full, event dropped", "userId", userID)
			}
		}
	}
	return delivered
}

// Connections returns the number of open connections.
func (s *Service) Connections() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, clients := range s.clients {
		n += len(clients)
	}
	return n
}

// Handler streams events to the authenticated caller until the request ends.
func (s *Service) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := httpkit.MustGetActor(c)
		if !ok {
			return
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		cl := &client{
			userID: actor.UserID,
			roles:  actor.Roles,
			events: make(chan []byte, clientBuffer),
		}
		if !s.addClient(cl) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "shutting down"})
			return
		}
		defer s.removeClient(cl)

		c.SSEvent("connected", gin.H{"userId": actor.UserID, "roles": actor.Roles})
		c.Writer.Flush()
		s.log.Debug("sse client connected", "userId", actor.UserID)

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				s.log.Debug("sse client disconnected", "userId", actor.UserID)
				return
			case <-heartbeat.C:
				c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
				c.Writer.Flush()
			case data, ok := <-cl.events:
				if !ok {
					return
				}
				var head struct {
					Type string `json:"type"`
				}
				_ = json.Unmarshal(data, &head)
				c.SSEvent(head.Type, string(data))
				c.Writer.Flush()
			}
		}
	}
}

// Close ends every open stream and refuses new ones.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for _, clients := range s.clients {
		for _, c := range clients {
			close(c.events)
		}
	}
	s.clients = make(map[uuid.UUID][]*client)
}
