package fanout

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"interior_portal_backend/internal/notification/sse"
	"interior_portal_backend/platform/authz"
	"interior_portal_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	audience sse.Audience
	event    json.RawMessage
}

type recorder struct {
	mu  sync.Mutex
	got []captured
}

func (r *recorder) Deliver(a sse.Audience, e json.RawMessage) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, captured{audience: a, event: e})
	return 1
}

func (r *recorder) snapshot() []captured {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]captured(nil), r.got...)
}

func TestRedisRelaysBetweenInstances(t *testing.T) {
	mr := miniredis.RunT(t)

	a := newRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:realtime", &recorder{}, logger.Nop())
	bLocal := &recorder{}
	b := newRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:realtime", bLocal, logger.Nop())
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(mr.PubSubChannels("test:*")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	userID := uuid.New()
	env := sse.Envelope{
		Audience: sse.Audience{UserIDs: []uuid.UUID{userID}, Roles: []string{authz.RoleCSR}},
		Event:    json.RawMessage(`{"type":"payments.submitted"}`),
	}
	require.NoError(t, a.Publish(ctx, env))

	require.Eventually(t, func() bool { return len(bLocal.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	got := bLocal.snapshot()[0]
	assert.Equal(t, env.Audience, got.audience)
	assert.JSONEq(t, `{"type":"payments.submitted"}`, string(got.event))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRedisSkipsMalformedEnvelopes(t *testing.T) {
	mr := miniredis.RunT(t)
	local := &recorder{}
	r := newRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "", local, logger.Nop())
	t.Cleanup(func() { _ = r.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(mr.PubSubChannels(defaultChannel)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mr.Publish(defaultChannel, "not json")
	require.NoError(t, r.Publish(ctx, sse.Envelope{Audience: sse.Audience{Roles: []string{authz.RoleCSR}}, Event: json.RawMessage(`{}`)}))

	require.Eventually(t, func() bool { return len(local.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestRedisOptions(t *testing.T) {
	opt, err := redisOptions("rediss://:secret@cache.internal:6380/2", true)
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opt.Addr)
	assert.Equal(t, 2, opt.DB)
	require.NotNil(t, opt.TLSConfig)
	assert.True(t, opt.TLSConfig.InsecureSkipVerify)

	_, err = redisOptions("://bad", false)
	assert.Error(t, err)
}
