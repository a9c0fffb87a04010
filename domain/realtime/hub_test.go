package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecampus/campus-core/pkg/rolemodel"
)

func newTestHub(t *testing.T) (*Hub, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewHub(rdb, slog.New(slog.NewTextHandler(testWriter{t}, nil))), mr
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestTypingLifecycle(t *testing.T) {
	hub, mr := newTestHub(t)
	ctx := context.Background()

	require.NoError(t, hub.SetTyping(ctx, "course:c1", "u1"))
	require.NoError(t, hub.SetTyping(ctx, "course:c1", "u2"))

	users, err := hub.TypingUsers(ctx, "course:c1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, users)

	require.NoError(t, hub.ClearTyping(ctx, "course:c1", "u1"))
	users, err = hub.TypingUsers(ctx, "course:c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, users)

	mr.FastForward(typingTTL + time.Second)
	users, err = hub.TypingUsers(ctx, "course:c1")
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestBroadcastDeliversToLocalSubscribers(t *testing.T) {
	hub, _ := newTestHub(t)
	ctx := context.Background()

	hub.Start(ctx)
	defer hub.Stop()

	conn := newConn(nil, &rolemodel.Principal{UserID: "u1"})
	hub.attach("course:c1", conn)

	hub.Broadcast(ctx, "course:c1", "message:new", map[string]string{"id": "m1"})

	select {
	case raw := <-conn.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		assert.Equal(t, "message:new", env.Type)
		assert.Equal(t, "course:c1", env.Channel)
		assert.JSONEq(t, `{"id":"m1"}`, string(env.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("no envelope delivered")
	}
}

func TestDetachStopsDelivery(t *testing.T) {
	hub, _ := newTestHub(t)
	ctx := context.Background()

	hub.Start(ctx)
	defer hub.Stop()

	conn := newConn(nil, &rolemodel.Principal{UserID: "u1"})
	hub.attach("course:c1", conn)
	hub.detach("course:c1", conn)

	hub.Broadcast(ctx, "course:c1", "message:new", map[string]string{"id": "m1"})

	select {
	case <-conn.send:
		t.Fatal("detached connection received an envelope")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPublishEntityEventNeedsCourseScope(t *testing.T) {
	hub, _ := newTestHub(t)
	ctx := context.Background()

	hub.Start(ctx)
	defer hub.Stop()

	conn := newConn(nil, &rolemodel.Principal{UserID: "u1"})
	hub.attach("course:c1", conn)

	hub.PublishEntityEvent(ctx, "results", "created", "r1", map[string]string{"id": "r1"})
	select {
	case <-conn.send:
		t.Fatal("payload without a course id must not be broadcast")
	case <-time.After(200 * time.Millisecond):
	}

	hub.PublishEntityEvent(ctx, "results", "created", "r1", map[string]string{"id": "r1", "courseId": "c1"})
	select {
	case raw := <-conn.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		assert.Equal(t, "results:created", env.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("course-scoped payload was not broadcast")
	}
}
