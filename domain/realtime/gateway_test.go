package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecampus/campus-core/pkg/rolemodel"
)

func TestAuthorizeChannelUserScope(t *testing.T) {
	g := &Gateway{}
	p := &rolemodel.Principal{UserID: "11111111-1111-1111-1111-111111111111"}
	ctx := context.Background()

	assert.NoError(t, g.authorizeChannel(ctx, p, "user:11111111-1111-1111-1111-111111111111"))
	assert.ErrorIs(t, g.authorizeChannel(ctx, p, "user:22222222-2222-2222-2222-222222222222"), errForbidden)
}

func TestAuthorizeChannelRejectsMalformed(t *testing.T) {
	g := &Gateway{}
	p := &rolemodel.Principal{UserID: "u1"}
	ctx := context.Background()

	assert.ErrorIs(t, g.authorizeChannel(ctx, p, "nocolon"), errInvalidChannel)
	assert.ErrorIs(t, g.authorizeChannel(ctx, p, "course:not-a-uuid"), errInvalidChannel)
	assert.ErrorIs(t, g.authorizeChannel(ctx, p, "galaxy:11111111-1111-1111-1111-111111111111"), errInvalidChannel)
}

func TestAuthorizeChannelCourseScope(t *testing.T) {
	g := &Gateway{}
	courseID := "33333333-3333-3333-3333-333333333333"
	member := &rolemodel.Principal{
		UserID:      "u1",
		CourseRoles: map[string]rolemodel.CourseRole{courseID: rolemodel.RoleStudent},
	}
	stranger := &rolemodel.Principal{UserID: "u2"}
	ctx := context.Background()

	assert.NoError(t, g.authorizeChannel(ctx, member, "course:"+courseID))
	assert.ErrorIs(t, g.authorizeChannel(ctx, stranger, "course:"+courseID), errForbidden)
}

func TestAuthorizeChannelAdminBypass(t *testing.T) {
	g := &Gateway{}
	admin := &rolemodel.Principal{UserID: "u1", IsAdmin: true}
	ctx := context.Background()

	assert.NoError(t, g.authorizeChannel(ctx, admin, "course:33333333-3333-3333-3333-333333333333"))
	assert.ErrorIs(t, g.authorizeChannel(ctx, admin, "galaxy:33333333-3333-3333-3333-333333333333"), errInvalidChannel)
}

func TestSubscribeRejectionLeavesSubscriptionsUntouched(t *testing.T) {
	hub, _ := newTestHub(t)
	g := &Gateway{hub: hub, log: slog.New(slog.NewTextHandler(testWriter{t}, nil))}

	courseID := "33333333-3333-3333-3333-333333333333"
	otherCourse := "44444444-4444-4444-4444-444444444444"
	conn := newConn(nil, &rolemodel.Principal{
		UserID:      "11111111-1111-1111-1111-111111111111",
		CourseRoles: map[string]rolemodel.CourseRole{courseID: rolemodel.RoleStudent},
	})

	g.dispatch(context.Background(), conn, frame{
		Type: "channel:subscribe",
		Channels: []string{
			"user:22222222-2222-2222-2222-222222222222",
			"course:" + otherCourse,
			"course:" + courseID,
		},
	})

	assert.False(t, conn.subscribed("user:22222222-2222-2222-2222-222222222222"))
	assert.False(t, conn.subscribed("course:"+otherCourse))
	assert.True(t, conn.subscribed("course:"+courseID))
	assert.Equal(t, []string{"course:" + courseID}, conn.channelList())

	hub.mu.RLock()
	_, attached := hub.subs["course:"+courseID][conn]
	channels := len(hub.subs)
	hub.mu.RUnlock()
	assert.True(t, attached)
	assert.Equal(t, 1, channels)

	next := func() map[string]any {
		t.Helper()
		select {
		case raw := <-conn.send:
			var ev map[string]any
			require.NoError(t, json.Unmarshal(raw, &ev))
			return ev
		default:
			t.Fatal("expected a queued event")
			return nil
		}
	}

	ev := next()
	assert.Equal(t, "channel:error", ev["type"])
	assert.Equal(t, "user:22222222-2222-2222-2222-222222222222", ev["channel"])
	assert.Equal(t, "FORBIDDEN", ev["reason"])

	ev = next()
	assert.Equal(t, "channel:error", ev["type"])
	assert.Equal(t, "course:"+otherCourse, ev["channel"])

	ev = next()
	assert.Equal(t, "channel:subscribed", ev["type"])
	assert.Equal(t, []any{"course:" + courseID}, ev["channels"])
}

func TestTypingRequiresSubscription(t *testing.T) {
	hub, mr := newTestHub(t)
	g := &Gateway{hub: hub, log: slog.New(slog.NewTextHandler(testWriter{t}, nil))}
	conn := newConn(nil, &rolemodel.Principal{UserID: "u1"})

	g.dispatch(context.Background(), conn, frame{Type: "typing:start", Channel: "course:c1"})

	select {
	case raw := <-conn.send:
		var ev map[string]any
		require.NoError(t, json.Unmarshal(raw, &ev))
		assert.Equal(t, "channel:error", ev["type"])
		assert.Equal(t, "NOT_SUBSCRIBED", ev["reason"])
	default:
		t.Fatal("expected a rejection event")
	}
	assert.False(t, mr.Exists(typingKey("course:c1", "u1")))
}
