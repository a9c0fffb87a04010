package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/codecampus/campus-core/domain/courses"
	"github.com/codecampus/campus-core/domain/messages"
	"github.com/codecampus/campus-core/pkg/auth"
	"github.com/codecampus/campus-core/pkg/logger"
	"github.com/codecampus/campus-core/pkg/rolemodel"
)

// idleTimeout closes connections without client traffic. A pong is not
// required for liveness; any frame refreshes the deadline.
const idleTimeout = 60 * time.Second

var (
	errInvalidChannel = errors.New("INVALID_CHANNEL")
	errForbidden      = errors.New("FORBIDDEN")
	errNotSubscribed  = errors.New("NOT_SUBSCRIBED")
)

// frame is the inbound client message. All types are lower-case with a type
// discriminant.
type frame struct {
	Type      string   `json:"type"`
	Channels  []string `json:"channels,omitempty"`
	Channel   string   `json:"channel,omitempty"`
	MessageID string   `json:"message_id,omitempty"`
}

// Gateway upgrades, authenticates and serves WebSocket connections.
type Gateway struct {
	hub      *Hub
	authMW   *auth.Middleware
	messages *messages.Service
	courses  *courses.Service
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewGateway creates the gateway.
func NewGateway(hub *Hub, authMW *auth.Middleware, messagesSvc *messages.Service, coursesSvc *courses.Service, log *slog.Logger) *Gateway {
	return &Gateway{
		hub:      hub,
		authMW:   authMW,
		messages: messagesSvc,
		courses:  coursesSvc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Token auth replaces origin checks; browsers cannot set headers
			// on WebSocket upgrades.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log.With(logger.Scope("realtime.gateway")),
	}
}

// Handle serves GET /ws. Authentication happens after the upgrade so auth
// failures close with a policy code instead of an HTTP status.
func (g *Gateway) Handle(c echo.Context) error {
	ws, err := g.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the handshake error.
		return nil
	}

	if err := g.authMW.Authenticate(c); err != nil {
		deadline := time.Now().Add(writeTimeout)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(closeAuthFailure, "authentication failed"), deadline)
		_ = ws.Close()
		return nil
	}
	p := auth.GetPrincipal(c)

	conn := newConn(ws, p)
	go conn.writeLoop()
	conn.sendEvent("system:connected", map[string]any{"user_id": p.UserID})
	connectionsGauge.Inc()

	g.log.Info("websocket connected", slog.String("user_id", p.UserID))
	g.readLoop(c.Request().Context(), conn)
	g.cleanup(conn)
	connectionsGauge.Dec()
	g.log.Info("websocket disconnected", slog.String("user_id", p.UserID))
	return nil
}

// readLoop processes inbound frames in order until the socket dies or the
// idle deadline passes.
func (g *Gateway) readLoop(ctx context.Context, conn *Conn) {
	for {
		_ = conn.ws.SetReadDeadline(time.Now().Add(idleTimeout))
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				conn.close(closeIdle, "idle timeout")
			} else {
				conn.close(websocket.CloseNormalClosure, "")
			}
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			conn.sendEvent("system:error", map[string]any{"reason": "INVALID_FRAME"})
			continue
		}
		g.dispatch(ctx, conn, f)
	}
}

func (g *Gateway) dispatch(ctx context.Context, conn *Conn, f frame) {
	p := conn.principal
	switch f.Type {
	case "channel:subscribe":
		accepted := make([]string, 0, len(f.Channels))
		for _, channel := range f.Channels {
			if err := g.authorizeChannel(ctx, p, channel); err != nil {
				conn.sendEvent("channel:error", map[string]any{
					"channel": channel,
					"reason":  err.Error(),
				})
				continue
			}
			conn.addChannel(channel)
			g.hub.attach(channel, conn)
			accepted = append(accepted, channel)
		}
		conn.sendEvent("channel:subscribed", map[string]any{"channels": accepted})

	case "channel:unsubscribe":
		for _, channel := range f.Channels {
			conn.removeChannel(channel)
			g.hub.detach(channel, conn)
			_ = g.hub.ClearTyping(ctx, channel, p.UserID)
		}
		conn.sendEvent("channel:unsubscribed", map[string]any{"channels": f.Channels})

	case "typing:start", "typing:stop":
		if !conn.subscribed(f.Channel) {
			conn.sendEvent("channel:error", map[string]any{
				"channel": f.Channel,
				"reason":  errNotSubscribed.Error(),
			})
			return
		}
		isTyping := f.Type == "typing:start"
		var err error
		if isTyping {
			err = g.hub.SetTyping(ctx, f.Channel, p.UserID)
		} else {
			err = g.hub.ClearTyping(ctx, f.Channel, p.UserID)
		}
		if err != nil {
			g.log.Warn("typing indicator update failed", logger.Error(err))
		}
		g.hub.Broadcast(ctx, f.Channel, "typing:update", map[string]any{
			"channel":   f.Channel,
			"user_id":   p.UserID,
			"user_name": p.Username,
			"is_typing": isTyping,
		})

	case "read:mark":
		if !conn.subscribed(f.Channel) {
			conn.sendEvent("channel:error", map[string]any{
				"channel": f.Channel,
				"reason":  errNotSubscribed.Error(),
			})
			return
		}
		// Receipts on submission group channels are re-broadcast by the
		// message service.
		if err := g.messages.MarkRead(ctx, p, f.MessageID); err != nil {
			conn.sendEvent("system:error", map[string]any{"reason": "READ_MARK_FAILED"})
		}

	case "system:ping":
		conn.sendEvent("system:pong", map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})

	default:
		conn.sendEvent("system:error", map[string]any{"reason": "UNKNOWN_TYPE"})
	}
}

// authorizeChannel applies the per-scope subscription rules.
func (g *Gateway) authorizeChannel(ctx context.Context, p *rolemodel.Principal, channel string) error {
	scope, id, ok := strings.Cut(channel, ":")
	if !ok || scope == "" {
		return errInvalidChannel
	}
	if _, err := uuid.Parse(id); err != nil && scope != "user" {
		return errInvalidChannel
	}
	if p.IsAdmin {
		if !validScope(scope) {
			return errInvalidChannel
		}
		return nil
	}

	switch scope {
	case "user":
		if id == p.UserID {
			return nil
		}
		return errForbidden

	case "submission_group":
		member, err := g.courses.IsGroupMember(ctx, id, p.UserID)
		if err == nil && member {
			return nil
		}
		courseID, err := g.courses.GroupCourseID(ctx, id)
		if err != nil {
			return errForbidden
		}
		if p.HasCourseRole(courseID, rolemodel.RoleTutor) {
			return nil
		}
		return errForbidden

	case "course":
		if p.HasCourseRole(id, rolemodel.RoleStudent) {
			return nil
		}
		return errForbidden

	case "course_content":
		content, err := g.courses.FindContent(ctx, id)
		if err != nil {
			return errForbidden
		}
		if p.HasCourseRole(content.CourseID, rolemodel.RoleStudent) {
			return nil
		}
		return errForbidden

	case "course_group":
		courseID, err := g.courses.CourseGroupCourseID(ctx, id)
		if err != nil {
			return errForbidden
		}
		if p.HasCourseRole(courseID, rolemodel.RoleStudent) {
			return nil
		}
		return errForbidden

	case "organization":
		member, err := g.courses.IsOrganizationMember(ctx, id, p.UserID)
		if err != nil || !member {
			return errForbidden
		}
		return nil

	case "course_family":
		member, err := g.courses.IsFamilyMember(ctx, id, p.UserID)
		if err != nil || !member {
			return errForbidden
		}
		return nil
	}
	return errInvalidChannel
}

func validScope(scope string) bool {
	switch scope {
	case "user", "submission_group", "course", "course_content", "course_group", "organization", "course_family":
		return true
	}
	return false
}

// cleanup deterministically removes subscriptions and typing indicators when
// a connection dies.
func (g *Gateway) cleanup(conn *Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, channel := range conn.channelList() {
		_ = g.hub.ClearTyping(ctx, channel, conn.principal.UserID)
	}
	g.hub.dropConn(conn)
	conn.close(websocket.CloseNormalClosure, "")
}
