package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"medibridge/medibridge/config"
	"medibridge/medibridge/middlewares"
	"medibridge/medibridge/sources/psql/models"
	"medibridge/medibridge/utils/logging"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Directory answers whether a user takes part in a session.
type Directory interface {
	ResolveParticipant(ctx context.Context, sessionID, userID uuid.UUID) (models.Role, error)
}

// MessageSender accepts send_message frames from an authenticated user.
type MessageSender interface {
	HandleSendMessage(ctx context.Context, senderID uuid.UUID, payload SendMessagePayload) error
}

type Handler struct {
	hub            *Hub
	directory      Directory
	sender         MessageSender
	secret         string
	authTimeout    time.Duration
	outboxSize     int
	originPatterns []string
}

func NewHandler(cfg config.Config, hub *Hub, directory Directory, sender MessageSender) *Handler {
	return &Handler{
		hub:            hub,
		directory:      directory,
		sender:         sender,
		secret:         cfg.JWTSecret,
		authTimeout:    cfg.WSAuthTimeout,
		outboxSize:     cfg.WSOutbox,
		originPatterns: originPatterns(cfg.CORSOrigins),
	}
}

// originPatterns turns CORS origins into the host patterns websocket.Accept matches.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}

// ServeHTTP authenticates and upgrades the request, then runs the read loop until the
// client goes away. A ?token= that fails verification is refused before the upgrade;
// without one the first frame must be an auth event.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var identity *middlewares.Identity
	if token := r.URL.Query().Get("token"); token != "" {
		id, err := middlewares.ParseToken(h.secret, token)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		identity = &id
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		logging.AppLogger.Debug("websocket accept failed", zap.Error(err))
		return
	}
	conn := NewConnection(r.Context(), ws, h.outboxSize)
	defer conn.Close(websocket.StatusNormalClosure, "")

	if identity == nil {
		id, err := h.awaitAuth(conn)
		if err != nil {
			conn.Close(websocket.StatusPolicyViolation, "unauthorized")
			return
		}
		identity = &id
	}
	conn.Authenticate(*identity)
	defer h.hub.LeaveAll(conn)

	logging.AppLogger.Info("websocket connected",
		zap.String("user_id", identity.UserID.String()), zap.String("role", string(identity.Role)))
	h.readLoop(conn, *identity)
}

func (h *Handler) awaitAuth(conn *Connection) (middlewares.Identity, error) {
	// a timed-out Read drops the socket without a close frame, so the deadline closes it instead
	timer := time.AfterFunc(h.authTimeout, func() {
		conn.Close(websocket.StatusPolicyViolation, "auth timeout")
	})
	defer timer.Stop()
	frame, err := readFrame(conn.ctx, conn.conn)
	if err != nil {
		return middlewares.Identity{}, err
	}
	if frame.Event != EventAuth {
		return middlewares.Identity{}, ErrUnauthenticated
	}
	var p AuthPayload
	if err := json.Unmarshal(frame.Data, &p); err != nil {
		return middlewares.Identity{}, ErrInvalidFrame
	}
	return middlewares.ParseToken(h.secret, p.Token)
}

func (h *Handler) readLoop(conn *Connection, identity middlewares.Identity) {
	ctx := conn.ctx
	for {
		frame, err := readFrame(ctx, conn.conn)
		if errors.Is(err, ErrInvalidFrame) {
			continue
		}
		if err != nil {
			return
		}
		switch frame.Event {
		case EventJoinRoom:
			h.join(ctx, conn, identity, frame.Data)
		case EventLeaveRoom:
			var p RoomPayload
			if json.Unmarshal(frame.Data, &p) == nil {
				if sid, err := uuid.Parse(p.SessionID); err == nil {
					h.hub.Leave(conn, models.Room(sid))
				}
			}
		case EventSendMessage:
			var p SendMessagePayload
			if err := json.Unmarshal(frame.Data, &p); err != nil {
				continue
			}
			if err := h.sender.HandleSendMessage(ctx, identity.UserID, p); err != nil {
				logging.AppLogger.Warn("send_message rejected",
					zap.String("user_id", identity.UserID.String()),
					zap.String("session_id", p.SessionID),
					zap.Error(err))
			}
		default:
			logging.AppLogger.Debug("ignoring websocket event", zap.String("event", frame.Event))
		}
	}
}

// join re-checks participation. Refusals are logged only so the client cannot probe
// which sessions exist.
func (h *Handler) join(ctx context.Context, conn *Connection, identity middlewares.Identity, data json.RawMessage) {
	var p RoomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	sessionID, err := uuid.Parse(p.SessionID)
	if err != nil {
		return
	}
	if _, err := h.directory.ResolveParticipant(ctx, sessionID, identity.UserID); err != nil {
		logging.AppLogger.Warn("join_room refused",
			zap.String("user_id", identity.UserID.String()),
			zap.String("session_id", p.SessionID),
			zap.Error(err))
		return
	}
	room := models.Room(sessionID)
	h.hub.Join(conn, room)
	if err := h.hub.EmitExcept(room, EventUserJoined, UserJoined{UserID: identity.UserID}, conn); err != nil {
		logging.ErrorLogger.Error("emit user_joined failed", zap.Error(err))
	}
}

func readFrame(ctx context.Context, ws *websocket.Conn) (Frame, error) {
	typ, data, err := ws.Read(ctx)
	if err != nil {
		return Frame{}, err
	}
	if typ != websocket.MessageText {
		return Frame{}, ErrInvalidFrame
	}
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil || f.Event == "" {
		return Frame{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	return f, nil
}
