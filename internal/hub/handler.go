package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"peerprep/interview/internal/apperr"
	"peerprep/interview/internal/metrics"
	"peerprep/interview/internal/models"
	"peerprep/interview/internal/utils"
)

const disconnectTimeout = 5 * time.Second

// Authorizer decides whether a user may join a session's group.
type Authorizer interface {
	Authorize(ctx context.Context, sessionID, userID string) error
}

// DisconnectHandler is told when a user's connection to a session drops.
type DisconnectHandler interface {
	ExpireAllRequestsForSession(ctx context.Context, sessionID, userID string) (int, error)
}

type Handler struct {
	hub          *Hub
	secret       string
	authorizer   Authorizer
	onDisconnect DisconnectHandler
	upgrader     websocket.Upgrader
	logger       *zap.Logger
	now          func() time.Time
}

func NewHandler(h *Hub, secret string, allowedOrigins []string, authorizer Authorizer, onDisconnect DisconnectHandler, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	handler := &Handler{
		hub:          h,
		secret:       secret,
		authorizer:   authorizer,
		onDisconnect: onDisconnect,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
	handler.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return checkOrigin(r, allowedOrigins, logger)
		},
	}
	return handler
}

// checkOrigin accepts requests without an Origin header (non-browser
// clients), a wildcard configuration, or an exact match.
func checkOrigin(r *http.Request, allowed []string, logger *zap.Logger) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	logger.Warn("websocket connection rejected: origin not allowed", zap.String("origin", origin))
	return false
}

// ServeWS upgrades an authenticated, authorized request and attaches the
// connection to the session's group until it drops.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	claims, err := utils.VerifyQueryToken(r, h.secret)
	if err != nil {
		utils.JSONError(w, http.StatusUnauthorized, err.Error())
		return
	}
	userID, err := utils.GetUserIDFromClaims(claims)
	if err != nil {
		utils.JSONError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err := h.authorizer.Authorize(r.Context(), sessionID, userID); err != nil {
		utils.JSONKindError(w, apperr.HTTPStatus(err), err.Error(), string(apperr.KindOf(err)))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}

	client := NewClient(conn, userID)
	group := h.hub.Join(sessionID, client)
	metrics.HubConnections.Inc()
	h.logger.Info("user joined session", zap.String("session_id", sessionID), zap.String("user_id", userID))
	group.Broadcast(client, models.Event{Type: models.EventUserJoined, Data: models.PresencePayload{UserID: userID}})

	go client.WritePump()
	h.readLoop(group, client)

	h.hub.Leave(group, client)
	client.Close()
	metrics.HubConnections.Dec()
	group.Broadcast(client, models.Event{Type: models.EventUserLeft, Data: models.PresencePayload{UserID: userID}})
	h.logger.Info("user left session", zap.String("session_id", sessionID), zap.String("user_id", userID))

	// another tab of the same user keeps the handshake alive
	if current, ok := h.hub.Get(sessionID); ok && current.HasUser(userID) {
		return
	}
	if h.onDisconnect != nil {
		ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
		defer cancel()
		if n, err := h.onDisconnect.ExpireAllRequestsForSession(ctx, sessionID, userID); err != nil {
			h.logger.Warn("failed to expire matching requests on disconnect",
				zap.String("session_id", sessionID), zap.String("user_id", userID), zap.Error(err))
		} else if n > 0 {
			h.logger.Info("expired matching requests on disconnect",
				zap.String("session_id", sessionID), zap.Int("count", n))
		}
	}
}

func (h *Handler) readLoop(group *Group, client *Client) {
	conn := client.Conn
	conn.SetReadLimit(maxFrameBytes)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket closed unexpectedly", zap.String("session_id", group.ID), zap.Error(err))
			}
			return
		}
		var frame models.WSFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			client.Send(errorEvent("invalid_json"))
			continue
		}
		h.HandleFrame(group, client, frame)
	}
}

// HandleFrame relays one client frame to the sender's peers, or answers the
// sender with an error frame when it cannot be understood.
func (h *Handler) HandleFrame(group *Group, client *Client, frame models.WSFrame) {
	event, err := translate(client.UserID, frame, h.now())
	if err != nil {
		client.Send(errorEvent(err.Error()))
		return
	}
	group.Broadcast(client, event)
}
