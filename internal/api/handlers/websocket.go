package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"

	"github.com/softadastra-group/softadastra-chat/internal/auth"
	"github.com/softadastra-group/softadastra-chat/internal/config"
	"github.com/softadastra-group/softadastra-chat/internal/websocket"
)

// WSHandler owns the three upgrade endpoints. Authorization always happens
// before the handshake so rejected callers get a plain 401 instead of a
// websocket close frame.
type WSHandler struct {
	cfg      *config.Config
	chat     *websocket.ChatHub
	likes    *websocket.LikesHub
	analytic *websocket.AnalyticsHub
	upgrader gorilla.Upgrader
}

func NewWSHandler(cfg *config.Config, chat *websocket.ChatHub, likes *websocket.LikesHub, analytic *websocket.AnalyticsHub) *WSHandler {
	h := &WSHandler{cfg: cfg, chat: chat, likes: likes, analytic: analytic}
	h.upgrader = gorilla.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.originAllowed,
	}
	return h
}

func (h *WSHandler) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients send no Origin; they already passed auth.
		return true
	}
	if !h.cfg.IsProduction() && (strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1")) {
		return true
	}
	for _, allowed := range h.cfg.CORS.AllowedOrigins {
		if origin == strings.TrimSpace(allowed) {
			return true
		}
	}
	return false
}

// HandleChat godoc
// @Summary Chat websocket
// @Description Upgrade to the chat socket. A token or ticket query parameter binds the identity server-side; without one the client authenticates with an auth frame.
// @Tags websocket
// @Param token query string false "JWT"
// @Param ticket query string false "Websocket ticket"
// @Success 101 "Switching Protocols"
// @Failure 401 "Credential present but invalid"
// @Router /ws/chat [get]
func (h *WSHandler) HandleChat(c *gin.Context) {
	identity, ok := h.resolveIdentity(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("Chat upgrade failed", "error", err)
		return
	}
	h.chat.ServeChat(conn, identity)
}

// HandleLikes godoc
// @Summary Product likes websocket
// @Description Public upgrade; clients subscribe to product ids and receive live like counts.
// @Tags websocket
// @Success 101 "Switching Protocols"
// @Router /ws/likes [get]
func (h *WSHandler) HandleLikes(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("Likes upgrade failed", "error", err)
		return
	}
	h.likes.ServeLikes(conn)
}

// HandleAnalytics godoc
// @Summary Analytics dashboard websocket
// @Description Requires a JWT or websocket ticket. Outside production a trusted localhost origin with a uid parameter is accepted for development.
// @Tags websocket
// @Param token query string false "JWT"
// @Param ticket query string false "Websocket ticket"
// @Success 101 "Switching Protocols"
// @Failure 401 "Unauthorized"
// @Router /ws/analytics [get]
func (h *WSHandler) HandleAnalytics(c *gin.Context) {
	userID := h.analyticsIdentity(c)
	if userID == 0 {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("Analytics upgrade failed", "error", err)
		return
	}
	h.analytic.ServeAnalytics(conn, userID)
}

// resolveIdentity validates an optional chat credential. ok is false only
// when a credential was supplied and failed verification; an absent
// credential yields an anonymous (zero) identity.
func (h *WSHandler) resolveIdentity(c *gin.Context) (uint, bool) {
	if token := c.Query("token"); token != "" {
		claims, err := auth.VerifyToken(h.cfg.JWT.Secret, token)
		if err != nil {
			return 0, false
		}
		return claims.UserID, true
	}
	if ticket := c.Query("ticket"); ticket != "" {
		subject, err := auth.VerifyTicket(h.cfg.Ticket.Secret, ticket)
		if err != nil {
			return 0, false
		}
		return subject, true
	}
	return 0, true
}

// analyticsIdentity checks credentials in order: JWT, ticket, then the
// non-production trusted-origin fallback. Zero means reject.
func (h *WSHandler) analyticsIdentity(c *gin.Context) uint {
	if token := c.Query("token"); token != "" {
		claims, err := auth.VerifyToken(h.cfg.JWT.Secret, token)
		if err != nil || (claims.Role != "admin" && claims.Role != "user") {
			return 0
		}
		return claims.UserID
	}
	if ticket := c.Query("ticket"); ticket != "" {
		subject, err := auth.VerifyTicket(h.cfg.Ticket.Secret, ticket)
		if err != nil {
			return 0
		}
		return subject
	}
	if !h.cfg.IsProduction() {
		origin := c.Request.Header.Get("Origin")
		if strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1") {
			if uid, err := strconv.ParseUint(c.Query("uid"), 10, 32); err == nil && uid != 0 {
				return uint(uid)
			}
		}
	}
	return 0
}
