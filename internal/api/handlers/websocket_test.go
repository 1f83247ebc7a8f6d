package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/softadastra-group/softadastra-chat/internal/auth"
	"github.com/softadastra-group/softadastra-chat/internal/config"
	"github.com/softadastra-group/softadastra-chat/internal/websocket"
)

// Requests in these tests are plain HTTP, so anything that passes the
// authorization gate dies in the upgrader with a 400. The point under test
// is the 401-vs-not decision, which happens first.

func newTestWSHandler(env string) *WSHandler {
	cfg := &config.Config{
		Env: env,
		JWT: config.JWTConfig{Secret: "jwt-secret"},
		Ticket: config.TicketConfig{
			Secret: "ticket-secret",
			TTL:    time.Minute,
		},
	}
	return NewWSHandler(cfg,
		websocket.NewChatHub(nil, nil),
		websocket.NewLikesHub(nil),
		websocket.NewAnalyticsHub(nil, nil))
}

func doWS(h *WSHandler, route func(*gin.Engine, *WSHandler), target string, headers map[string]string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	route(r, h)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func chatRoute(r *gin.Engine, h *WSHandler)      { r.GET("/ws/chat", h.HandleChat) }
func analyticsRoute(r *gin.Engine, h *WSHandler) { r.GET("/ws/analytics", h.HandleAnalytics) }
func likesRoute(r *gin.Engine, h *WSHandler)     { r.GET("/ws/likes", h.HandleLikes) }

func TestChatUpgradeRejectsBadCredential(t *testing.T) {
	h := newTestWSHandler("production")

	w := doWS(h, chatRoute, "/ws/chat?token=garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doWS(h, chatRoute, "/ws/chat?ticket=garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChatUpgradeAllowsAnonymous(t *testing.T) {
	h := newTestWSHandler("production")
	w := doWS(h, chatRoute, "/ws/chat", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code) // past auth, failed handshake
}

func TestChatUpgradeAcceptsValidTicket(t *testing.T) {
	h := newTestWSHandler("production")
	ticket := auth.IssueTicket("ticket-secret", 7, time.Minute)
	w := doWS(h, chatRoute, "/ws/chat?ticket="+ticket, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLikesUpgradeIsPublic(t *testing.T) {
	h := newTestWSHandler("production")
	w := doWS(h, likesRoute, "/ws/likes", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyticsUpgradeRequiresCredential(t *testing.T) {
	h := newTestWSHandler("production")

	w := doWS(h, analyticsRoute, "/ws/analytics", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doWS(h, analyticsRoute, "/ws/analytics?token=garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAnalyticsUpgradeAcceptsJWT(t *testing.T) {
	h := newTestWSHandler("production")
	token, err := auth.IssueToken("jwt-secret", 3, "admin@example.com", "admin", time.Minute)
	assert.NoError(t, err)

	w := doWS(h, analyticsRoute, "/ws/analytics?token="+token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyticsTrustedOriginFallbackOnlyOutsideProduction(t *testing.T) {
	dev := newTestWSHandler("development")
	headers := map[string]string{"Origin": "http://localhost:3000"}

	w := doWS(dev, analyticsRoute, "/ws/analytics?uid=5", headers)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Same request in production is refused.
	prod := newTestWSHandler("production")
	w = doWS(prod, analyticsRoute, "/ws/analytics?uid=5", headers)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// The fallback still needs a uid.
	w = doWS(dev, analyticsRoute, "/ws/analytics", headers)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
