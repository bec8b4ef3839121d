package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var errMissingHub = errors.New("realtime hub dependency required")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(*http.Request) bool {
		return true
	},
}

// Dependencies carries the collaborators for NewHTTPHandler.
type Dependencies struct {
	Hub    *Hub
	Logger *zap.Logger
}

// NewHTTPHandler builds the HTTP surface: the websocket entry point and
// the operational status endpoint.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Hub == nil {
		return nil, errMissingHub
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		hub:     deps.Hub,
		logger:  logger,
		started: time.Now(),
	}

	router.GET("/ws", handler.handleWebsocket)
	router.GET("/status", handler.handleStatus)

	return router, nil
}

type httpHandler struct {
	hub     *Hub
	logger  *zap.Logger
	started time.Time
}

type statusResponsePayload struct {
	Rooms         int   `json:"rooms"`
	Connections   int   `json:"connections"`
	UptimeSeconds int64 `json:"uptime_seconds"`
}

func (h *httpHandler) handleWebsocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	if err := h.hub.Attach(conn); err != nil {
		h.logger.Error("connection attach failed", zap.Error(err))
		conn.Close()
	}
}

func (h *httpHandler) handleStatus(c *gin.Context) {
	stats, err := h.hub.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "hub_unavailable"})
		return
	}
	c.JSON(http.StatusOK, statusResponsePayload{
		Rooms:         stats.Rooms,
		Connections:   stats.Connections,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	})
}
