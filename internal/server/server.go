package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/avvvet/hotelbuddy-intent/internal/conversation"
	"github.com/avvvet/hotelbuddy-intent/internal/models"
)

// Server exposes the conversational (WebSocket) and request/response (HTTP)
// channels over one gin engine.
type Server struct {
	engine    *gin.Engine
	processor conversation.TurnProcessor
	upgrader  websocket.Upgrader
	opts      Options
	root      context.Context
	stop      context.CancelFunc
	logger    zerolog.Logger
}

// Options controls per-session behaviour
type Options struct {
	ServiceName          string
	CloseOnInternalError bool
	// Checks are run by /health; any error reports the service as degraded
	Checks map[string]func(context.Context) error
}

const healthCheckTimeout = 2 * time.Second

func New(processor conversation.TurnProcessor, opts Options, logger zerolog.Logger) *Server {
	root, stop := context.WithCancel(context.Background())
	s := &Server{
		processor: processor,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		opts:   opts,
		root:   root,
		stop:   stop,
		logger: logger,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}))

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/ai-agent", s.agent)
	r.GET("/ws", s.serveWS)

	s.engine = r
	return s
}

// Handler returns the HTTP handler for use in an http.Server
func (s *Server) Handler() http.Handler {
	return s.engine
}

// CloseSessions ends every open WebSocket session. Hijacked connections are
// not tracked by http.Server.Shutdown.
func (s *Server) CloseSessions() {
	s.stop()
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status, code := "ok", http.StatusOK
	checks := make(map[string]string, len(s.opts.Checks))
	for name, check := range s.opts.Checks {
		if err := check(ctx); err != nil {
			s.logger.Warn().Err(err).Str("check", name).Msg("health check failed")
			checks[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := gin.H{"status": status, "service": s.opts.ServiceName}
	if len(checks) > 0 {
		body["checks"] = checks
	}
	c.JSON(code, body)
}

// agent serves the request/response channel
func (s *Server) agent(c *gin.Context) {
	var request models.AgentRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body."})
		return
	}
	if strings.TrimSpace(request.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required."})
		return
	}

	sessionID := request.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	result := s.processor.ProcessMessage(c.Request.Context(), &models.TurnRequest{
		SessionID: sessionID,
		UserID:    request.UserID,
		Message:   request.Message,
		Channel:   models.ChannelStructured,
	}, nil)

	if result.Envelope == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No result produced."})
		return
	}
	c.JSON(http.StatusOK, result.Envelope)
}
