package server

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/avvvet/hotelbuddy-intent/internal/conversation"
	applog "github.com/avvvet/hotelbuddy-intent/internal/log"
	"github.com/avvvet/hotelbuddy-intent/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 16 << 10
	inboundBuffer  = 8
)

// wsChannel adapts a WebSocket connection to conversation.Channel.
// A read pump owns all reads; the session loop is the only writer.
type wsChannel struct {
	conn    *websocket.Conn
	inbound chan string
	logger  zerolog.Logger
}

func newWSChannel(conn *websocket.Conn, logger zerolog.Logger) *wsChannel {
	conn.SetReadLimit(maxMessageSize)
	return &wsChannel{
		conn:    conn,
		inbound: make(chan string, inboundBuffer),
		logger:  logger,
	}
}

// readPump forwards text frames until the peer goes away, then cancels the
// session so in-flight model and backend calls are aborted.
func (c *wsChannel) readPump(ctx context.Context, cancel context.CancelFunc) {
	defer close(c.inbound)
	defer cancel()

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug().Msg("peer closed connection")
			} else if ctx.Err() == nil {
				c.logger.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		select {
		case c.inbound <- string(data):
		case <-ctx.Done():
			return
		}
	}
}

func (c *wsChannel) Receive(ctx context.Context) (string, error) {
	select {
	case msg, ok := <-c.inbound:
		if !ok {
			return "", conversation.ErrChannelClosed
		}
		return msg, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *wsChannel) Send(_ context.Context, text string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

func (c *wsChannel) close() {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.conn.Close()
}

// serveWS serves the conversational channel; one session per connection
func (s *Server) serveWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	userID, _ := strconv.Atoi(c.Query("userId"))
	sessionID := uuid.New().String()
	logger := applog.WithSession(s.logger, sessionID)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	stop := context.AfterFunc(s.root, cancel)
	defer stop()

	channel := newWSChannel(conn, logger)
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		channel.readPump(ctx, cancel)
	}()

	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()
	logger.Info().Int("user_id", userID).Msg("session opened")

	session := conversation.NewSession(sessionID, channel, s.processor, conversation.SessionOptions{
		UserID:               userID,
		CloseOnInternalError: s.opts.CloseOnInternalError,
	}, logger)

	if err := session.Run(ctx); err != nil {
		logger.Warn().Err(err).Msg("session ended with error")
	}

	cancel()
	channel.close()
	<-pumpDone
	logger.Info().Msg("session closed")
}
