package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/avvvet/hotelbuddy-intent/internal/conversation"
	"github.com/avvvet/hotelbuddy-intent/internal/models"
)

// NATSConfig configures the request/reply channel
type NATSConfig struct {
	URL         string
	Subject     string
	Timeout     time.Duration
	ServiceName string
}

// NATSTransport serves the structured channel as NATS request/reply.
// Payloads are the same {message, userId} JSON as POST /ai-agent.
type NATSTransport struct {
	conn      *nats.Conn
	sub       *nats.Subscription
	cfg       NATSConfig
	processor conversation.TurnProcessor
	logger    zerolog.Logger
}

func NewNATSTransport(cfg NATSConfig, processor conversation.TurnProcessor, logger zerolog.Logger) (*NATSTransport, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.ServiceName),
		nats.Timeout(cfg.Timeout),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info().Str("url", cfg.URL).Msg("connected to NATS server")

	return newNATSTransport(conn, cfg, processor, logger), nil
}

func newNATSTransport(conn *nats.Conn, cfg NATSConfig, processor conversation.TurnProcessor, logger zerolog.Logger) *NATSTransport {
	return &NATSTransport{
		conn:      conn,
		cfg:       cfg,
		processor: processor,
		logger:    logger,
	}
}

func (nt *NATSTransport) Start() error {
	sub, err := nt.conn.Subscribe(nt.cfg.Subject, nt.handleRequest)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", nt.cfg.Subject, err)
	}
	nt.sub = sub

	nt.logger.Info().Str("subject", nt.cfg.Subject).Msg("subscribed")
	return nil
}

func (nt *NATSTransport) handleRequest(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), nt.cfg.Timeout)
	defer cancel()

	response := nt.handlePayload(ctx, msg.Data)
	if msg.Reply == "" {
		nt.logger.Warn().Str("subject", msg.Subject).Msg("request without reply subject dropped")
		return
	}
	if err := msg.Respond(response); err != nil {
		nt.logger.Error().Err(err).Msg("failed to send response")
	}
}

// handlePayload runs one structured turn and returns the encoded reply
func (nt *NATSTransport) handlePayload(ctx context.Context, data []byte) []byte {
	var request models.AgentRequest
	if err := json.Unmarshal(data, &request); err != nil {
		nt.logger.Warn().Err(err).Msg("invalid request payload")
		return encode(&models.Envelope{Error: "Invalid request body."})
	}
	if strings.TrimSpace(request.Message) == "" {
		return encode(&models.Envelope{Error: "Message is required."})
	}
	if request.SessionID == "" {
		request.SessionID = uuid.New().String()
	}

	nt.logger.Debug().Str("session_id", request.SessionID).Msg("processing request")

	result := nt.processor.ProcessMessage(ctx, &models.TurnRequest{
		SessionID: request.SessionID,
		UserID:    request.UserID,
		Message:   request.Message,
		Channel:   models.ChannelStructured,
	}, nil)
	if result.Envelope == nil {
		return encode(&models.Envelope{Error: "No result produced."})
	}
	return encode(result.Envelope)
}

func encode(envelope *models.Envelope) []byte {
	data, err := json.Marshal(envelope)
	if err != nil {
		return []byte(`{"error":"Failed to encode response."}`)
	}
	return data
}

func (nt *NATSTransport) Close() error {
	if nt.sub != nil {
		if err := nt.sub.Drain(); err != nil {
			nt.logger.Warn().Err(err).Msg("failed to drain subscription")
		}
	}
	if nt.conn != nil {
		nt.conn.Close()
		nt.logger.Info().Msg("NATS connection closed")
	}
	return nil
}
