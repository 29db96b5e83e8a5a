package conversation

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/avvvet/hotelbuddy-intent/internal/handlers"
	applog "github.com/avvvet/hotelbuddy-intent/internal/log"
	"github.com/avvvet/hotelbuddy-intent/internal/models"
)

// Greeting is sent once when a session opens
const Greeting = "Hi! How can I assist you with hotels today?"

// ErrChannelClosed is returned by a Channel whose peer went away
var ErrChannelClosed = errors.New("channel closed")

// Channel is one open conversational connection
type Channel interface {
	// Receive blocks until the next inbound message or ctx is done
	Receive(ctx context.Context) (string, error)
	Send(ctx context.Context, text string) error
}

// TurnProcessor runs one turn through the pipeline
type TurnProcessor interface {
	ProcessMessage(ctx context.Context, request *models.TurnRequest, observe models.StateObserver) *models.TurnResult
}

// SessionEnder is implemented by processors that keep per-session state
type SessionEnder interface {
	EndSession(ctx context.Context, sessionID string)
}

const endSessionTimeout = 5 * time.Second

// legal lists the allowed successors of every state
var legal = map[models.State][]models.State{
	models.StateAwaiting:    {models.StateResolving, models.StateClosed},
	models.StateResolving:   {models.StateValidating, models.StateAwaiting, models.StateClosed},
	models.StateValidating:  {models.StateDispatching, models.StateAwaiting, models.StateClosed},
	models.StateDispatching: {models.StatePresenting, models.StateAwaiting, models.StateValidating, models.StateClosed},
	// a multi-action turn validates the next action after the previous one ends
	models.StatePresenting: {models.StateAwaiting, models.StateValidating, models.StateClosed},
}

// SessionOptions controls loop behaviour
type SessionOptions struct {
	UserID               int
	CloseOnInternalError bool
}

// Session drives one conversational channel. Turns are strictly sequential.
type Session struct {
	id        string
	channel   Channel
	processor TurnProcessor
	opts      SessionOptions
	state     atomic.Int32
	logger    zerolog.Logger
}

func NewSession(id string, channel Channel, processor TurnProcessor, opts SessionOptions, logger zerolog.Logger) *Session {
	return &Session{
		id:        id,
		channel:   channel,
		processor: processor,
		opts:      opts,
		logger:    applog.WithSession(logger, id),
	}
}

func (s *Session) ID() string { return s.id }

// State returns the current loop state
func (s *Session) State() models.State {
	return models.State(s.state.Load())
}

// transition moves to next; illegal moves are logged and still applied
func (s *Session) transition(next models.State) {
	current := s.State()
	if current == next {
		return
	}
	if current == models.StateClosed {
		s.logger.Warn().Str("to", next.String()).Msg("ignoring transition out of closed state")
		return
	}
	allowed := false
	for _, candidate := range legal[current] {
		if candidate == next {
			allowed = true
			break
		}
	}
	if !allowed {
		s.logger.Error().
			Str("from", current.String()).
			Str("to", next.String()).
			Msg("illegal state transition")
	}
	s.state.Store(int32(next))
}

// Run greets the peer and serves turns until the channel fails or ctx is done.
// It always leaves the session Closed.
func (s *Session) Run(ctx context.Context) error {
	defer s.transition(models.StateClosed)
	defer s.end(ctx)

	s.transition(models.StateAwaiting)
	if err := s.channel.Send(ctx, Greeting); err != nil {
		return fmt.Errorf("failed to send greeting: %w", err)
	}

	for {
		message, err := s.channel.Receive(ctx)
		if err != nil {
			if errors.Is(err, ErrChannelClosed) || ctx.Err() != nil {
				s.logger.Debug().Err(err).Msg("session ended")
				return nil
			}
			return fmt.Errorf("failed to receive message: %w", err)
		}

		replies, fatal := s.turn(ctx, message)
		for _, reply := range replies {
			if err := s.channel.Send(ctx, reply); err != nil {
				return fmt.Errorf("failed to send reply: %w", err)
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		if fatal && s.opts.CloseOnInternalError {
			s.logger.Warn().Msg("closing session after internal error")
			return nil
		}
		s.transition(models.StateAwaiting)
	}
}

// end releases per-session state held by the processor; ctx may already be cancelled
func (s *Session) end(ctx context.Context) {
	ender, ok := s.processor.(SessionEnder)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), endSessionTimeout)
	defer cancel()
	ender.EndSession(ctx, s.id)
}

// turn runs the pipeline for one message, converting a panic into an internal error reply
func (s *Session) turn(ctx context.Context, message string) (replies []string, fatal bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("turn panicked")
			replies = []string{handlers.InternalErrorMessage}
			fatal = true
		}
	}()

	result := s.processor.ProcessMessage(ctx, &models.TurnRequest{
		SessionID: s.id,
		UserID:    s.opts.UserID,
		Message:   message,
		Channel:   models.ChannelConversational,
	}, s.transition)

	return result.Replies, result.Outcome == models.OutcomeInternalError
}
