package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/avvvet/hotelbuddy-intent/internal/dispatch"
	"github.com/avvvet/hotelbuddy-intent/internal/intents"
	"github.com/avvvet/hotelbuddy-intent/internal/llm"
	applog "github.com/avvvet/hotelbuddy-intent/internal/log"
	"github.com/avvvet/hotelbuddy-intent/internal/memory"
	"github.com/avvvet/hotelbuddy-intent/internal/metrics"
	"github.com/avvvet/hotelbuddy-intent/internal/models"
	"github.com/avvvet/hotelbuddy-intent/internal/presenter"
	"github.com/avvvet/hotelbuddy-intent/internal/prompts"
	"github.com/avvvet/hotelbuddy-intent/internal/router"
)

// User-facing replies for turns that end before a backend call
const (
	NoActionMessage      = "Sorry, I couldn't find any actionable intent."
	ModelDownMessage     = "Sorry, I couldn't process your message right now. Please try again."
	UnreachableMessage   = "Sorry, the hotel service is unreachable right now. Please try again later."
	UnreachableError     = "Backend unreachable."
	InternalErrorMessage = "Sorry, something went wrong on our side. Please try again."
	ParseErrorEnvelope   = "Failed to parse LLM JSON response."
	NotRecognizedError   = "Intent not recognized."
	MissingFieldsMessage = "Please provide these details."
)

// Dispatcher executes one backend call per descriptor
type Dispatcher interface {
	Dispatch(ctx context.Context, desc *models.ActionDescriptor) (*models.DispatchOutcome, error)
}

// IntentHandler is the turn pipeline shared by every channel:
// resolve -> sanitize/parse -> validate -> route -> dispatch -> present.
type IntentHandler struct {
	provider   llm.LLMProvider
	registry   *intents.Registry
	router     *router.Router
	dispatcher Dispatcher
	presenter  *presenter.Presenter
	pending    *memory.Manager // nil unless cross-turn recovery is enabled
	gatewayURL string
	maxTokens  int
	temp       float64
	now        func() time.Time
	logger     zerolog.Logger
}

// Options tune the model call
type Options struct {
	GatewayURL  string
	MaxTokens   int
	Temperature float64
	// Pending enables cross-turn recovery of missing parameters when set
	Pending *memory.Manager
}

func NewIntentHandler(
	provider llm.LLMProvider,
	registry *intents.Registry,
	dispatcher Dispatcher,
	opts Options,
	logger zerolog.Logger,
) *IntentHandler {
	return &IntentHandler{
		provider:   provider,
		registry:   registry,
		router:     router.NewRouter(registry),
		dispatcher: dispatcher,
		presenter:  presenter.NewPresenter(),
		pending:    opts.Pending,
		gatewayURL: opts.GatewayURL,
		maxTokens:  opts.MaxTokens,
		temp:       opts.Temperature,
		now:        time.Now,
		logger:     logger,
	}
}

// ProcessMessage runs one turn. Every failure is converted into a reply here;
// the only thing that escapes is a panic, which the caller's loop recovers.
func (h *IntentHandler) ProcessMessage(ctx context.Context, request *models.TurnRequest, observe models.StateObserver) *models.TurnResult {
	if observe == nil {
		observe = func(models.State) {}
	}
	logger := applog.ForTurn(h.logger, request)
	ctx = logger.WithContext(ctx)

	result := h.processMessage(ctx, request, observe)
	metrics.TurnsTotal.WithLabelValues(string(request.Channel), string(result.Outcome)).Inc()

	logger.Info().
		Str("outcome", string(result.Outcome)).
		Int("replies", len(result.Replies)).
		Msg("turn processed")
	return result
}

func (h *IntentHandler) processMessage(ctx context.Context, request *models.TurnRequest, observe models.StateObserver) *models.TurnResult {
	observe(models.StateResolving)
	output, outcome := h.resolve(ctx, request)
	if outcome != nil {
		return outcome
	}

	if output.Kind == prompts.OutputMissingInfo {
		return h.missingResult(request, "", output.Missing)
	}

	if h.pending != nil {
		h.pending.Retain(ctx, request.SessionID, h.namedIntents(output.Actions))
	}

	var (
		texts     []string
		envelopes []models.Envelope
		final     = models.OutcomeOK
	)
	for _, action := range output.Actions {
		partial := h.processAction(ctx, request, action, observe)
		if final == models.OutcomeOK && partial.Outcome != models.OutcomeOK {
			final = partial.Outcome
		}
		texts = append(texts, partial.Replies...)
		if partial.Envelope != nil {
			envelopes = append(envelopes, *partial.Envelope)
		}
		if ctx.Err() != nil {
			break
		}
	}

	result := &models.TurnResult{Outcome: final, Replies: texts}
	if request.Channel == models.ChannelStructured {
		switch len(envelopes) {
		case 0:
			result.Envelope = &models.Envelope{Error: InternalErrorMessage}
		case 1:
			result.Envelope = &envelopes[0]
		default:
			result.Envelope = &models.Envelope{Results: envelopes}
		}
	}
	return result
}

// resolve asks the model and parses its answer; a non-nil result short-circuits the turn
func (h *IntentHandler) resolve(ctx context.Context, request *models.TurnRequest) (*prompts.ModelOutput, *models.TurnResult) {
	llmResponse, err := h.provider.Complete(ctx, &llm.LLMRequest{
		SystemPrompt: prompts.SystemPrompt,
		Prompt:       prompts.BuildIntentPrompt(h.registry, request.Message, request.UserID, h.now()),
		MaxTokens:    h.maxTokens,
		Temperature:  h.temp,
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("model call failed")
		return nil, h.failure(request, models.OutcomeModelUnavailable, ModelDownMessage, ModelDownMessage)
	}

	output, err := prompts.ParseModelOutput(llmResponse.Content)
	switch {
	case errors.Is(err, prompts.ErrNoActionableIntent):
		return nil, h.failure(request, models.OutcomeInvalidModelOutput, NoActionMessage, NoActionMessage)
	case err != nil:
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to parse model output")
		return nil, h.failure(request, models.OutcomeInvalidModelOutput, prompts.FallbackMessage, ParseErrorEnvelope)
	}
	return output, nil
}

func (h *IntentHandler) processAction(ctx context.Context, request *models.TurnRequest, action prompts.Action, observe models.StateObserver) *models.TurnResult {
	observe(models.StateValidating)

	intent, err := h.registry.ParseIntent(action.Intent)
	if err != nil {
		return h.notRecognized(request, action.Intent)
	}

	params := action.Parameters
	if h.pending != nil {
		params = h.pending.Merge(ctx, request.SessionID, intent, params)
	}

	validation, err := h.registry.Validate(intent, params)
	if err != nil {
		return h.notRecognized(request, action.Intent)
	}
	if !validation.Valid() {
		if h.pending != nil {
			h.pending.Remember(ctx, request.SessionID, intent, params, validation.Missing)
		}
		return h.missingResult(request, intent, validation.Missing)
	}
	if h.pending != nil {
		h.pending.Forget(ctx, request.SessionID, intent)
	}

	desc, err := h.router.Route(intent, validation.Params, h.gatewayURL)
	if err != nil {
		return h.notRecognized(request, action.Intent)
	}

	observe(models.StateDispatching)
	outcome, err := h.dispatcher.Dispatch(ctx, desc)
	if err != nil {
		logger := zerolog.Ctx(ctx)
		var terr *dispatch.TransportError
		if !errors.As(err, &terr) {
			logger.Error().Err(err).Str("intent", string(intent)).Msg("dispatch failed")
			return h.failure(request, models.OutcomeInternalError, InternalErrorMessage, InternalErrorMessage)
		}
		// the cause names internal gateway addresses; it stays in the log
		logger.Warn().Err(terr.Err).Str("intent", string(intent)).Str("method", terr.Method).Msg("backend unreachable")
		result := h.failure(request, models.OutcomeTransportError, UnreachableMessage, UnreachableError)
		if result.Envelope != nil {
			result.Envelope.Intent = intent
			result.Envelope.Message = UnreachableMessage
		}
		return result
	}

	observe(models.StatePresenting)
	rendered := h.presenter.Present(intent, outcome, request.Channel)
	result := &models.TurnResult{Outcome: models.OutcomeOK, Envelope: rendered.Envelope}
	if !outcome.Success() {
		result.Outcome = models.OutcomeBackendError
	}
	if rendered.Text != "" {
		result.Replies = []string{rendered.Text}
	}
	return result
}

// namedIntents lists the recognized intents of a turn's actions
func (h *IntentHandler) namedIntents(actions []prompts.Action) []models.Intent {
	named := make([]models.Intent, 0, len(actions))
	for _, action := range actions {
		if intent, err := h.registry.ParseIntent(action.Intent); err == nil {
			named = append(named, intent)
		}
	}
	return named
}

// EndSession drops pending parameters of a closed conversation
func (h *IntentHandler) EndSession(ctx context.Context, sessionID string) {
	if h.pending != nil {
		h.pending.EndSession(ctx, sessionID)
	}
}

func (h *IntentHandler) missingResult(request *models.TurnRequest, intent models.Intent, missing []string) *models.TurnResult {
	var text, errText string
	if intent == "" {
		text = fmt.Sprintf("I need more information: %s", strings.Join(missing, ", "))
		errText = fmt.Sprintf("Missing required fields: %s", strings.Join(missing, ", "))
	} else {
		text = fmt.Sprintf("I need more information for %s: %s", intent, strings.Join(missing, ", "))
		errText = fmt.Sprintf("Missing required fields for intent '%s': %s", intent, strings.Join(missing, ", "))
	}

	result := &models.TurnResult{Outcome: models.OutcomeMissingFields}
	if request.Channel == models.ChannelStructured {
		result.Envelope = &models.Envelope{Intent: intent, Error: errText, Message: MissingFieldsMessage, Missing: missing}
	} else {
		result.Replies = []string{text}
	}
	return result
}

func (h *IntentHandler) notRecognized(request *models.TurnRequest, name string) *models.TurnResult {
	text := fmt.Sprintf("Sorry, I don't recognize the request %q.", name)
	return h.failure(request, models.OutcomeIntentNotRecognized, text, NotRecognizedError)
}

func (h *IntentHandler) failure(request *models.TurnRequest, outcome models.Outcome, text, errText string) *models.TurnResult {
	result := &models.TurnResult{Outcome: outcome}
	if request.Channel == models.ChannelStructured {
		result.Envelope = &models.Envelope{Error: errText}
	} else {
		result.Replies = []string{text}
	}
	return result
}
