package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Intent is the user's classified goal for one turn
type Intent string

const (
	IntentSearchHotel  Intent = "SearchHotel"
	IntentBookRoom     Intent = "BookRoom"
	IntentAddComment   Intent = "AddComment"
	IntentViewComments Intent = "ViewComments"
	IntentRegister     Intent = "Register"
	IntentLogin        Intent = "Login"
	IntentNotification Intent = "Notification"
)

// AllIntents lists the supported intents in prompt order
var AllIntents = []Intent{
	IntentSearchHotel,
	IntentBookRoom,
	IntentAddComment,
	IntentViewComments,
	IntentRegister,
	IntentLogin,
	IntentNotification,
}

// ParameterSet holds loosely typed values extracted by the model
type ParameterSet map[string]any

// Clone returns a shallow copy so callers never share a turn's parameters
func (p ParameterSet) Clone() ParameterSet {
	out := make(ParameterSet, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Placement says where the payload of an action travels
type Placement string

const (
	PlacementQuery Placement = "query"
	PlacementBody  Placement = "body"
	PlacementNone  Placement = "none"
)

// ActionDescriptor is a fully specified backend call derived from a validated intent.
// Fields keeps payload order so query strings render deterministically.
type ActionDescriptor struct {
	Intent    Intent
	Method    string
	URL       string
	Placement Placement
	Fields    []string
	Payload   ParameterSet
}

// Query encodes the payload as a query string in field order
func (d *ActionDescriptor) Query() string {
	var buf bytes.Buffer
	for _, name := range d.Fields {
		value, ok := d.Payload[name]
		if !ok || value == nil {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteByte('&')
		}
		buf.WriteString(url.QueryEscape(name))
		buf.WriteByte('=')
		buf.WriteString(url.QueryEscape(FormatValue(value)))
	}
	return buf.String()
}

// Target returns the request URL including the query string for query placement
func (d *ActionDescriptor) Target() string {
	if d.Placement != PlacementQuery {
		return d.URL
	}
	q := d.Query()
	if q == "" {
		return d.URL
	}
	return d.URL + "?" + q
}

// Body encodes the payload as a JSON object for body placement
func (d *ActionDescriptor) Body() ([]byte, error) {
	if d.Placement != PlacementBody {
		return nil, nil
	}
	payload := make(map[string]any, len(d.Fields))
	for _, name := range d.Fields {
		if value, ok := d.Payload[name]; ok {
			payload[name] = value
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return data, nil
}

// FormatValue renders a loosely typed value for a query string
func FormatValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// DispatchOutcome is the raw result of one backend call
type DispatchOutcome struct {
	StatusCode int
	RawBody    string
	ParsedBody any // nil when the body is not JSON
}

// Success reports a 2xx status
func (o *DispatchOutcome) Success() bool {
	return o.StatusCode >= 200 && o.StatusCode < 300
}

// ChannelKind selects how results are rendered
type ChannelKind string

const (
	ChannelConversational ChannelKind = "conversational"
	ChannelStructured     ChannelKind = "structured"
)

// Envelope is the structured-mode reply
type Envelope struct {
	Intent         Intent     `json:"intent,omitempty"`
	Response       any        `json:"response,omitempty"`
	BookingSuccess bool       `json:"bookingSuccess,omitempty"`
	Message        string     `json:"message,omitempty"`
	Error          string     `json:"error,omitempty"`
	Status         int        `json:"status,omitempty"`
	Missing        []string   `json:"missing,omitempty"`
	Results        []Envelope `json:"results,omitempty"`
}

// Rendered is what the presenter produces for one dispatch
type Rendered struct {
	Text     string
	Envelope *Envelope
}

// AgentRequest is the request/response channel payload (HTTP and NATS)
type AgentRequest struct {
	Message   string `json:"message"`
	UserID    int    `json:"userId"`
	SessionID string `json:"sessionId,omitempty"`
}

// TurnRequest is one inbound message handed to the pipeline
type TurnRequest struct {
	SessionID string
	UserID    int
	Message   string
	Channel   ChannelKind
}

// TurnResult is the pipeline's answer for one turn
type TurnResult struct {
	Outcome  Outcome
	Replies  []string
	Envelope *Envelope
}

// Outcome classifies how a turn ended
type Outcome string

const (
	OutcomeOK                  Outcome = "ok"
	OutcomeInvalidModelOutput  Outcome = "invalid_model_output"
	OutcomeMissingFields       Outcome = "missing_fields"
	OutcomeIntentNotRecognized Outcome = "intent_not_recognized"
	OutcomeTransportError      Outcome = "transport_error"
	OutcomeBackendError        Outcome = "backend_error"
	OutcomeModelUnavailable    Outcome = "model_unavailable"
	OutcomeInternalError       Outcome = "internal_error"
)

// State is a step of the conversation loop
type State int

const (
	StateAwaiting State = iota
	StateResolving
	StateValidating
	StateDispatching
	StatePresenting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaiting:
		return "awaiting"
	case StateResolving:
		return "resolving"
	case StateValidating:
		return "validating"
	case StateDispatching:
		return "dispatching"
	case StatePresenting:
		return "presenting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// StateObserver is notified as a turn moves through the pipeline
type StateObserver func(State)
