package presenter

import (
	"fmt"
	"strings"

	"github.com/avvvet/hotelbuddy-intent/internal/models"
)

const (
	NoHotelsMessage       = "No hotels found matching your criteria."
	NoCommentsMessage     = "No comments found for this hotel."
	BookingSuccessMessage = "Booking successful!"
	CommentAddedMessage   = "Comment added successfully."
	BookingSavedMessage   = "Booking saved successfully."
)

// failureLabels prefix non-2xx conversational replies
var failureLabels = map[models.Intent]string{
	models.IntentSearchHotel:  "Failed to search hotels",
	models.IntentBookRoom:     "Booking failed",
	models.IntentAddComment:   "Failed to add comment",
	models.IntentViewComments: "Failed to get comments",
	models.IntentRegister:     "Registration failed",
	models.IntentLogin:        "Login failed",
	models.IntentNotification: "Failed to reach notifications",
}

// Presenter turns dispatch outcomes into replies. It never reports success
// for a non-2xx status.
type Presenter struct{}

func NewPresenter() *Presenter {
	return &Presenter{}
}

// Present renders one outcome for the given channel kind
func (p *Presenter) Present(intent models.Intent, outcome *models.DispatchOutcome, kind models.ChannelKind) models.Rendered {
	if kind == models.ChannelStructured {
		return models.Rendered{Envelope: p.envelope(intent, outcome)}
	}
	return models.Rendered{Text: p.text(intent, outcome)}
}

func (p *Presenter) text(intent models.Intent, outcome *models.DispatchOutcome) string {
	if !outcome.Success() {
		label, ok := failureLabels[intent]
		if !ok {
			label = fmt.Sprintf("%s failed", intent)
		}
		return fmt.Sprintf("%s (%d): %s", label, outcome.StatusCode, strings.TrimSpace(outcome.RawBody))
	}

	switch intent {
	case models.IntentSearchHotel:
		hotels := listFrom(outcome.ParsedBody, "hotels", "items")
		if len(hotels) == 0 {
			return NoHotelsMessage
		}
		lines := make([]string, 0, len(hotels))
		for _, h := range hotels {
			lines = append(lines, fmt.Sprintf("%s - %s - ID: %s",
				field(h, "Unknown", "name", "hotelName"),
				field(h, "No address", "address"),
				field(h, "?", "id", "hotelId"),
			))
		}
		return "Hotels found:\n" + strings.Join(lines, "\n")

	case models.IntentViewComments:
		comments := listFrom(outcome.ParsedBody, "comments", "items")
		if len(comments) == 0 {
			return NoCommentsMessage
		}
		lines := make([]string, 0, len(comments))
		for _, c := range comments {
			lines = append(lines, fmt.Sprintf("%s: %s",
				field(c, "Anonymous", "userName", "username", "author"),
				field(c, "", "text", "comment"),
			))
		}
		return "Comments:\n" + strings.Join(lines, "\n")

	case models.IntentBookRoom:
		return BookingSuccessMessage
	case models.IntentAddComment:
		return CommentAddedMessage
	case models.IntentRegister:
		return "Registration successful. You can log in now."
	case models.IntentLogin:
		return "Login successful."
	}

	if msg := backendMessage(outcome); msg != "" {
		return fmt.Sprintf("%s: %s", intent, msg)
	}
	return fmt.Sprintf("%s completed.", intent)
}

func (p *Presenter) envelope(intent models.Intent, outcome *models.DispatchOutcome) *models.Envelope {
	if !outcome.Success() {
		return &models.Envelope{
			Intent:  intent,
			Error:   fmt.Sprintf("Backend returned status %d", outcome.StatusCode),
			Status:  outcome.StatusCode,
			Message: backendMessage(outcome),
		}
	}
	// booking confirmation must survive whatever shape the body has
	if intent == models.IntentBookRoom {
		return &models.Envelope{BookingSuccess: true, Message: BookingSavedMessage}
	}

	var response any = outcome.ParsedBody
	if response == nil && strings.TrimSpace(outcome.RawBody) != "" {
		response = outcome.RawBody
	}
	return &models.Envelope{Intent: intent, Response: response}
}

// backendMessage extracts the backend's own explanation from a response
func backendMessage(outcome *models.DispatchOutcome) string {
	switch v := outcome.ParsedBody.(type) {
	case string:
		return v
	case map[string]any:
		for _, key := range []string{"message", "error", "title", "detail"} {
			if s, ok := v[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(outcome.RawBody)
}

// listFrom accepts a bare array or an object wrapping it under one of keys
func listFrom(body any, keys ...string) []map[string]any {
	var raw []any
	switch v := body.(type) {
	case []any:
		raw = v
	case map[string]any:
		for _, key := range keys {
			if list, ok := v[key].([]any); ok && len(list) > 0 {
				raw = list
				break
			}
		}
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

func field(obj map[string]any, fallback string, keys ...string) string {
	for _, key := range keys {
		v, ok := obj[key]
		if !ok || v == nil {
			continue
		}
		s := strings.TrimSpace(models.FormatValue(v))
		if s != "" {
			return s
		}
	}
	return fallback
}
