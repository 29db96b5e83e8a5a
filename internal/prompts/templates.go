package prompts

import (
	"fmt"
	"strings"
	"time"

	"github.com/avvvet/hotelbuddy-intent/internal/intents"
)

// SystemPrompt pins the model to JSON-only replies
const SystemPrompt = "You are an AI assistant for a hotel booking system that ONLY responds with JSON as requested."

const intentPrompt = `Analyze the user's message and extract one or more actions with intents and parameters.

IMPORTANT RULES:
1. Use ONLY the intents listed below
2. Dates must use the format YYYY-MM-DD; today is %s
3. Identifiers and counts are integers
4. The current user's id is %s; use it for userId when the user refers to themselves
5. Do not invent values the user did not give

Supported intents and parameters:
%s
If any required parameter is missing, respond with:
{"intent": "missing_info", "missing": ["list", "of", "missing", "parameters"]}

Otherwise respond ONLY with valid JSON like:
{
  "actions": [
    {
      "intent": "SearchHotel",
      "parameters": {"destination": "Istanbul", "checkIn": "2025-07-10", "checkOut": "2025-07-15", "guests": 2}
    }
  ]
}

Return ONLY the JSON, no explanation or extra text.

User message:
"%s"`

// FallbackMessage is sent when the model reply cannot be understood
const FallbackMessage = "Sorry, I couldn't understand your request. Please try again."

// BuildIntentPrompt renders the extraction prompt from the registry schemas
func BuildIntentPrompt(registry *intents.Registry, userMessage string, userID int, now time.Time) string {
	user := "unknown"
	if userID > 0 {
		user = fmt.Sprintf("%d", userID)
	}
	return fmt.Sprintf(intentPrompt,
		now.Format("2006-01-02"),
		user,
		buildIntentsSection(registry),
		strings.ReplaceAll(userMessage, `"`, `\"`),
	)
}

func buildIntentsSection(registry *intents.Registry) string {
	var builder strings.Builder

	for i, schema := range registry.Schemas() {
		builder.WriteString(fmt.Sprintf("%d. %s (%s):\n", i+1, schema.Intent, schema.Summary))
		if len(schema.Required)+len(schema.Optional) == 0 {
			builder.WriteString("    - no parameters\n")
		}
		for _, f := range schema.Required {
			builder.WriteString(fmt.Sprintf("    - %s (%s, required)\n", f.Name, describe(f)))
		}
		for _, f := range schema.Optional {
			builder.WriteString(fmt.Sprintf("    - %s (%s, optional, default %v)\n", f.Name, describe(f), f.Default))
		}
		builder.WriteString("\n")
	}

	return builder.String()
}

func describe(f intents.Field) string {
	var kind string
	switch f.Kind {
	case intents.KindID:
		kind = "integer"
	case intents.KindDate:
		kind = "string, format YYYY-MM-DD"
	default:
		kind = "string"
	}
	if f.Description != "" && f.Kind != intents.KindDate {
		return kind + ", " + f.Description
	}
	return kind
}
