package prompts

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/avvvet/hotelbuddy-intent/internal/models"
)

var (
	// ErrInvalidModelOutput means the model reply could not be read as JSON
	ErrInvalidModelOutput = errors.New("invalid model output")
	// ErrNoActionableIntent means the JSON carried neither actions nor an intent
	ErrNoActionableIntent = errors.New("no actionable intent in model output")
)

// MissingInfoIntent is the pseudo intent the model uses to ask for more details
const MissingInfoIntent = "missing_info"

var (
	// only a fence wrapping the whole reply is stripped; backticks inside values are content
	wrappingFence = regexp.MustCompile("(?s)^```[A-Za-z0-9_+-]*[ \t]*\\r?\\n?(.*?)```$")
	leadingFence  = regexp.MustCompile("^```[A-Za-z0-9_+-]*")
)

const wrapperChars = " \t\r\n\"'`"

// Sanitize strips code fences and stray quoting from raw model output.
// It runs to a fixed point, so it is idempotent and leaves clean JSON untouched.
func Sanitize(raw string) string {
	s := raw
	for {
		next := sanitizeOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func sanitizeOnce(s string) string {
	s = strings.TrimSpace(s)
	if isJSONDocument(s) {
		return s
	}
	if m := wrappingFence.FindStringSubmatch(s); m != nil {
		s = m[1]
	} else {
		// unclosed opener or a stray closer
		s = leadingFence.ReplaceAllString(s, "")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.Trim(s, wrapperChars)
}

func isJSONDocument(s string) bool {
	if !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") {
		return false
	}
	return json.Valid([]byte(s))
}

// OutputKind tags the variant carried by ModelOutput
type OutputKind int

const (
	OutputActions OutputKind = iota
	OutputMissingInfo
)

// Action is one intent the model extracted, before the intent name is resolved
type Action struct {
	Intent     string
	Parameters models.ParameterSet
}

// ModelOutput is the parsed, shape-checked model reply
type ModelOutput struct {
	Kind    OutputKind
	Actions []Action
	Missing []string
}

// ParseModelOutput sanitizes and decodes the model reply. Every field is
// checked explicitly since the oracle guarantees no shape.
func ParseModelOutput(raw string) (*ModelOutput, error) {
	doc, err := decodeObject(Sanitize(raw))
	if err != nil {
		// fall back to the outermost object inside surrounding prose
		jsonContent := extractJSON(raw)
		if jsonContent == "" {
			return nil, fmt.Errorf("%w: %v", ErrInvalidModelOutput, err)
		}
		if doc, err = decodeObject(jsonContent); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidModelOutput, err)
		}
	}

	if intent, _ := doc["intent"].(string); strings.EqualFold(strings.TrimSpace(intent), MissingInfoIntent) {
		return &ModelOutput{Kind: OutputMissingInfo, Missing: stringList(doc["missing"])}, nil
	}

	var actions []Action
	if list, ok := doc["actions"].([]any); ok {
		for _, item := range list {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if a, ok := toAction(obj); ok {
				actions = append(actions, a)
			}
		}
	}
	if len(actions) == 0 {
		if a, ok := toAction(doc); ok {
			actions = append(actions, a)
		}
	}
	if len(actions) == 0 {
		return nil, ErrNoActionableIntent
	}
	return &ModelOutput{Kind: OutputActions, Actions: actions}, nil
}

func decodeObject(s string) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(s), &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("model output is not a JSON object")
	}
	return doc, nil
}

func toAction(obj map[string]any) (Action, bool) {
	intent, ok := obj["intent"].(string)
	if !ok || strings.TrimSpace(intent) == "" {
		return Action{}, false
	}
	params := models.ParameterSet{}
	for _, key := range []string{"parameters", "entities"} {
		if m, ok := obj[key].(map[string]any); ok {
			for k, v := range m {
				params[k] = v
			}
			break
		}
	}
	return Action{Intent: strings.TrimSpace(intent), Parameters: params}, true
}

func stringList(v any) []string {
	list, ok := v.([]any)
	if !ok {
		if s, ok := v.(string); ok && s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func extractJSON(content string) string {
	// Look for JSON object in the content
	start := strings.Index(content, "{")
	if start == -1 {
		return ""
	}

	end := strings.LastIndex(content, "}")
	if end == -1 || end <= start {
		return ""
	}

	return content[start : end+1]
}
