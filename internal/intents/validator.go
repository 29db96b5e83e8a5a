package intents

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/avvvet/hotelbuddy-intent/internal/models"
)

// Validation is either Valid (Missing empty, Params filled with defaults)
// or MissingFields (Missing lists absent required names in declaration order).
type Validation struct {
	Intent  models.Intent
	Params  models.ParameterSet
	Missing []string
}

// Valid reports whether every required field was present
func (v Validation) Valid() bool {
	return len(v.Missing) == 0
}

// Validate checks params against the intent's schema. It never touches the input map.
func (r *Registry) Validate(intent models.Intent, params models.ParameterSet) (Validation, error) {
	schema, err := r.SchemaFor(intent)
	if err != nil {
		return Validation{}, err
	}

	out := applyAliases(schema, params)

	var missing []string
	for _, f := range schema.Required {
		if IsAbsent(f.Kind, out[f.Name]) {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return Validation{Intent: intent, Missing: missing}, nil
	}

	for _, f := range schema.Optional {
		if IsAbsent(f.Kind, out[f.Name]) {
			out[f.Name] = f.Default
		}
	}
	return Validation{Intent: intent, Params: out}, nil
}

func applyAliases(schema *Schema, params models.ParameterSet) models.ParameterSet {
	out := params.Clone()
	for alias, name := range schema.Aliases {
		value, ok := out[alias]
		if !ok {
			continue
		}
		delete(out, alias)
		field, _ := schema.Field(name)
		if IsAbsent(field.Kind, out[name]) {
			out[name] = value
		}
	}
	return out
}

// IsAbsent treats nil, blank strings and (for identifiers and counts) zero as missing
func IsAbsent(kind FieldKind, value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimSpace(v)
		if s == "" || strings.EqualFold(s, "null") {
			return true
		}
		if kind == KindID {
			if n, err := strconv.ParseFloat(s, 64); err == nil {
				return n == 0
			}
		}
		return false
	case float64:
		return kind == KindID && (v == 0 || math.IsNaN(v))
	case int:
		return kind == KindID && v == 0
	case int64:
		return kind == KindID && v == 0
	case json.Number:
		if kind != KindID {
			return false
		}
		n, err := v.Float64()
		return err != nil || n == 0
	default:
		return false
	}
}
