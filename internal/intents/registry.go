package intents

import (
	"errors"
	"fmt"
	"strings"

	"github.com/avvvet/hotelbuddy-intent/internal/models"
)

// ErrNotFound is returned for intent names outside the supported set
var ErrNotFound = errors.New("intent not recognized")

// FieldKind drives absence checks and payload coercion
type FieldKind int

const (
	KindString FieldKind = iota
	// KindID is a positive identifier or count; zero counts as absent
	KindID
	// KindDate is an ISO calendar date
	KindDate
)

// Field is one named parameter of an intent
type Field struct {
	Name        string
	Kind        FieldKind
	Description string
	Default     any // optional fields only
}

// Schema lists what an intent needs, in declaration order
type Schema struct {
	Intent   models.Intent
	Summary  string
	Required []Field
	Optional []Field
	// Aliases maps alternative parameter names onto schema names for this intent only
	Aliases map[string]string
}

// FieldNames returns required then optional names in declaration order
func (s *Schema) FieldNames() []string {
	names := make([]string, 0, len(s.Required)+len(s.Optional))
	for _, f := range s.Required {
		names = append(names, f.Name)
	}
	for _, f := range s.Optional {
		names = append(names, f.Name)
	}
	return names
}

// Field looks up a declared field by name
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Required {
		if f.Name == name {
			return f, true
		}
	}
	for _, f := range s.Optional {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Registry is the static, read-only table of supported intents.
// It is built once at startup and never mutated, so it is safe to share.
type Registry struct {
	schemas map[models.Intent]*Schema
	lookup  map[string]models.Intent
}

// NewRegistry builds the registry for the hotel booking gateway
func NewRegistry() *Registry {
	r := &Registry{
		schemas: make(map[models.Intent]*Schema),
		lookup:  make(map[string]models.Intent),
	}
	for _, s := range defaultSchemas() {
		r.schemas[s.Intent] = s
		r.lookup[normalizeName(string(s.Intent))] = s.Intent
	}
	for alias, intent := range legacyNames {
		r.lookup[normalizeName(alias)] = intent
	}
	return r
}

// legacyNames are the labels used by the older request/response prompt
var legacyNames = map[string]models.Intent{
	"search hotel":     models.IntentSearchHotel,
	"available hotels": models.IntentSearchHotel,
	"book":             models.IntentBookRoom,
	"booking":          models.IntentBookRoom,
	"comment":          models.IntentAddComment,
	"add comment":      models.IntentAddComment,
	"view comments":    models.IntentViewComments,
	"comments":         models.IntentViewComments,
	"notification":     models.IntentNotification,
	"notifications":    models.IntentNotification,
}

func defaultSchemas() []*Schema {
	return []*Schema{
		{
			Intent:  models.IntentSearchHotel,
			Summary: "search available hotels",
			Required: []Field{
				{Name: "destination", Kind: KindString, Description: "city or destination"},
				{Name: "checkIn", Kind: KindDate, Description: "YYYY-MM-DD"},
				{Name: "checkOut", Kind: KindDate, Description: "YYYY-MM-DD"},
				{Name: "guests", Kind: KindID, Description: "number of guests"},
			},
		},
		{
			Intent:  models.IntentBookRoom,
			Summary: "book a room in a hotel",
			Required: []Field{
				{Name: "hotelId", Kind: KindID},
				{Name: "roomId", Kind: KindID},
				{Name: "checkIn", Kind: KindDate, Description: "YYYY-MM-DD"},
				{Name: "checkOut", Kind: KindDate, Description: "YYYY-MM-DD"},
				{Name: "guests", Kind: KindID, Description: "number of guests"},
				{Name: "userId", Kind: KindID},
			},
		},
		{
			Intent:  models.IntentAddComment,
			Summary: "leave a comment about a hotel",
			Required: []Field{
				{Name: "hotelId", Kind: KindID},
				{Name: "userId", Kind: KindID},
				{Name: "text", Kind: KindString, Description: "the comment"},
			},
			Optional: []Field{
				{Name: "rating", Kind: KindID, Description: "1 to 5", Default: 5},
				{Name: "serviceType", Kind: KindString, Description: "e.g. Cleaning, Food", Default: "General"},
			},
			Aliases: map[string]string{"comment": "text"},
		},
		{
			Intent:  models.IntentViewComments,
			Summary: "read comments about a hotel",
			Required: []Field{
				{Name: "hotelId", Kind: KindID},
			},
			Optional: []Field{
				{Name: "page", Kind: KindID, Default: 1},
				{Name: "pageSize", Kind: KindID, Default: 10},
			},
		},
		{
			Intent:  models.IntentRegister,
			Summary: "create an account",
			Required: []Field{
				{Name: "username", Kind: KindString},
				{Name: "email", Kind: KindString},
				{Name: "password", Kind: KindString},
			},
			Optional: []Field{
				{Name: "role", Kind: KindString, Default: "Client"},
			},
		},
		{
			Intent:  models.IntentLogin,
			Summary: "log in",
			Required: []Field{
				{Name: "username", Kind: KindString},
				{Name: "password", Kind: KindString},
			},
		},
		{
			Intent:  models.IntentNotification,
			Summary: "check notifications",
		},
	}
}

// ParseIntent resolves a model-supplied intent name, ignoring case, spaces, '_' and '-'
func (r *Registry) ParseIntent(name string) (models.Intent, error) {
	intent, ok := r.lookup[normalizeName(name)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return intent, nil
}

// SchemaFor returns the schema of a supported intent
func (r *Registry) SchemaFor(intent models.Intent) (*Schema, error) {
	s, ok := r.schemas[intent]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, intent)
	}
	return s, nil
}

// Schemas returns every schema in prompt order
func (r *Registry) Schemas() []*Schema {
	out := make([]*Schema, 0, len(models.AllIntents))
	for _, intent := range models.AllIntents {
		if s, ok := r.schemas[intent]; ok {
			out = append(out, s)
		}
	}
	return out
}

func normalizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '\t':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(name)))
}
