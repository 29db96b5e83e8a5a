package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avvvet/hotelbuddy-intent/internal/intents"
	"github.com/avvvet/hotelbuddy-intent/internal/models"
)

// ErrNotRecognized is returned for intents that have no backend route
var ErrNotRecognized = errors.New("intent has no route")

type route struct {
	method     string
	path       string
	placement  models.Placement
	dateFields []string
}

var routes = map[models.Intent]route{
	models.IntentSearchHotel:  {http.MethodGet, "/v1/HotelSearch/search", models.PlacementQuery, []string{"checkIn", "checkOut"}},
	models.IntentBookRoom:     {http.MethodPost, "/v1/booking", models.PlacementBody, []string{"checkIn", "checkOut"}},
	models.IntentAddComment:   {http.MethodPost, "/v1/comments", models.PlacementBody, nil},
	models.IntentViewComments: {http.MethodGet, "/v1/comments", models.PlacementQuery, nil},
	models.IntentRegister:     {http.MethodPost, "/v1/auth/register", models.PlacementBody, nil},
	models.IntentLogin:        {http.MethodPost, "/v1/auth/login", models.PlacementBody, nil},
	models.IntentNotification: {http.MethodGet, "/notificationHub", models.PlacementNone, nil},
}

// Router maps validated intents to backend calls
type Router struct {
	registry *intents.Registry
}

func NewRouter(registry *intents.Registry) *Router {
	return &Router{registry: registry}
}

// Route builds the action descriptor for a validated parameter set.
// The same inputs always produce the same descriptor.
func (r *Router) Route(intent models.Intent, params models.ParameterSet, baseURL string) (*models.ActionDescriptor, error) {
	rt, ok := routes[intent]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRecognized, intent)
	}
	schema, err := r.registry.SchemaFor(intent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRecognized, err)
	}

	desc := &models.ActionDescriptor{
		Intent:    intent,
		Method:    rt.method,
		URL:       strings.TrimRight(baseURL, "/") + rt.path,
		Placement: rt.placement,
		Payload:   models.ParameterSet{},
	}
	if rt.placement == models.PlacementNone {
		return desc, nil
	}

	for _, name := range schema.FieldNames() {
		value, ok := params[name]
		if !ok || value == nil {
			continue
		}
		field, _ := schema.Field(name)
		if field.Kind == intents.KindID {
			value = coerceInt(value)
		}
		desc.Fields = append(desc.Fields, name)
		desc.Payload[name] = value
	}
	for _, name := range rt.dateFields {
		if value, ok := desc.Payload[name].(string); ok {
			desc.Payload[name] = NormalizeDate(value)
		}
	}

	return desc, nil
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// NormalizeDate renders an ISO date-like value as YYYY-MM-DD.
// Values it cannot parse are returned unchanged; the backend decides their fate.
func NormalizeDate(value string) string {
	s := strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return value
}

func coerceInt(value any) any {
	switch v := value.(type) {
	case float64:
		if v == math.Trunc(v) && math.Abs(v) <= 1<<53 {
			return int64(v)
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	}
	return value
}
