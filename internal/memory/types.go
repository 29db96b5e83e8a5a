package memory

import (
	"context"
	"time"

	"github.com/avvvet/hotelbuddy-intent/internal/models"
)

// Pending is a partially filled request waiting for the user to supply the rest
type Pending struct {
	SessionID string              `json:"session_id"`
	Intent    models.Intent       `json:"intent"`
	Params    models.ParameterSet `json:"params"`
	Missing   []string            `json:"missing"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Store defines the interface for pending-parameter storage.
// Entries are keyed by session and intent, so the actions of one
// multi-action turn never overwrite each other.
// This allows us to swap between Redis and in-process storage
type Store interface {
	// Load returns the pending request of a session for intent, or nil when there is none
	Load(ctx context.Context, sessionID string, intent models.Intent) (*Pending, error)

	// Save replaces the pending request for the session and intent of pending
	Save(ctx context.Context, pending *Pending) error

	// Clear drops the pending requests of a session for the given intents
	Clear(ctx context.Context, sessionID string, intents ...models.Intent) error
}
