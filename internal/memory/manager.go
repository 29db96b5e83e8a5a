package memory

import (
	"context"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/avvvet/hotelbuddy-intent/internal/intents"
	"github.com/avvvet/hotelbuddy-intent/internal/models"
)

// Manager carries partially supplied parameters across turns of one session,
// one slot per intent. Storage failures are logged and never fail a turn.
type Manager struct {
	store    Store
	registry *intents.Registry
	logger   zerolog.Logger
	now      func() time.Time
}

// NewManager creates a new pending-parameter manager
func NewManager(store Store, registry *intents.Registry, logger zerolog.Logger) *Manager {
	return &Manager{
		store:    store,
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}
}

// Retain abandons pending requests for every intent the current turn does not name.
// It runs once per turn, before any action is merged.
func (m *Manager) Retain(ctx context.Context, sessionID string, named []models.Intent) {
	var drop []models.Intent
	for _, intent := range models.AllIntents {
		if !slices.Contains(named, intent) {
			drop = append(drop, intent)
		}
	}
	if err := m.store.Clear(ctx, sessionID, drop...); err != nil {
		m.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to abandon pending parameters")
	}
}

// Merge fills params with values remembered for the same intent. Newly supplied values win.
func (m *Manager) Merge(ctx context.Context, sessionID string, intent models.Intent, params models.ParameterSet) models.ParameterSet {
	pending, err := m.store.Load(ctx, sessionID, intent)
	if err != nil {
		m.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to load pending parameters")
		return params
	}
	if pending == nil {
		return params
	}

	schema, err := m.registry.SchemaFor(intent)
	if err != nil {
		return params
	}

	merged := params.Clone()
	for name, value := range pending.Params {
		kind := intents.KindString
		if f, ok := schema.Field(name); ok {
			kind = f.Kind
		}
		if intents.IsAbsent(kind, merged[name]) {
			merged[name] = value
		}
	}

	m.logger.Debug().
		Str("session_id", sessionID).
		Str("intent", string(intent)).
		Int("carried", len(pending.Params)).
		Msg("merged pending parameters")

	return merged
}

// Remember stores what the user has supplied so far for intent
func (m *Manager) Remember(ctx context.Context, sessionID string, intent models.Intent, params models.ParameterSet, missing []string) {
	pending := &Pending{
		SessionID: sessionID,
		Intent:    intent,
		Params:    params.Clone(),
		Missing:   missing,
		UpdatedAt: m.now(),
	}
	if err := m.store.Save(ctx, pending); err != nil {
		m.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to save pending parameters")
	}
}

// Forget drops the pending request of a session for one intent
func (m *Manager) Forget(ctx context.Context, sessionID string, intent models.Intent) {
	if err := m.store.Clear(ctx, sessionID, intent); err != nil {
		m.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to clear pending parameters")
	}
}

// EndSession drops everything pending for a session that has closed
func (m *Manager) EndSession(ctx context.Context, sessionID string) {
	if err := m.store.Clear(ctx, sessionID, models.AllIntents...); err != nil {
		m.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to clear session parameters")
	}
}

// Ping checks the backing store when it supports it
func (m *Manager) Ping(ctx context.Context) error {
	if pinger, ok := m.store.(interface{ Ping(context.Context) error }); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

// Close closes the underlying store
func (m *Manager) Close() error {
	if closer, ok := m.store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
