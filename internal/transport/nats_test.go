package transport

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/hotelbuddy-intent/internal/models"
)

type stubProcessor struct {
	got    *models.TurnRequest
	result *models.TurnResult
}

func (s *stubProcessor) ProcessMessage(_ context.Context, request *models.TurnRequest, _ models.StateObserver) *models.TurnResult {
	s.got = request
	return s.result
}

func newTestTransport(proc *stubProcessor) *NATSTransport {
	return newNATSTransport(nil, NATSConfig{Subject: "hotel.agent.request", Timeout: time.Second}, proc, zerolog.Nop())
}

func decode(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestHandlePayload(t *testing.T) {
	proc := &stubProcessor{result: &models.TurnResult{
		Outcome: models.OutcomeMissingFields,
		Envelope: &models.Envelope{
			Intent:  models.IntentSearchHotel,
			Error:   "Missing required fields for intent 'SearchHotel': guests",
			Message: "Please provide these details.",
			Missing: []string{"guests"},
		},
	}}
	nt := newTestTransport(proc)

	out := decode(t, nt.handlePayload(context.Background(), []byte(`{"message":"hotels in Bodrum","userId":3}`)))

	require.NotNil(t, proc.got)
	assert.Equal(t, 3, proc.got.UserID)
	assert.Equal(t, models.ChannelStructured, proc.got.Channel)
	assert.NotEmpty(t, proc.got.SessionID)
	assert.Equal(t, []any{"guests"}, out["missing"])
	assert.Equal(t, "Please provide these details.", out["message"])
}

func TestHandlePayloadKeepsCallerSession(t *testing.T) {
	proc := &stubProcessor{result: &models.TurnResult{Envelope: &models.Envelope{Intent: models.IntentLogin}}}
	nt := newTestTransport(proc)

	nt.handlePayload(context.Background(), []byte(`{"message":"log in","userId":1,"sessionId":"abc"}`))
	assert.Equal(t, "abc", proc.got.SessionID)
}

func TestHandlePayloadRejectsBadRequests(t *testing.T) {
	proc := &stubProcessor{}
	nt := newTestTransport(proc)

	out := decode(t, nt.handlePayload(context.Background(), []byte(`not json`)))
	assert.Equal(t, "Invalid request body.", out["error"])

	out = decode(t, nt.handlePayload(context.Background(), []byte(`{"userId":4}`)))
	assert.Equal(t, "Message is required.", out["error"])

	assert.Nil(t, proc.got)
}

func TestCloseWithoutConnection(t *testing.T) {
	assert.NoError(t, newTestTransport(&stubProcessor{}).Close())
}
