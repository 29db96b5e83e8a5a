package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/hotelbuddy-intent/internal/models"
)

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(Options{Timeout: 2 * time.Second}, zerolog.Nop())
}

func TestDispatchGetEncodesQuery(t *testing.T) {
	var gotMethod, gotQuery, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotQuery = r.Method, r.URL.Path, r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"hotelId":1,"hotelName":"Pera Palace"}]`))
	}))
	defer srv.Close()

	desc := &models.ActionDescriptor{
		Intent:    models.IntentSearchHotel,
		Method:    http.MethodGet,
		URL:       srv.URL + "/v1/HotelSearch/search",
		Placement: models.PlacementQuery,
		Fields:    []string{"destination", "guests"},
		Payload:   models.ParameterSet{"destination": "New York", "guests": int64(2)},
	}

	out, err := newTestDispatcher().Dispatch(context.Background(), desc)
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "/v1/HotelSearch/search", gotPath)
	assert.Equal(t, "destination=New+York&guests=2", gotQuery)
	assert.Equal(t, http.StatusOK, out.StatusCode)
	assert.True(t, out.Success())
	require.IsType(t, []any{}, out.ParsedBody)
	assert.Len(t, out.ParsedBody, 1)
}

func TestDispatchPostAndPutSendJSONBody(t *testing.T) {
	for _, method := range []string{http.MethodPost, http.MethodPut} {
		t.Run(method, func(t *testing.T) {
			var got map[string]any
			var contentType string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, method, r.Method)
				assert.Empty(t, r.URL.RawQuery)
				contentType = r.Header.Get("Content-Type")
				data, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(data, &got)
				_, _ = w.Write([]byte("Booking confirmed"))
			}))
			defer srv.Close()

			desc := &models.ActionDescriptor{
				Intent:    models.IntentBookRoom,
				Method:    method,
				URL:       srv.URL + "/v1/booking",
				Placement: models.PlacementBody,
				Fields:    []string{"hotelId", "checkIn"},
				Payload:   models.ParameterSet{"hotelId": int64(5), "checkIn": "2025-07-10"},
			}

			out, err := newTestDispatcher().Dispatch(context.Background(), desc)
			require.NoError(t, err)
			assert.Equal(t, "application/json", contentType)
			assert.Equal(t, map[string]any{"hotelId": float64(5), "checkIn": "2025-07-10"}, got)
			assert.Equal(t, "Booking confirmed", out.RawBody)
			assert.Nil(t, out.ParsedBody, "non-JSON body stays raw")
		})
	}
}

func TestDispatchKeepsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Hotel not found", http.StatusNotFound)
	}))
	defer srv.Close()

	desc := &models.ActionDescriptor{
		Intent: models.IntentViewComments, Method: http.MethodGet,
		URL: srv.URL + "/v1/comments", Placement: models.PlacementQuery,
	}
	out, err := newTestDispatcher().Dispatch(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, out.StatusCode)
	assert.False(t, out.Success())
	assert.Contains(t, out.RawBody, "Hotel not found")
}

func TestDispatchMakesExactlyOneCall(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	desc := &models.ActionDescriptor{Intent: models.IntentNotification, Method: http.MethodGet, URL: srv.URL, Placement: models.PlacementNone}
	_, err := newTestDispatcher().Dispatch(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDispatchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	desc := &models.ActionDescriptor{Intent: models.IntentLogin, Method: http.MethodPost, URL: url + "/v1/auth/login", Placement: models.PlacementBody}
	_, err := newTestDispatcher().Dispatch(context.Background(), desc)
	require.Error(t, err)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, http.MethodPost, terr.Method)
}

func TestDispatchHonoursContextCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	desc := &models.ActionDescriptor{Intent: models.IntentNotification, Method: http.MethodGet, URL: srv.URL, Placement: models.PlacementNone}
	_, err := newTestDispatcher().Dispatch(ctx, desc)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDispatchTLSVerificationToggle(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	desc := &models.ActionDescriptor{Intent: models.IntentNotification, Method: http.MethodGet, URL: srv.URL, Placement: models.PlacementNone}

	_, err := newTestDispatcher().Dispatch(context.Background(), desc)
	var terr *TransportError
	assert.ErrorAs(t, err, &terr, "self-signed certificate is rejected by default")

	relaxed := NewDispatcher(Options{Timeout: 2 * time.Second, InsecureSkipVerify: true}, zerolog.Nop())
	out, err := relaxed.Dispatch(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, out.ParsedBody)
}
