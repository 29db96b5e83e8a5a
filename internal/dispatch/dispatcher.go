package dispatch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/avvvet/hotelbuddy-intent/internal/metrics"
	"github.com/avvvet/hotelbuddy-intent/internal/models"
)

const maxBodyBytes = 4 << 20

// TransportError means the backend call could not complete
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Dispatcher executes action descriptors against the backend gateway.
// It performs exactly one call per descriptor and never retries.
type Dispatcher struct {
	client *http.Client
	logger zerolog.Logger
}

// Options configure the gateway client
type Options struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
}

func NewDispatcher(opts Options, logger zerolog.Logger) *Dispatcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in per deployment
	}
	return &Dispatcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		logger: logger,
	}
}

// Dispatch runs the call. Every verb goes through the same path; only the
// descriptor's placement decides between query string and JSON body.
func (d *Dispatcher) Dispatch(ctx context.Context, desc *models.ActionDescriptor) (*models.DispatchOutcome, error) {
	target := desc.Target()

	body, err := desc.Body()
	if err != nil {
		return nil, err
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, desc.Method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	metrics.DispatchDuration.WithLabelValues(string(desc.Intent)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DispatchTotal.WithLabelValues(string(desc.Intent), "transport_error").Inc()
		return nil, &TransportError{Method: desc.Method, URL: desc.URL, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.DispatchTotal.WithLabelValues(string(desc.Intent), "transport_error").Inc()
		return nil, &TransportError{Method: desc.Method, URL: desc.URL, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	outcome := &models.DispatchOutcome{
		StatusCode: resp.StatusCode,
		RawBody:    string(raw),
		ParsedBody: parseBody(raw),
	}
	metrics.DispatchTotal.WithLabelValues(string(desc.Intent), statusClass(resp.StatusCode)).Inc()

	d.logger.Debug().
		Str("intent", string(desc.Intent)).
		Str("method", desc.Method).
		Str("url", desc.URL).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("backend call finished")

	return outcome, nil
}

func parseBody(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil
	}
	return parsed
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}
