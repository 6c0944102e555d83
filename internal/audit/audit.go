// Package audit records the outcome of every gateway operation,
// success and failure alike. Writes are asynchronous and best-effort;
// a failing sink never surfaces into request handling.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Entry is one audit record.
type Entry struct {
	ID         string         `json:"id"`
	Time       time.Time      `json:"time"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resource_id,omitempty"`
	TenantID   string         `json:"tenant_id,omitempty"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
	Severity   string         `json:"severity,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Sink persists entries.
type Sink interface {
	Write(entry Entry) error
}

// Recorder buffers entries and drains them in the background.
type Recorder struct {
	logger zerolog.Logger
	sink   Sink
	ch     chan Entry
	done   chan struct{}
}

// NewRecorder starts a recorder draining into sink. A nil sink logs
// entries instead of persisting them.
func NewRecorder(sink Sink, logger zerolog.Logger) *Recorder {
	r := &Recorder{
		logger: logger,
		sink:   sink,
		ch:     make(chan Entry, 1024),
		done:   make(chan struct{}),
	}
	go r.drain()
	return r
}

func (r *Recorder) drain() {
	defer close(r.done)
	for entry := range r.ch {
		if r.sink == nil {
			r.logger.Info().
				Str("action", entry.Action).
				Str("resource", entry.Resource).
				Str("tenant_id", entry.TenantID).
				Bool("success", entry.Success).
				Msg("audit")
			continue
		}
		if err := r.sink.Write(entry); err != nil {
			r.logger.Error().Err(err).Str("action", entry.Action).Msg("failed to write audit entry")
		}
	}
}

// Record queues an entry. Entries are dropped with a warning when the
// buffer is full rather than blocking the caller.
func (r *Recorder) Record(entry Entry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	select {
	case r.ch <- entry:
	default:
		r.logger.Warn().Str("action", entry.Action).Msg("audit buffer full, dropping entry")
	}
}

// Close stops accepting entries and waits for the drain to finish.
func (r *Recorder) Close() {
	close(r.ch)
	<-r.done
}

// HTTPSink POSTs entries to an external audit service.
type HTTPSink struct {
	url        string
	token      string
	httpClient *http.Client
}

// NewHTTPSink creates a sink for the given audit endpoint.
func NewHTTPSink(url, token string) *HTTPSink {
	return &HTTPSink{
		url:        url,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPSink) Write(entry Entry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create audit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post audit entry: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("audit sink: status %d", resp.StatusCode)
	}
	return nil
}
