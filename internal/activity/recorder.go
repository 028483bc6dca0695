package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"sentra/internal/classify"
	"sentra/internal/redact"
	"sentra/pkg/requestcontext"
)

var (
	recordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentra_activity_records_total",
		Help: "Activity records built by the recorder",
	})
	persistFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentra_activity_persist_failures_total",
		Help: "Activity records that could not be persisted",
	})
)

// Recorder builds one activity record per request and hands it to the
// store. The record is built on every outcome: success, handled error, and
// panic. A store failure is logged and absorbed; an observability
// subsystem must not be able to fail a business request.
type Recorder struct {
	store    Store
	logger   *slog.Logger
	excluded map[string]struct{}
}

// NewRecorder constructs a Recorder. Excluded paths are skipped entirely:
// no record, no timing, no body capture.
func NewRecorder(store Store, logger *slog.Logger, excluded []string) *Recorder {
	r := &Recorder{
		store:    store,
		logger:   logger,
		excluded: make(map[string]struct{}, len(excluded)),
	}
	for _, p := range excluded {
		r.excluded[p] = struct{}{}
	}
	return r
}

// CaptureBody reads the request body once for state-changing verbs and
// caches it in the context. It runs before authentication so the cached
// copy serves the audit classifier and the business handler alike; neither
// re-reads the raw body. The handler receives the cached copy verbatim,
// redaction applies only to what the recorder stores.
func (rec *Recorder) CaptureBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rec.isExcluded(r.URL.Path) || !isStateChanging(r.Method) || r.Body == nil || r.ContentLength == 0 {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			rec.logger.WarnContext(r.Context(), "failed to capture request body",
				"error", err,
				"request_id", requestcontext.RequestID(r.Context()),
			)
			next.ServeHTTP(w, r)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		ctx := requestcontext.WithCachedBody(r.Context(), body)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Handler wraps the inner handler with the recording step. It is the
// innermost pipeline stage on the way in and the last to observe the
// response on the way out, so it sees the true final status and duration.
func (rec *Recorder) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rec.isExcluded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}

		defer func() {
			panicked := recover()

			status := sw.status
			var errMsg *string
			if panicked != nil {
				// The handler blew up before writing a response.
				status = http.StatusInternalServerError
				msg := fmt.Sprintf("%v", panicked)
				errMsg = &msg
			} else if status == 0 {
				status = http.StatusOK
			}

			rec.persist(r, status, errMsg, time.Since(start))

			if panicked != nil {
				// Re-raise unchanged so the framework's own error
				// handling takes over.
				panic(panicked)
			}
		}()

		next.ServeHTTP(sw, r)
	})
}

func (rec *Recorder) persist(r *http.Request, status int, errMsg *string, elapsed time.Duration) {
	ctx := r.Context()

	resource, resourceID := classify.Path(r.URL.Path)

	record := Record{
		ID:           uuid.New(),
		ActionType:   classify.Action(r.Method, r.URL.Path, status),
		Endpoint:     r.URL.Path,
		Method:       r.Method,
		RequestBody:  redactedBody(ctx),
		StatusCode:   status,
		ErrorMessage: errMsg,
		ClientIP:     requestcontext.ClientIP(ctx),
		UserAgent:    TruncateUserAgent(requestcontext.UserAgent(ctx)),
		DurationMs:   elapsed.Milliseconds(),
		CreatedAt:    requestcontext.Now(ctx),
	}
	if resource != "" {
		record.ResourceType = &resource
	}
	if resourceID != "" {
		record.ResourceID = &resourceID
	}
	if id := requestcontext.GetIdentity(ctx); id != nil {
		record.UserID = &id.UserID
	}

	recordsTotal.Inc()

	// Single bounded attempt on the request's own execution path. A store
	// outage shows up as added latency, never as a failed request.
	if err := rec.store.Create(ctx, record); err != nil {
		persistFailuresTotal.Inc()
		rec.logger.ErrorContext(ctx, "failed to persist activity record",
			"error", err,
			"endpoint", record.Endpoint,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func (rec *Recorder) isExcluded(path string) bool {
	_, ok := rec.excluded[path]
	return ok
}

// redactedBody parses the cached body and masks sensitive fields for
// storage. An unparseable body is a non-fatal classification failure and
// stores as absent.
func redactedBody(ctx context.Context) json.RawMessage {
	body, ok := requestcontext.CachedBody(ctx)
	if !ok || len(body) == 0 {
		return nil
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil
	}

	masked, err := json.Marshal(redact.Value(parsed))
	if err != nil {
		return nil
	}
	return masked
}

func isStateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// statusWriter captures the status code the inner handler writes.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}
