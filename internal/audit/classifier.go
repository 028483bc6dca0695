package audit

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"sentra/pkg/requestcontext"
)

var (
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentra_audit_events_total",
		Help: "Audit events emitted, by event type",
	}, []string{"event_type"})
	emitFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentra_audit_emit_failures_total",
		Help: "Audit events that could not be persisted to every sink",
	})
)

// Classifier matches requests against the target rule table and emits one
// audit event per matched request that completes with a 2xx status. It is
// strictly additive to activity recording: unmatched requests pass through
// untouched.
type Classifier struct {
	rules  []Rule
	store  Store
	sinks  []Sink
	logger *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithRules replaces the default target table.
func WithRules(rules []Rule) Option {
	return func(c *Classifier) { c.rules = rules }
}

// WithSink adds a fan-out sink that receives a copy of every emitted
// event, in addition to the primary store.
func WithSink(sink Sink) Option {
	return func(c *Classifier) { c.sinks = append(c.sinks, sink) }
}

func NewClassifier(store Store, logger *slog.Logger, opts ...Option) *Classifier {
	c := &Classifier{
		rules:  DefaultRules,
		store:  store,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handler wraps the next handler with the pre-capture match and the
// post-capture emit. Matching happens before the handler runs; the event
// is built and persisted only when the response lands in the 2xx range.
// Failed mutations produce no audit event.
func (c *Classifier) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rule, resourceID := Match(c.rules, r.Method, r.URL.Path)
		if rule == nil {
			next.ServeHTTP(w, r)
			return
		}

		sw := &statusCapture{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		if status < 200 || status > 299 {
			return
		}

		c.emit(r, rule, resourceID)
	})
}

func (c *Classifier) emit(r *http.Request, rule *Rule, resourceID *string) {
	ctx := r.Context()
	rawUA := requestcontext.UserAgent(ctx)

	event := Event{
		ID:           uuid.New(),
		EventType:    rule.EventType,
		Action:       ActionFromVerb(r.Method),
		ResourceType: rule.ResourceType,
		ResourceID:   resourceID,
		NewValue:     cachedBodyObject(r),
		ClientIP:     requestcontext.ClientIP(ctx),
		UserAgent:    rawUA,
		Severity:     rule.Severity,
		Metadata:     ClientMetadata(rawUA),
		CreatedAt:    requestcontext.Now(ctx),
	}
	if id := requestcontext.GetIdentity(ctx); id != nil {
		event.UserID = &id.UserID
	}
	// Prior state is a service-layer concern; with no old value the
	// changed-fields invariant leaves the list empty.
	event.ChangedFields = ChangedFields(event.OldValue, event.NewValue)

	eventsTotal.WithLabelValues(string(event.EventType)).Inc()

	failed := false
	if err := c.store.Append(ctx, event); err != nil {
		failed = true
		c.logger.ErrorContext(ctx, "failed to persist audit event",
			"error", err,
			"resource_type", event.ResourceType,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	for _, sink := range c.sinks {
		if err := sink.Append(ctx, event); err != nil {
			failed = true
			c.logger.ErrorContext(ctx, "audit sink append failed",
				"error", err,
				"resource_type", event.ResourceType,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}
	if failed {
		emitFailuresTotal.Inc()
	}
}

// cachedBodyObject decodes the body captured earlier in the chain. The
// raw body is never re-read here. Non-object payloads audit as absent.
func cachedBodyObject(r *http.Request) map[string]any {
	body, ok := requestcontext.CachedBody(r.Context())
	if !ok || len(body) == 0 {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil
	}
	return obj
}

type statusCapture struct {
	http.ResponseWriter
	status int
}

func (w *statusCapture) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusCapture) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}
