package pipeline

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sentra/internal/activity"
	"sentra/internal/audit"
	"sentra/internal/maintenance"
	ratelimitmw "sentra/internal/ratelimit/middleware"
	"sentra/internal/ratelimit/models"
	"sentra/pkg/platform/middleware/metadata"
	"sentra/pkg/platform/middleware/requesttime"
)

// Pipeline composes the admission and recording stages around a business
// handler. The stage order is a hard invariant:
//
//	request time + client metadata
//	maintenance gate
//	rate limiter
//	body capture
//	authentication
//	activity recorder
//	audit classifier
//	handler
//
// The maintenance gate is the only stage allowed to short-circuit before
// authentication. Body capture runs before authentication so the cached
// body serves both the audit classifier and the handler without a second
// read. The recorder sits outside the audit classifier on the recording
// side, so it observes the true final status and duration of everything
// inside it.
type Pipeline struct {
	gate         *maintenance.Middleware
	limiter      *ratelimitmw.Middleware
	recorder     *activity.Recorder
	auditor      *audit.Classifier
	authenticate func(http.Handler) http.Handler
	tracer       trace.Tracer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithAuthenticator sets the identity-resolving middleware. The pipeline
// treats authentication as an external collaborator: it must populate the
// request identity when credentials are present and pass the request
// through unauthenticated otherwise.
func WithAuthenticator(mw func(http.Handler) http.Handler) Option {
	return func(p *Pipeline) { p.authenticate = mw }
}

// WithTracer overrides the tracer, mainly for tests.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

func New(gate *maintenance.Middleware, limiter *ratelimitmw.Middleware, recorder *activity.Recorder, auditor *audit.Classifier, opts ...Option) *Pipeline {
	p := &Pipeline{
		gate:     gate,
		limiter:  limiter,
		recorder: recorder,
		auditor:  auditor,
		authenticate: func(next http.Handler) http.Handler {
			return next
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.tracer == nil {
		p.tracer = otel.Tracer("sentra/pipeline")
	}
	return p
}

// Wrap builds the full chain around next for the given rate-limit class.
func (p *Pipeline) Wrap(class models.OperationClass, next http.Handler) http.Handler {
	h := p.traced(class, next)
	h = p.auditor.Handler(h)
	h = p.recorder.Handler(h)
	h = p.authenticate(h)
	h = p.recorder.CaptureBody(h)
	h = p.limiter.Limit(class)(h)
	h = p.gate.Handler(h)
	h = metadata.ClientMetadata(h)
	h = requesttime.Middleware(h)
	return h
}

func (p *Pipeline) traced(class models.OperationClass, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := p.tracer.Start(r.Context(), "pipeline.handle",
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.path", r.URL.Path),
				attribute.String("ratelimit.class", string(class)),
			),
		)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
