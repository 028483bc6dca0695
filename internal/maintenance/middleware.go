package maintenance

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/crypto/bcrypt"

	"sentra/pkg/platform/httputil"
	"sentra/pkg/requestcontext"
)

var denialsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "sentra_maintenance_denials_total",
	Help: "Requests denied because maintenance mode is enabled",
})

// retryAfterHint tells denied clients when to check back, in seconds.
const retryAfterHint = 300

// OverrideTokenHeader carries the operator override token during
// admin-bypass maintenance windows.
const OverrideTokenHeader = "X-Maintenance-Token"

// DenialResponse is the fixed 503 envelope for maintenance denials.
type DenialResponse struct {
	Status  string        `json:"status"`
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details DenialDetails `json:"details"`
}

type DenialDetails struct {
	RetryAfter int `json:"retry_after"`
}

// Middleware decides admit/deny/bypass per request. It is the only
// component permitted to short-circuit the chain before authentication
// runs, so admin verification here can only use what is already available:
// an identity resolved by an earlier deployment-specific middleware, the
// operator override token, or the admin path namespace whose authorization
// is enforced later in the chain.
type Middleware struct {
	gate          *Gate
	logger        *slog.Logger
	excludedPaths map[string]struct{}
	adminPrefix   string
}

// NewMiddleware constructs the gate middleware. excluded paths (health
// checks, documentation, metrics) are admitted unconditionally.
func NewMiddleware(gate *Gate, logger *slog.Logger, excluded []string) *Middleware {
	m := &Middleware{
		gate:          gate,
		logger:        logger,
		excludedPaths: make(map[string]struct{}, len(excluded)),
		adminPrefix:   "/api/v1/admin/",
	}
	for _, p := range excluded {
		m.excludedPaths[p] = struct{}{}
	}
	return m
}

// Handler is the chain entry for the gate.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := m.excludedPaths[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		cfg := m.gate.Current(ctx, requestcontext.Now(ctx))

		if !cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		if cfg.AllowAdminAccess && m.adminBypass(r, cfg) {
			next.ServeHTTP(w, r)
			return
		}

		denialsTotal.Inc()
		m.logger.InfoContext(ctx, "request denied, maintenance mode enabled",
			"path", r.URL.Path,
			"request_id", requestcontext.RequestID(ctx),
		)
		writeMaintenanceDenial(w, cfg.Message)
	})
}

// adminBypass reports whether the caller may pass an admin-access
// maintenance window: a resolved administrator identity, a valid override
// token, or the admin namespace (whose own authorization runs later).
func (m *Middleware) adminBypass(r *http.Request, cfg Config) bool {
	if id := requestcontext.GetIdentity(r.Context()); id != nil && id.IsAdmin {
		return true
	}
	if token := r.Header.Get(OverrideTokenHeader); token != "" && cfg.AdminTokenHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(cfg.AdminTokenHash), []byte(token)) == nil {
			return true
		}
	}
	return strings.HasPrefix(r.URL.Path, m.adminPrefix)
}

func writeMaintenanceDenial(w http.ResponseWriter, message string) {
	if message == "" {
		message = "The service is temporarily down for maintenance."
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterHint))
	httputil.WriteJSON(w, http.StatusServiceUnavailable, &DenialResponse{
		Status:  "error",
		Code:    "MAINTENANCE_MODE",
		Message: message,
		Details: DenialDetails{RetryAfter: retryAfterHint},
	})
}
