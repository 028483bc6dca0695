package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sentra/internal/activity"
	"sentra/internal/audit"
	"sentra/internal/maintenance"
	dErrors "sentra/pkg/domain-errors"
	"sentra/pkg/platform/httputil"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// SettingsWriter is the mutable side of the settings store. Writes must be
// followed by a gate invalidation so the new values take effect before the
// cache TTL would expire.
type SettingsWriter interface {
	Set(ctx context.Context, category, key, value string) error
}

// Handler serves the operator read API over the collected records plus the
// single runtime-mutable configuration surface, the maintenance triple.
type Handler struct {
	activities activity.Store
	audits     audit.Store
	settings   SettingsWriter
	gate       *maintenance.Gate
	logger     *slog.Logger
}

func NewHandler(activities activity.Store, audits audit.Store, settings SettingsWriter, gate *maintenance.Gate, logger *slog.Logger) *Handler {
	return &Handler{
		activities: activities,
		audits:     audits,
		settings:   settings,
		gate:       gate,
		logger:     logger,
	}
}

// Routes mounts the admin endpoints on r. Callers are expected to guard
// the subtree with the admin-requiring auth middleware.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/activity", h.listActivity)
	r.Get("/audit-events", h.listAuditEvents)
	r.Put("/maintenance", h.updateMaintenance)
}

func (h *Handler) listActivity(w http.ResponseWriter, r *http.Request) {
	records, err := h.activities.ListRecent(r.Context(), listLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list activity records", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "list activity records"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}

func (h *Handler) listAuditEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.audits.ListRecent(r.Context(), listLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list audit events", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "list audit events"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// MaintenanceUpdateRequest is the write surface for the maintenance gate.
type MaintenanceUpdateRequest struct {
	Enabled          bool   `json:"enabled"`
	Message          string `json:"message"`
	AllowAdminAccess bool   `json:"allow_admin_access"`
}

func (h *Handler) updateMaintenance(w http.ResponseWriter, r *http.Request) {
	var req MaintenanceUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid maintenance payload"))
		return
	}

	ctx := r.Context()
	writes := map[string]string{
		maintenance.KeyEnabled:          strconv.FormatBool(req.Enabled),
		maintenance.KeyMessage:          req.Message,
		maintenance.KeyAllowAdminAccess: strconv.FormatBool(req.AllowAdminAccess),
	}
	for key, value := range writes {
		if err := h.settings.Set(ctx, maintenance.Category, key, value); err != nil {
			h.logger.ErrorContext(ctx, "failed to write maintenance setting", "key", key, "error", err)
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "write maintenance setting"))
			return
		}
	}

	// The gate must not serve the stale triple until its TTL happens to
	// lapse.
	h.gate.Invalidate()

	h.logger.InfoContext(ctx, "maintenance settings updated",
		"enabled", req.Enabled,
		"allow_admin_access", req.AllowAdminAccess,
	)
	httputil.WriteJSON(w, http.StatusOK, req)
}

func listLimit(r *http.Request) int {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit
}
