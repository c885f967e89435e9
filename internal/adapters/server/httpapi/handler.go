// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/hylla/civitas/internal/adapters/server/common"
	"github.com/hylla/civitas/internal/app"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// ActorHeader carries the authenticated user id set by the fronting auth gateway.
const ActorHeader = "X-Actor-ID"

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	public common.PublicService
	admin  common.AdminService
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter from public and admin services.
func NewHandler(public common.PublicService, admin common.AdminService) *Handler {
	return &Handler{
		public: public,
		admin:  admin,
	}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	segments := splitPath(r.URL.Path)
	if len(segments) > 0 && segments[0] == "admin" {
		h.serveAdmin(w, r.WithContext(app.WithActorID(r.Context(), r.Header.Get(ActorHeader))), segments[1:])
		return
	}
	h.servePublic(w, r, segments)
}

// servePublic routes citizen endpoints.
func (h *Handler) servePublic(w http.ResponseWriter, r *http.Request, segments []string) {
	if h.public == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "public service is not configured",
		})
		return
	}
	switch {
	case matches(segments, "districts"):
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListDistricts(w, r)
	case matches(segments, "requests"):
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleSubmitRequest(w, r)
	case len(segments) == 2 && segments[0] == "track":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleTrackRequest(w, r, segments[1])
	case len(segments) == 3 && segments[0] == "track" && segments[2] == "updates":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleCitizenUpdate(w, r, segments[1])
	default:
		writeNotFound(w)
	}
}

// serveAdmin routes actor-scoped endpoints under `/admin`.
func (h *Handler) serveAdmin(w http.ResponseWriter, r *http.Request, segments []string) {
	if h.admin == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "admin service is not configured",
		})
		return
	}
	switch {
	case matches(segments, "requests"):
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListRequests(w, r)
	case matches(segments, "staff"):
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListStaff(w, r)
	case matches(segments, "sla-compliance"):
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleSLACompliance(w, r)
	case len(segments) == 2 && segments[0] == "requests":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleGetRequest(w, r, segments[1])
	case len(segments) == 3 && segments[0] == "requests":
		h.serveRequestAction(w, r, segments[1], segments[2])
	default:
		writeNotFound(w)
	}
}

// serveRequestAction routes `/admin/requests/{id}/{action}`.
func (h *Handler) serveRequestAction(w http.ResponseWriter, r *http.Request, requestID, action string) {
	if action == "audit" {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		entries, err := h.admin.ListAuditEntries(r.Context(), requestID)
		if err != nil {
			writeErrorFrom(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": entries})
		return
	}

	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	var (
		view common.RequestView
		err  error
	)
	switch action {
	case "status":
		var req common.StatusChangeRequest
		if err = decodeJSONBody(r.Context(), w, r, &req); err == nil {
			view, err = h.admin.UpdateStatus(r.Context(), requestID, req)
		}
	case "priority":
		var req common.PriorityChangeRequest
		if err = decodeJSONBody(r.Context(), w, r, &req); err == nil {
			view, err = h.admin.UpdatePriority(r.Context(), requestID, req)
		}
	case "assign":
		var req common.AssignStaffRequest
		if err = decodeJSONBody(r.Context(), w, r, &req); err == nil {
			view, err = h.admin.AssignStaff(r.Context(), requestID, req)
		}
	case "notes":
		var req common.NoteRequest
		if err = decodeJSONBody(r.Context(), w, r, &req); err == nil {
			view, err = h.admin.AddNote(r.Context(), requestID, req)
		}
	default:
		writeNotFound(w)
		return
	}
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleListDistricts serves GET `/districts`.
func (h *Handler) handleListDistricts(w http.ResponseWriter, r *http.Request) {
	districts, err := h.public.ListDistricts(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": districts})
}

// handleSubmitRequest serves POST `/requests`.
func (h *Handler) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req common.SubmitRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	tracking, err := h.public.SubmitRequest(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tracking)
}

// handleTrackRequest serves GET `/track/{code}`.
func (h *Handler) handleTrackRequest(w http.ResponseWriter, r *http.Request, code string) {
	tracking, err := h.public.TrackRequest(r.Context(), code)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tracking)
}

// handleCitizenUpdate serves POST `/track/{code}/updates`.
func (h *Handler) handleCitizenUpdate(w http.ResponseWriter, r *http.Request, code string) {
	var req common.CitizenUpdateRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	tracking, err := h.public.AddCitizenUpdate(r.Context(), code, req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tracking)
}

// handleListRequests serves GET `/admin/requests`.
func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err := parseIntParam(query.Get("page"), "page")
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	pageSize, err := parseIntParam(query.Get("page_size"), "page_size")
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	out, err := h.admin.ListRequests(r.Context(), common.ListRequestsQuery{
		Status:     strings.TrimSpace(query.Get("status")),
		Category:   strings.TrimSpace(query.Get("category")),
		Priority:   strings.TrimSpace(query.Get("priority")),
		DistrictID: strings.TrimSpace(query.Get("district_id")),
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetRequest serves GET `/admin/requests/{id}`.
func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request, requestID string) {
	detail, err := h.admin.GetRequest(r.Context(), requestID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleListStaff serves GET `/admin/staff`.
func (h *Handler) handleListStaff(w http.ResponseWriter, r *http.Request) {
	staff, err := h.admin.ListStaff(r.Context(), strings.TrimSpace(r.URL.Query().Get("district_id")))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": staff})
}

// handleSLACompliance serves GET `/admin/sla-compliance`.
func (h *Handler) handleSLACompliance(w http.ResponseWriter, r *http.Request) {
	report, err := h.admin.SLACompliance(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// parseIntParam parses an optional non-negative integer query parameter.
func parseIntParam(raw, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer: %w", name, common.ErrInvalidRequest)
	}
	return n, nil
}

// splitPath canonicalizes one request path into non-empty segments.
func splitPath(path string) []string {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// matches reports whether segments equal the expected route exactly.
func matches(segments []string, route ...string) bool {
	if len(segments) != len(route) {
		return false
	}
	for i := range route {
		if segments[i] != route[i] {
			return false
		}
	}
	return true
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrUnauthenticated):
		writeJSONError(w, http.StatusUnauthorized, APIError{
			Code:    "unauthenticated",
			Message: "authentication required",
			Hint:    "Send the authenticated user id in the " + ActorHeader + " header.",
		})
	case errors.Is(err, common.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, APIError{
			Code:    "forbidden",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrNotFound):
		// Generic message so out-of-scope requests are not confirmed to exist.
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "not found",
		})
	case errors.Is(err, common.ErrRuleViolation):
		writeJSONError(w, http.StatusUnprocessableEntity, APIError{
			Code:    "rule_violation",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrConflict):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "conflict",
			Message: err.Error(),
			Hint:    "Reload the request and retry.",
		})
	case errors.Is(err, common.ErrServiceUnavailable):
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeNotFound writes the structured unknown-endpoint response.
func writeNotFound(w http.ResponseWriter) {
	writeJSONError(w, http.StatusNotFound, APIError{
		Code:    "not_found",
		Message: "endpoint not found",
	})
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
