// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/evanschultz/sprinter/internal/adapters/server/common"
	"github.com/evanschultz/sprinter/internal/app"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	planner common.Planner
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

// NewHandler constructs one HTTP API adapter over the planner surface.
func NewHandler(planner common.Planner) *Handler {
	return &Handler{planner: planner}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.planner == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "planner service is not configured",
		})
		return
	}

	path := normalizePath(r.URL.Path)
	switch path {
	case "sprint":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleBoard(w, r)
		return
	case "sprints":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListSprints(w, r)
		return
	case "tasks":
		switch r.Method {
		case http.MethodGet:
			h.handleListTasks(w, r)
		case http.MethodPost:
			h.handleAddTask(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
		return
	case "auto_assign":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleAutoAssign(w, r)
		return
	case "capacity":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleCapacity(w, r)
		return
	case "snapshot":
		switch r.Method {
		case http.MethodGet:
			h.handleSnapshot(w, r)
		case http.MethodPut:
			h.handleRestore(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPut)
		}
		return
	case "import":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleImport(w, r)
		return
	}

	if taskID, ok := resolveTaskAssignID(path); ok {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleAssignTask(w, r, taskID)
		return
	}
	if taskID, ok := resolveSegment(path, "tasks/"); ok {
		switch r.Method {
		case http.MethodGet:
			h.handleGetTask(w, r, taskID)
		case http.MethodPatch:
			h.handleUpdateTask(w, r, taskID)
		case http.MethodDelete:
			h.handleRemoveTask(w, r, taskID)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodDelete)
		}
		return
	}
	if holderID, ok := resolveSegment(path, "capacity/"); ok {
		if r.Method != http.MethodPut {
			writeMethodNotAllowed(w, http.MethodPut)
			return
		}
		h.handleSetCapacity(w, r, holderID)
		return
	}
	if format, ok := resolveSegment(path, "export/"); ok {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleExport(w, r, format)
		return
	}
	writeJSONError(w, http.StatusNotFound, APIError{
		Code:    "not_found",
		Message: "endpoint not found",
	})
}

// handleBoard serves GET `/sprint`.
func (h *Handler) handleBoard(w http.ResponseWriter, r *http.Request) {
	board, err := h.planner.Board(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// handleListSprints serves GET `/sprints`.
func (h *Handler) handleListSprints(w http.ResponseWriter, r *http.Request) {
	sprints, err := h.planner.ListSprints(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sprints": sprints,
	})
}

// handleListTasks serves GET `/tasks?holder_id=`; an empty holder lists the backlog.
func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	holderID := strings.TrimSpace(r.URL.Query().Get("holder_id"))
	tasks, err := h.planner.ListTasks(r.Context(), holderID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"holder_id": holderID,
		"tasks":     tasks,
	})
}

// handleAddTask serves POST `/tasks`.
func (h *Handler) handleAddTask(w http.ResponseWriter, r *http.Request) {
	var req common.AddTaskRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	task, err := h.planner.AddTask(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// handleGetTask serves GET `/tasks/{id}`.
func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request, taskID string) {
	task, err := h.planner.GetTask(r.Context(), taskID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleUpdateTask serves PATCH `/tasks/{id}`.
func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request, taskID string) {
	var req common.UpdateTaskRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	task, err := h.planner.UpdateTask(r.Context(), taskID, req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleRemoveTask serves DELETE `/tasks/{id}`.
func (h *Handler) handleRemoveTask(w http.ResponseWriter, r *http.Request, taskID string) {
	if err := h.planner.RemoveTask(r.Context(), taskID); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAssignTask serves POST `/tasks/{id}/assign`. An empty or missing
// holder_id moves the task to the backlog.
func (h *Handler) handleAssignTask(w http.ResponseWriter, r *http.Request, taskID string) {
	var payload struct {
		HolderID string `json:"holder_id"`
	}
	if err := decodeOptionalJSONBody(r.Context(), w, r, &payload); err != nil {
		writeErrorFrom(w, err)
		return
	}
	task, err := h.planner.AssignTask(r.Context(), common.AssignTaskRequest{
		TaskID:   taskID,
		HolderID: payload.HolderID,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleAutoAssign serves POST `/auto_assign`.
func (h *Handler) handleAutoAssign(w http.ResponseWriter, r *http.Request) {
	result, err := h.planner.AutoAssign(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleCapacity serves GET `/capacity`.
func (h *Handler) handleCapacity(w http.ResponseWriter, r *http.Request) {
	report, err := h.planner.Capacity(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleSetCapacity serves PUT `/capacity/{holder_id}`.
func (h *Handler) handleSetCapacity(w http.ResponseWriter, r *http.Request, holderID string) {
	var req common.SetCapacityRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.HolderID = holderID
	report, err := h.planner.SetCapacity(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleSnapshot serves GET `/snapshot`.
func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.planner.Snapshot(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleRestore serves PUT `/snapshot`.
func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	var snap app.Snapshot
	if err := decodeJSONBody(r.Context(), w, r, &snap); err != nil {
		writeErrorFrom(w, err)
		return
	}
	board, err := h.planner.Restore(r.Context(), snap)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// handleImport serves POST `/import`.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	var req common.ImportTasksRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	result, err := h.planner.ImportTasks(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleExport serves GET `/export/{format}`.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, format string) {
	out, err := h.planner.Export(r.Context(), format)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Body)
}

// resolveTaskAssignID parses `/tasks/{id}/assign` and returns `{id}`.
func resolveTaskAssignID(path string) (string, bool) {
	const (
		prefix = "tasks/"
		suffix = "/assign"
	)
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		return "", false
	}
	id := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(path, prefix), suffix))
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// resolveSegment parses `{prefix}{value}` where value is one path segment.
func resolveSegment(path, prefix string) (string, bool) {
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	value := strings.TrimSpace(strings.TrimPrefix(path, prefix))
	if value == "" || strings.Contains(value, "/") {
		return "", false
	}
	return value, true
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrNoSprint):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "no_active_sprint",
			Message: err.Error(),
			Hint:    "Start a sprint with `sprinter init` or PUT /snapshot.",
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrUnknownHolder):
		writeJSONError(w, http.StatusUnprocessableEntity, APIError{
			Code:    "unknown_sprinter",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrImportFailed):
		writeJSONError(w, http.StatusBadGateway, APIError{
			Code:    "import_failed",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrUnavailable):
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

// decodeOptionalJSONBody decodes one optional JSON body and ignores empty payloads.
func decodeOptionalJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(out)
	if err == nil {
		select {
		case <-ctx.Done():
			return fmt.Errorf("request canceled: %w", ctx.Err())
		default:
			return nil
		}
	}
	if errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
}
