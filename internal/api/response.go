package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/constructlink/constructlink/internal/workflow"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// workflowError maps the workflow error taxonomy onto HTTP responses so each
// failure mode renders a distinct message class.
func workflowError(w http.ResponseWriter, err error) {
	var we *workflow.Error
	if !errors.As(err, &we) {
		slog.Error("workflow infrastructure error", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	switch we.Kind {
	case workflow.KindNotFound:
		jsonError(w, http.StatusNotFound, we.Message)
	case workflow.KindPermissionDenied:
		jsonError(w, http.StatusForbidden, we.Message)
	case workflow.KindInvalidTransition:
		jsonError(w, http.StatusConflict, we.Message)
	case workflow.KindConflict:
		jsonError(w, http.StatusConflict, we.Message)
	case workflow.KindValidationFailed:
		jsonResponse(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  we.Message,
			"fields": we.Fields,
		})
	default:
		slog.Error("unknown workflow error kind", "kind", we.Kind, "error", we)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}
