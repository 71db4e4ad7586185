package httpapi

import (
	"encoding/json"
	"net/http"

	"convd/internal/convert"
	"convd/internal/pyenv"
	"convd/internal/runner"
	"convd/pkg/types"
)

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// statusForError maps well-known service errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case convert.IsPrecondition(err):
		return http.StatusBadRequest
	case convert.IsBusy(err):
		return http.StatusConflict
	case runner.IsExecutableNotFound(err):
		return http.StatusBadRequest
	case runner.IsExecutionFailed(err):
		return http.StatusBadGateway
	case pyenv.IsVenvCreation(err), pyenv.IsPackageInstall(err):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
