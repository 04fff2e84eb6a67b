package httpapi

import (
	"encoding/json"
	"net/http"

	"localllm/pkg/types"
)

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// statusFor maps the library error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case types.IsNotFound(err):
		return http.StatusNotFound
	case types.IsConfig(err), types.IsTemplate(err):
		return http.StatusBadRequest
	case types.IsRemote(err), types.IsRangeUnsupported(err):
		return http.StatusBadGateway
	case types.IsStalledDownload(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
