package httptransport

import (
	"encoding/json"
	"net/http"

	derrors "apim/pkg/domain-errors"
)

// writeError centralizes domain error translation to HTTP responses so
// every handler emits the same JSON error envelope. The stable code is
// what clients branch on; the message is display-only.
func writeError(w http.ResponseWriter, err error) {
	code := derrors.CodeOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(derrors.ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   string(code),
		"message": derrors.MessageOf(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
