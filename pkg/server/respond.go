package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/sitekeeper/sitekeeper/pkg/errors"
)

const (
	maxBodyBytesTiny  int64 = 64 << 10
	maxBodyBytesSmall int64 = 1 << 20
)

// respondJSON sends a JSON response with appropriate headers.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

// errorBody is the uniform error envelope. The success flag mirrors the git
// Result shape so clients branch the same way everywhere.
type errorBody struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// respondError maps an error's code to an HTTP status and writes the
// envelope. The body is the authoritative signal; statuses mirror the
// error taxonomy for conventional clients.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := apperrors.GetCode(err)
	switch code {
	case apperrors.ErrCodePathInvalid, apperrors.ErrCodeInvalidInput, apperrors.ErrCodeConflict:
		status = http.StatusBadRequest
	case apperrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case apperrors.ErrCodeAuthRequired:
		status = http.StatusUnauthorized
	case apperrors.ErrCodeGitTimeout:
		status = http.StatusGatewayTimeout
	}
	respondJSON(w, status, errorBody{Success: false, Code: string(code), Message: err.Error()})
}

func respondStatusError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorBody{Success: false, Message: msg})
}

// decodeJSONBody decodes a bounded JSON request body into dst.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64) (int, error) {
	if r == nil || r.Body == nil {
		return http.StatusBadRequest, fmt.Errorf("request body required")
	}
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return http.StatusBadRequest, fmt.Errorf("request body required")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return http.StatusRequestEntityTooLarge, fmt.Errorf("request body too large (max %d bytes)", maxBytes)
		}
		return http.StatusBadRequest, err
	}
	return 0, nil
}
