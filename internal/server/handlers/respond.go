// internal/server/handlers/respond.go

package handlers

import (
	"encoding/json"
	"net/http"
	"reflect"

	apperrors "influence-dashboard/internal/common/errors"
	"influence-dashboard/internal/common/logger"
)

// Response statuses mirror the panel states the front end renders.
const (
	StatusReady = "ready"
	StatusEmpty = "empty"
	StatusError = "error"
)

// Response is the envelope every API endpoint returns.
type Response struct {
	Status    string              `json:"status"`
	Data      interface{}         `json:"data,omitempty"`
	Message   string              `json:"message,omitempty"`
	Code      apperrors.ErrorCode `json:"code,omitempty"`
	Retryable bool                `json:"retryable,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Failed to marshal response"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// respondWithData distinguishes an empty result from a populated one.
func respondWithData(w http.ResponseWriter, data interface{}) {
	status := StatusReady
	if isEmpty(data) {
		status = StatusEmpty
	}
	respondWithJSON(w, http.StatusOK, Response{Status: status, Data: data})
}

// respondWithError converts err into a user-facing message. Details stay in
// the log.
func respondWithError(w http.ResponseWriter, r *http.Request, log logger.Logger, err error) {
	stdErr := apperrors.FromTransport(err)
	code := apperrors.HTTPStatus(stdErr.Code)

	fields := map[string]interface{}{
		"path":      r.URL.Path,
		"query":     r.URL.RawQuery,
		"errorCode": stdErr.Code,
		"category":  apperrors.GetErrorCategory(stdErr.Code),
		"error":     err.Error(),
	}
	if code >= http.StatusInternalServerError {
		log.Error("request failed", fields)
	} else {
		log.Warn("request rejected", fields)
	}

	respondWithJSON(w, code, Response{
		Status:    StatusError,
		Message:   stdErr.Message,
		Code:      stdErr.Code,
		Retryable: stdErr.Retryable,
	})
}

func isEmpty(data interface{}) bool {
	if data == nil {
		return true
	}
	v := reflect.ValueOf(data)
	switch v.Kind() {
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	default:
		return false
	}
}
