/*
Package resp writes the relay's JSON response envelope: {code, message, data}.
A code of 0 means success; any other value is an errs code.
*/
package resp

import (
	"encoding/json"
	"net/http"

	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
)

// JSONResponse is the envelope every JSON endpoint returns.
type JSONResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// RespondJSON marshals payload and writes it with the given status.
func RespondJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		logx.Error(err, "encoding JSON response", "http_status", status)
		http.Error(w, "error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logx.Debug("writing JSON response", "error", err.Error())
	}
}

// RespondSuccess writes data with code 0 and HTTP 200.
func RespondSuccess(w http.ResponseWriter, data any) {
	RespondJSON(w, http.StatusOK, JSONResponse{Code: 0, Message: "success", Data: data})
}

// RespondError writes customErr using its own HTTP status. A nil error is
// reported as ErrUnknown.
func RespondError(w http.ResponseWriter, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}
	RespondJSON(w, customErr.Status, JSONResponse{Code: customErr.Code, Message: customErr.Message})
}
