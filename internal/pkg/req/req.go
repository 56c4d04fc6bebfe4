/*
Package req binds JSON request bodies, mapping decoding failures onto errs codes.
*/
package req

import (
	"encoding/json"
	"net/http"
	"strings"

	"chatrelay/internal/pkg/errs"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes int64 = 64 << 10

// BindJSON decodes exactly one JSON value from r's body into dst. Unknown fields
// and trailing content are rejected.
func BindJSON(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}
	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}
	return nil
}
