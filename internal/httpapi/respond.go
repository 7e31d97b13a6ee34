package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/goliatone/go-catalog-api/authz"
	goerrors "github.com/goliatone/go-errors"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Category string       `json:"category"`
	Code     int          `json:"code"`
	TextCode string       `json:"text_code,omitempty"`
	Message  string       `json:"message"`
	Fields   []fieldError `json:"validation_errors,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// unauthorizedBody keeps the historical shape clients match on.
type unauthorizedBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeList writes a listing with an ETag derived from the body. A matching
// If-None-Match gets 304 without a body.
func writeList(w http.ResponseWriter, r *http.Request, total int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		writeError(w, r, fmt.Errorf("encode listing: %w", err))
		return
	}

	etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(buf.Bytes()))
	w.Header().Set("ETag", etag)
	w.Header().Set("X-Total-Count", strconv.Itoa(total))

	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, unauthorizedBody{
		Status:  strconv.Itoa(http.StatusUnauthorized),
		Message: authz.UnauthorizedMessage,
	})
}

// writeError maps err to a status code and JSON body. Errors that are not
// go-errors values are reported as internal errors without their message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if authz.IsUnauthorized(err) {
		writeUnauthorized(w)
		return
	}

	var gerr *goerrors.Error
	if !errors.As(err, &gerr) {
		gerr = goerrors.Wrap(err, goerrors.CategoryInternal, "internal server error").
			WithCode(http.StatusInternalServerError)
	}

	status := statusFor(gerr)
	body := errorBody{
		Category: fmt.Sprint(gerr.Category),
		Code:     status,
		TextCode: gerr.TextCode,
		Message:  gerr.Message,
	}
	for _, fe := range gerr.ValidationErrors {
		body.Fields = append(body.Fields, fieldError{Field: fe.Field, Message: fe.Message})
	}
	writeJSON(w, status, errorEnvelope{Error: body})
}

func statusFor(gerr *goerrors.Error) int {
	if gerr.Code >= 400 && gerr.Code < 600 {
		return gerr.Code
	}
	switch gerr.Category {
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func badInput(message string, err error) *goerrors.Error {
	if err == nil {
		return goerrors.New(message, goerrors.CategoryBadInput).WithCode(http.StatusBadRequest)
	}
	return goerrors.Wrap(err, goerrors.CategoryBadInput, message).WithCode(http.StatusBadRequest)
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		return badInput("request body must be a JSON object", err)
	}
	return nil
}
