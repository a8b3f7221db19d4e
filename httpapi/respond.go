package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	goSessionAuth "github.com/MrEthical07/goSessionAuth"
	"github.com/MrEthical07/goSessionAuth/middleware"
)

const maxBodyBytes = 1 << 20

type envelope struct {
	Status  string                     `json:"status"`
	Message string                     `json:"message"`
	Data    any                        `json:"data,omitempty"`
	Errors  []goSessionAuth.FieldError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func success(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Status: "success", Message: message, Data: data})
}

func statusFor(kind goSessionAuth.Kind) int {
	switch kind {
	case goSessionAuth.KindValidation:
		return http.StatusBadRequest
	case goSessionAuth.KindInvalidCredentials,
		goSessionAuth.KindEmailNotVerified,
		goSessionAuth.KindUnauthorized,
		goSessionAuth.KindCode,
		goSessionAuth.KindOAuthFailed:
		return http.StatusUnauthorized
	case goSessionAuth.KindConflict:
		return http.StatusConflict
	case goSessionAuth.KindNotFound:
		return http.StatusNotFound
	case goSessionAuth.KindRateLimited:
		return http.StatusTooManyRequests
	case goSessionAuth.KindEmailDeliveryFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail renders err in the error envelope. Internal errors are logged with
// full detail and hidden unless development mode is on.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := goSessionAuth.KindOf(err)
	status := statusFor(kind)

	var verr *goSessionAuth.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, status, envelope{Status: "error", Message: "Validation failed", Errors: verr.Fields})
		return
	}

	message := goSessionAuth.ErrInternal.Message
	var e *goSessionAuth.Error
	if kind != goSessionAuth.KindInternal && errors.As(err, &e) {
		message = e.Message
	}

	if kind == goSessionAuth.KindInternal {
		a.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		if a.dev {
			message = err.Error()
		}
	}

	writeJSON(w, status, envelope{Status: "error", Message: message})
}

// decode reads a JSON body into dst. Malformed bodies become a validation
// error on "body"; an empty body decodes to the zero value.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		v := &goSessionAuth.ValidationError{}
		v.Add("body", "Invalid JSON body")
		return v
	}
	return nil
}
