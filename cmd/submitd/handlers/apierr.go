package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	domerr "github.com/pharmbio/pipeline-monitor/pkg/domain/errors"
	xe "github.com/pharmbio/pipeline-monitor/pkg/errors"
)

// ErrorMessage is the payload of error responses.
type ErrorMessage struct {
	Message string `json:"message"`
	Advice  string `json:"advice,omitempty"`
}

func newError(code int, message string, advice string, cause error) *echo.HTTPError {
	return echo.NewHTTPError(
		code, ErrorMessage{Message: message, Advice: advice},
	).SetInternal(cause)
}

func BadRequest(message string, cause error) *echo.HTTPError {
	return newError(http.StatusBadRequest, message, "", cause)
}

func NotFound(message string, cause error) *echo.HTTPError {
	return newError(http.StatusNotFound, message, "", cause)
}

func ServiceUnavailable(cause error) *echo.HTTPError {
	return newError(
		http.StatusServiceUnavailable,
		"service unavailable temporarily", "please retry later.", cause,
	)
}

// InternalServerError hides cause from clients. It is logged by the server.
func InternalServerError(cause error) *echo.HTTPError {
	return newError(
		http.StatusInternalServerError,
		"unexpected error", "ask your system admin.", cause,
	)
}

// AsHTTPError maps errors of domain into responses.
func AsHTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, domerr.ErrInvalid):
		return BadRequest(clientMessage(err, "invalid request"), err)
	case errors.Is(err, domerr.ErrNotFound):
		return NotFound(clientMessage(err, "not found"), err)
	case domerr.IsTransient(err):
		return ServiceUnavailable(err)
	}
	return InternalServerError(err)
}

// clientMessage is the message of err without locations annotated by xe.
//
// It is the message of the outermost error in the chain of err having no *xe.Located under it.
// When there is no such one, it is fallback.
func clientMessage(err error, fallback string) string {
	for e := err; e != nil; e = errors.Unwrap(e) {
		var located *xe.Located
		if !errors.As(e, &located) {
			return e.Error()
		}
	}
	return fallback
}
