package httpx

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/MikeMC777/coopmarket/internal/apperr"
	"github.com/MikeMC777/coopmarket/internal/postgres"
)

const internalMessage = "internal server error"

// ValidationError reports a malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Kind() apperr.Kind { return apperr.KindInvalid }

// Invalid is shorthand for a field validation error.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// StatusOf maps an error to the HTTP status used for it.
func StatusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindInvalid:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	}
	switch {
	case postgres.IsUniqueViolation(err):
		return http.StatusConflict
	case postgres.IsForeignKeyViolation(err),
		postgres.IsCheckViolation(err),
		postgres.IsInvalidInput(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func messageOf(err error, status int) string {
	if msg := apperr.Message(err); msg != "" {
		return msg
	}
	switch {
	case postgres.IsUniqueViolation(err):
		return "resource already exists"
	case postgres.IsForeignKeyViolation(err):
		return "referenced resource does not exist"
	case postgres.IsCheckViolation(err):
		return "value violates a constraint"
	case postgres.IsInvalidInput(err):
		return "malformed identifier"
	}
	if status == http.StatusInternalServerError {
		return internalMessage
	}
	return http.StatusText(status)
}

// Error writes the envelope for err. Unclassified errors are logged and
// answered with a generic 500 so internals never reach the client.
func Error(c *gin.Context, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		zctx.From(c.Request.Context()).Error("request failed",
			zap.String("route", c.FullPath()),
			zap.Error(err),
		)
	}
	Fail(c, status, messageOf(err, status))
}

// BindJSON decodes the body into dst and converts binding failures into a
// ValidationError.
func BindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return errors.Wrap(&ValidationError{Reason: "invalid json: " + err.Error()}, "bind")
	}
	return nil
}

// BindOptionalJSON is BindJSON for endpoints whose body may be omitted. An
// absent or empty body, chunked or not, leaves dst untouched.
func BindOptionalJSON(c *gin.Context, dst any) error {
	if c.Request.Body == nil || c.Request.Body == http.NoBody || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.Wrap(&ValidationError{Reason: "invalid json: " + err.Error()}, "bind")
	}
	return nil
}
