package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"tuition/internal/core"
	applog "tuition/internal/log"
)

var errHttpNotFound = echo.NewHTTPError(http.StatusNotFound, "not found")

// badRequestErrs are domain errors caused by the request body or query.
var badRequestErrs = []error{core.ErrInvalidDate, core.ErrNegativeFee, core.ErrEmptyName}

// notFoundErrs are lookups of ids that do not exist.
var notFoundErrs = []error{core.ErrUnknownStudent, core.ErrUnknownBatch, core.ErrUnknownRecord}

// appHTTPErrorHandler maps service errors to JSON responses: validation
// problems are 400, unknown ids 404, anything else 500.
func appHTTPErrorHandler(err error, c echo.Context) {
	code, message := classify(err)

	if code >= http.StatusInternalServerError {
		applog.FromContext(c.Request().Context()).ErrorContext(c.Request().Context(), "Request failed", "error", err)
	}

	if c.Echo().Debug {
		message = err.Error()
	}
	if m, ok := message.(string); ok {
		message = echo.Map{"error": m}
	}

	if c.Response().Committed {
		return
	}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, message)
	}
	if err != nil {
		slog.Error("Failed to write error response", "error", err)
	}
}

func classify(err error) (int, any) {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
			httpErr = herr
		}
		return httpErr.Code, httpErr.Message
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fldErrs := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fldErrs[fe.Field()] = fieldMessage(fe)
		}
		return http.StatusBadRequest, fldErrs
	}

	var verr *core.ValidationError
	if errors.As(err, &verr) {
		if len(verr.Fields) > 0 {
			fldErrs := make(map[string]string, len(verr.Fields))
			for _, fe := range verr.Fields {
				fldErrs[fe.Field] = fe.Error
			}
			return http.StatusBadRequest, fldErrs
		}
		return http.StatusBadRequest, verr.Error()
	}

	for _, target := range badRequestErrs {
		if errors.Is(err, target) {
			return http.StatusBadRequest, err.Error()
		}
	}
	for _, target := range notFoundErrs {
		if errors.Is(err, target) {
			return http.StatusNotFound, err.Error()
		}
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "monthname":
		return "must be a full month name"
	case "yearstr":
		return "must be a 4-digit year"
	case "isodate":
		return "must be a YYYY-MM-DD date"
	default:
		return fmt.Sprintf("failed on the '%s' rule", fe.Tag())
	}
}
