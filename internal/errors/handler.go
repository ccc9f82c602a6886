package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"retailcast/internal/dataprocessing"
	"retailcast/internal/forecast"
	"retailcast/internal/infrastructure"
	"retailcast/internal/operations"
	"retailcast/internal/validation"
)

// Problem types following RFC 7807
const (
	TypeValidation           = "/errors/validation"
	TypeBadUpload            = "/errors/upload/invalid"
	TypePayloadTooLarge      = "/errors/upload/too-large"
	TypeMissingField         = "/errors/data/missing-field"
	TypeInvalidValue         = "/errors/data/invalid-value"
	TypeInsufficientData     = "/errors/data/insufficient-history"
	TypeInsufficientForecast = "/errors/forecast/insufficient"
	TypeNotFound             = "/errors/not-found"
	TypeMethodNotAllowed     = "/errors/method-not-allowed"
	TypeRateLimit            = "/errors/rate-limit"
	TypeTimeout              = "/errors/timeout"
	TypeInternal             = "/errors/internal"
)

// ErrorHandler converts errors into problem details responses
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler. includeStack adds panic
// stacks to responses and is meant for development.
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       infrastructure.WithComponent(logger, "error_handler"),
		includeStack: includeStack,
	}
}

// HandleError logs err and responds with its problem details
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	problem := h.ErrorToProblem(err, r)
	reqID := middleware.GetReqID(r.Context())
	problem.WithExtension("trace_id", reqID)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request_failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("type", problem.Type),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path))

	WriteProblem(w, problem)
}

// ErrorToProblem maps err onto a status, problem type and error code.
// Domain errors are matched through any wrapping with errors.As.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	path := r.URL.Path

	var (
		apiErr       *APIError
		missing      *dataprocessing.MissingFieldError
		valueErr     *dataprocessing.ValueError
		insufficient *dataprocessing.InsufficientDataError
		shortFcst    *forecast.InsufficientForecastError
		tooLarge     *validation.FileTooLargeError
		maxBytes     *http.MaxBytesError
		fieldErrs    validator.ValidationErrors
		opErr        *operations.OperationError
	)

	switch {
	case errors.As(err, &apiErr):
		return apiErrorToProblem(apiErr, path)

	case errors.As(err, &missing):
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeMissingField,
			"Missing Required Field", missing.Error(), path).
			WithExtension("error_code", CodeMissingField).
			WithExtension("field", missing.Field).
			WithExtension("found_fields", missing.Found)

	case errors.As(err, &valueErr):
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeInvalidValue,
			"Invalid Value", valueErr.Error(), path).
			WithExtension("error_code", CodeInvalidValue).
			WithExtension("field", valueErr.Field).
			WithExtension("row", valueErr.Row)

	case errors.As(err, &insufficient):
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeInsufficientData,
			"Insufficient History", insufficient.Error(), path).
			WithExtension("error_code", CodeInsufficientData).
			WithExtension("distinct_dates", insufficient.Have).
			WithExtension("required_dates", insufficient.Need)

	case errors.As(err, &shortFcst):
		return NewProblemDetails(http.StatusInternalServerError, TypeInsufficientForecast,
			"Insufficient Forecast", shortFcst.Error(), path).
			WithExtension("error_code", CodeInsufficientForecast)

	case errors.As(err, &tooLarge):
		return NewProblemDetails(http.StatusRequestEntityTooLarge, TypePayloadTooLarge,
			"Payload Too Large", tooLarge.Error(), path).
			WithExtension("error_code", CodePayloadTooLarge).
			WithExtension("limit_bytes", tooLarge.Limit)

	case errors.As(err, &maxBytes):
		return NewProblemDetails(http.StatusRequestEntityTooLarge, TypePayloadTooLarge,
			"Payload Too Large", fmt.Sprintf("request body exceeds the %d byte limit", maxBytes.Limit), path).
			WithExtension("error_code", CodePayloadTooLarge).
			WithExtension("limit_bytes", maxBytes.Limit)

	case errors.Is(err, validation.ErrNoFile),
		errors.Is(err, validation.ErrUnsupportedFile),
		errors.Is(err, validation.ErrEmptyFile),
		errors.Is(err, dataprocessing.ErrUnsupportedFormat),
		errors.Is(err, dataprocessing.ErrEmptyTable):
		return NewProblemDetails(http.StatusBadRequest, TypeBadUpload,
			"Bad Upload", err.Error(), path).
			WithExtension("error_code", CodeBadUpload)

	case errors.Is(err, validation.ErrOutsideBase):
		return NewProblemDetails(http.StatusBadRequest, TypeValidation,
			"Validation Failed", err.Error(), path).
			WithExtension("error_code", CodeValidationFailed)

	case errors.As(err, &fieldErrs):
		return NewProblemDetails(http.StatusBadRequest, TypeValidation,
			"Validation Failed", "Request validation failed", path).
			WithExtension("error_code", CodeValidationFailed).
			WithExtension("errors", FieldErrors(fieldErrs))

	case errors.As(err, &opErr) && opErr.Type == operations.ErrorTypeValidation:
		return NewProblemDetails(http.StatusBadRequest, TypeValidation,
			"Validation Failed", opErr.Error(), path).
			WithExtension("error_code", CodeValidationFailed)

	case errors.Is(err, operations.ErrOperationNotFound):
		return NewProblemDetails(http.StatusNotFound, TypeNotFound,
			"Not Found", err.Error(), path).
			WithExtension("error_code", CodeNotFound)

	case errors.Is(err, context.DeadlineExceeded):
		return NewProblemDetails(http.StatusGatewayTimeout, TypeTimeout,
			"Request Timeout", "The request took too long to process and was cancelled", path).
			WithExtension("error_code", CodeTimeout)

	default:
		return NewProblemDetails(http.StatusInternalServerError, TypeInternal,
			"Internal Server Error", "An unexpected error occurred while processing your request", path).
			WithExtension("error_code", CodeInternal)
	}
}

func apiErrorToProblem(apiErr *APIError, path string) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case CodeInvalidRequest, CodeValidationFailed:
		problemType = TypeValidation
	case CodeBadUpload:
		problemType = TypeBadUpload
	case CodePayloadTooLarge:
		problemType = TypePayloadTooLarge
	case CodeNotFound:
		problemType = TypeNotFound
	case CodeRateLimited:
		problemType = TypeRateLimit
	case CodeTimeout:
		problemType = TypeTimeout
	}

	problem := NewProblemDetails(apiErr.StatusCode, problemType,
		http.StatusText(apiErr.StatusCode), apiErr.Message, path).
		WithExtension("error_code", apiErr.ErrorCode)
	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}
	return problem
}

// FieldErrors flattens validator errors into ValidationError values
func FieldErrors(errs validator.ValidationErrors) []ValidationError {
	out := make([]ValidationError, 0, len(errs))
	for _, fe := range errs {
		msg := fmt.Sprintf("failed %q constraint", fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("failed %q constraint (%s)", fe.Tag(), fe.Param())
		}
		out = append(out, ValidationError{Field: fe.Field(), Message: msg})
	}
	return out
}

// HandlePanic logs a recovered panic and responds with a 500
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetReqID(r.Context())
	stack := string(debug.Stack())

	h.logger.ErrorContext(r.Context(), "panic_recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", stack))

	problem := NewProblemDetails(http.StatusInternalServerError, TypeInternal,
		"Internal Server Error", "An unexpected error occurred", r.URL.Path).
		WithExtension("error_code", CodeInternal).
		WithExtension("trace_id", reqID)
	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", stack)
	}
	WriteProblem(w, problem)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	WriteProblem(w, NewProblemDetails(http.StatusNotFound, TypeNotFound,
		"Not Found", "The requested resource was not found", r.URL.Path).
		WithExtension("error_code", CodeNotFound).
		WithExtension("trace_id", middleware.GetReqID(r.Context())))
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteProblem(w, NewProblemDetails(http.StatusMethodNotAllowed, TypeMethodNotAllowed,
		"Method Not Allowed", fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method), r.URL.Path).
		WithExtension("trace_id", middleware.GetReqID(r.Context())))
}
