package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "retailcast/internal/errors"
	"retailcast/internal/infrastructure"
	"retailcast/internal/middleware"
	"retailcast/internal/validation"
	api "retailcast/pkg/contracts/api/v1"
)

// UploadField is the multipart field carrying the sales file
const UploadField = "file"

// multipartOverhead is allowed on top of the file limit for boundaries and headers
const multipartOverhead = 1 << 20

// ForecastHandler serves the interactive forecast endpoint
type ForecastHandler struct {
	service      DashboardService
	validator    *validation.FileValidator
	errorHandler *apierrors.ErrorHandler
	timeout      time.Duration
	logger       *slog.Logger
}

// NewForecastHandler creates a forecast handler. timeout bounds the work done
// for one upload; zero means no bound beyond the request context.
func NewForecastHandler(service DashboardService, validator *validation.FileValidator, errorHandler *apierrors.ErrorHandler, timeout time.Duration, logger *slog.Logger) *ForecastHandler {
	return &ForecastHandler{
		service:      service,
		validator:    validator,
		errorHandler: errorHandler,
		timeout:      timeout,
		logger:       infrastructure.WithComponent(logger, "forecast_handler"),
	}
}

// Routes returns a chi router for the forecast endpoint
func (h *ForecastHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Forecast)
	return r
}

// Forecast handles POST /api/v1/forecast
func (h *ForecastHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetRequestID(ctx)

	if limit := h.validator.MaxBytes(); limit > 0 {
		bodyLimit := limit + multipartOverhead
		if r.ContentLength > bodyLimit {
			h.errorHandler.HandleError(w, r, &validation.FileTooLargeError{Size: r.ContentLength, Limit: limit})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	}

	file, header, err := r.FormFile(UploadField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			err = validation.ErrNoFile
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	if err := h.validator.ValidateUpload(header.Filename, header.Size); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "forecast upload received",
		slog.String("request_id", reqID),
		slog.String("filename", header.Filename),
		slog.Int64("size", header.Size))

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	dashboard, err := h.service.FromUpload(ctx, header.Filename, file)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, api.ForecastResponse{Dashboard: dashboard})
}
