package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "retailcast/internal/errors"
	"retailcast/internal/infrastructure"
	"retailcast/internal/middleware"
	api "retailcast/pkg/contracts/api/v1"
)

// PipelineHandler exposes batch runs over HTTP
type PipelineHandler struct {
	service      PipelineService
	validator    *middleware.ValidationMiddleware
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewPipelineHandler creates a pipeline handler
func NewPipelineHandler(service PipelineService, validator *middleware.ValidationMiddleware, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *PipelineHandler {
	return &PipelineHandler{
		service:      service,
		validator:    validator,
		errorHandler: errorHandler,
		logger:       infrastructure.WithComponent(logger, "pipeline_handler"),
	}
}

// Routes returns a chi router for pipeline endpoints
func (h *PipelineHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(middleware.ContentTypeValidator(h.errorHandler, "application/json")).Post("/run", h.Run)
	r.Get("/{id}", h.Status)
	r.Post("/{id}/cancel", h.Cancel)
	return r
}

// Run handles POST /api/v1/pipeline/run. The run continues after the response.
func (h *PipelineHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req api.PipelineRunRequest
	if err := h.validator.Decode(w, r, &req); err != nil {
		return
	}

	snapshot, err := h.service.Start(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "pipeline run accepted",
		slog.String("run_id", snapshot.RunID),
		slog.String("stage", req.Stage))

	w.Header().Set("Location", "/api/v1/pipeline/"+snapshot.RunID)
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, snapshot)
}

// Status handles GET /api/v1/pipeline/{id}
func (h *PipelineHandler) Status(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.Status(chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, snapshot)
}

// Cancel handles POST /api/v1/pipeline/{id}/cancel
func (h *PipelineHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Cancel(id); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "pipeline run cancelled", slog.String("run_id", id))
	w.WriteHeader(http.StatusNoContent)
}
