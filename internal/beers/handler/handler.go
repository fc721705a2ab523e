package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"taproom/internal/beers/models"
	"taproom/internal/platform/metrics"
	"taproom/internal/platform/middleware"
	"taproom/pkg/domain"
	dErrors "taproom/pkg/domain-errors"
	"taproom/pkg/platform/httputil"
	"taproom/pkg/platform/paging"
)

const maxBodyBytes = 1 << 20

// Service defines the interface for beer operations.
type Service interface {
	Create(ctx context.Context, tapID domain.TapID, volume float64) (*models.BeerResponse, error)
	ListPage(ctx context.Context, page paging.Page) ([]models.BeerResponse, error)
	ListPageByType(ctx context.Context, glass models.GlassType, page paging.Page) ([]models.BeerResponse, error)
	GetByID(ctx context.Context, id domain.BeerID) (*models.BeerResponse, error)
	RemoveByID(ctx context.Context, id domain.BeerID) error
}

// Handler handles the /api/beers endpoints.
type Handler struct {
	logger  *slog.Logger
	beers   Service
	metrics *metrics.Metrics
	timeout time.Duration
}

// New creates a new beer Handler.
func New(beers Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		logger:  logger,
		beers:   beers,
		metrics: metrics,
		timeout: 30 * time.Second,
	}
}

// Register registers the beer routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/beers", func(r chi.Router) {
		r.Use(middleware.Timeout(h.timeout))
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.LatencyMiddleware(h.metrics))

		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/{id}", h.handleGet)
		r.Delete("/{id}", h.handleDelete)
	})
}

// handleList serves GET /api/beers?page=&page_size=&type=.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	page, err := parsePage(r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid pagination",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	var beers []models.BeerResponse
	query := r.URL.Query()
	if query.Has("type") {
		beers, err = h.beers.ListPageByType(ctx, models.GlassType(query.Get("type")), page)
	} else {
		beers, err = h.beers.ListPage(ctx, page)
	}
	if err != nil {
		h.writeServiceError(ctx, w, "failed to list beers", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.BeersEnvelope{Beers: beers})
}

// handleCreate serves POST /api/beers.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req models.CreateBeerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid create beer request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		h.logger.WarnContext(ctx, "invalid create beer request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	beer, err := h.beers.Create(ctx, req.TapID, *req.Volume)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to create beer", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.BeerEnvelope{Beer: *beer})
}

// handleGet serves GET /api/beers/{id}.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	beer, err := h.beers.GetByID(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to get beer", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.BeerEnvelope{Beer: *beer})
}

// handleDelete serves DELETE /api/beers/{id}.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.beers.RemoveByID(ctx, id); err != nil {
		h.writeServiceError(ctx, w, "failed to delete beer", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// pathID parses the {id} segment. An id that is not an integer cannot name
// a beer, so it is answered like a missing one.
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (domain.BeerID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := domain.ParseBeerID(raw)
	if err != nil {
		h.logger.WarnContext(r.Context(), "invalid beer id",
			"request_id", middleware.GetRequestID(r.Context()),
			"id", raw,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeNotFound, "Beer with id "+raw+" not found"))
		return 0, false
	}
	return id, true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	requestID := middleware.GetRequestID(ctx)
	if dErrors.HasCode(err, dErrors.CodeInternal) || !isDomainError(err) {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestID,
			"error", err.Error(),
		)
	} else {
		h.logger.WarnContext(ctx, msg,
			"request_id", requestID,
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}

func isDomainError(err error) bool {
	_, ok := dErrors.As(err)
	return ok
}

func parsePage(r *http.Request) (paging.Page, error) {
	query := r.URL.Query()
	number, err := intParam(query.Get("page"), paging.DefaultNumber, "page")
	if err != nil {
		return paging.Page{}, err
	}
	size, err := intParam(query.Get("page_size"), paging.DefaultSize, "page_size")
	if err != nil {
		return paging.Page{}, err
	}
	return paging.New(number, size)
}

func intParam(raw string, def int, name string) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, name+" must be an integer")
	}
	return n, nil
}
