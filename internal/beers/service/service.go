// Package service exposes the beer operations used by the HTTP layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"taproom/internal/beers/metrics"
	"taproom/internal/beers/models"
	"taproom/pkg/domain"
	dErrors "taproom/pkg/domain-errors"
	"taproom/pkg/platform/paging"
	"taproom/pkg/platform/sentinel"
	"taproom/pkg/requestcontext"
)

// Store is the collection the service reads and mutates.
type Store interface {
	Add(ctx context.Context, beer *models.Beer) (models.BeerResponse, error)
	Delete(ctx context.Context, id domain.BeerID) int
	FindByID(ctx context.Context, id domain.BeerID) (models.BeerResponse, error)
	FindAll(ctx context.Context, page paging.Page) []models.BeerResponse
	FindByType(ctx context.Context, glass models.GlassType, page paging.Page) []models.BeerResponse
	Count() int
}

// IDGenerator hands out beer ids.
type IDGenerator interface {
	Next() domain.BeerID
}

type Service struct {
	store   Store
	ids     IDGenerator
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func New(store Store, ids IDGenerator, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("beer store is required")
	}
	if ids == nil {
		return nil, fmt.Errorf("id generator is required")
	}

	svc := &Service{
		store:  store,
		ids:    ids,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer: otel.Tracer("taproom/beers"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create draws an id, classifies the volume and adds the beer. The id is
// drawn before validation, so a rejected volume still consumes one.
func (s *Service) Create(ctx context.Context, tapID domain.TapID, volume float64) (*models.BeerResponse, error) {
	ctx, span := s.tracer.Start(ctx, "beers.Create", trace.WithAttributes(
		attribute.String("beer.tap_id", tapID.String()),
		attribute.Float64("beer.volume", volume),
	))
	defer span.End()

	id := s.ids.Next()
	span.SetAttributes(attribute.Int64("beer.id", int64(id)))

	beer, err := models.NewBeer(tapID, id, volume, requestcontext.Now(ctx))
	if err != nil {
		s.metrics.IncrementRejected()
		s.logger.WarnContext(ctx, "beer rejected",
			"tap_id", tapID,
			"volume", volume,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		span.SetStatus(codes.Error, "beer rejected")
		return nil, err
	}

	resp, err := s.store.Add(ctx, beer)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "add failed")
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "beer id already in use")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to add beer")
	}

	s.metrics.IncrementCreated()
	s.metrics.SetInCollection(s.store.Count())
	s.logger.InfoContext(ctx, "beer created",
		"beer_id", id,
		"tap_id", tapID,
		"type", resp.Type,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.logger.DebugContext(ctx, beer.Describe())
	return &resp, nil
}

// ListPage returns one page of all beers.
func (s *Service) ListPage(ctx context.Context, page paging.Page) ([]models.BeerResponse, error) {
	ctx, span := s.startPageSpan(ctx, "beers.ListPage", page)
	defer span.End()

	if _, err := paging.New(page.Number, page.Size); err != nil {
		span.SetStatus(codes.Error, "invalid page")
		return nil, err
	}
	return s.store.FindAll(ctx, page), nil
}

// ListPageByType returns one page of the beers served in glass. Unknown
// glass types match nothing.
func (s *Service) ListPageByType(ctx context.Context, glass models.GlassType, page paging.Page) ([]models.BeerResponse, error) {
	ctx, span := s.startPageSpan(ctx, "beers.ListPageByType", page)
	defer span.End()
	span.SetAttributes(attribute.String("beer.type", glass.String()))

	if _, err := paging.New(page.Number, page.Size); err != nil {
		span.SetStatus(codes.Error, "invalid page")
		return nil, err
	}
	if !glass.IsValid() {
		s.logger.DebugContext(ctx, "listing unknown glass type", "type", glass)
	}
	return s.store.FindByType(ctx, glass, page), nil
}

// GetByID returns one beer or a not_found error.
func (s *Service) GetByID(ctx context.Context, id domain.BeerID) (*models.BeerResponse, error) {
	ctx, span := s.tracer.Start(ctx, "beers.GetByID", trace.WithAttributes(
		attribute.Int64("beer.id", int64(id)),
	))
	defer span.End()

	resp, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(span, err, id)
	}
	return &resp, nil
}

// RemoveByID deletes one beer. A missing beer is reported as not_found and
// leaves the collection untouched, so no notification is sent.
func (s *Service) RemoveByID(ctx context.Context, id domain.BeerID) error {
	ctx, span := s.tracer.Start(ctx, "beers.RemoveByID", trace.WithAttributes(
		attribute.Int64("beer.id", int64(id)),
	))
	defer span.End()

	if _, err := s.store.FindByID(ctx, id); err != nil {
		return s.translate(span, err, id)
	}

	removed := s.store.Delete(ctx, id)
	if removed > 0 {
		s.metrics.IncrementDeleted()
	}
	s.metrics.SetInCollection(s.store.Count())
	s.logger.InfoContext(ctx, "beer deleted",
		"beer_id", id,
		"removed", removed,
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

func (s *Service) startPageSpan(ctx context.Context, name string, page paging.Page) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.Int("page.number", page.Number),
		attribute.Int("page.size", page.Size),
	))
}

func (s *Service) translate(span trace.Span, err error, id domain.BeerID) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		span.SetStatus(codes.Error, "not found")
		return dErrors.Wrap(err, dErrors.CodeNotFound, fmt.Sprintf("Beer with id %s not found", id))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "lookup failed")
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up beer")
}
