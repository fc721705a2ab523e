package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"taproom/internal/beers/ids"
	"taproom/internal/beers/metrics"
	"taproom/internal/beers/models"
	"taproom/internal/beers/store"
	"taproom/pkg/domain"
	dErrors "taproom/pkg/domain-errors"
	"taproom/pkg/platform/paging"
	"taproom/pkg/requestcontext"
)

// countingNotifier records notification messages in order.
type countingNotifier struct {
	messages []string
}

func (n *countingNotifier) NotifyAll(_ context.Context, _ store.Snapshot, message string) {
	n.messages = append(n.messages, message)
}

// =============================================================================
// Beer Service Test Suite
// =============================================================================
// Justification for unit tests: id allocation, error translation and the
// existence check before delete are service rules that the handler tests
// only see as status codes.

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	notifier *countingNotifier
	store    *store.Collection
	metrics  *metrics.Metrics
	service  *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2024, 7, 1, 19, 0, 0, 0, time.UTC))
	s.notifier = &countingNotifier{}
	s.store = store.New(s.notifier)
	s.metrics = metrics.New(prometheus.NewRegistry())

	svc, err := New(s.store, ids.NewSequence(0), WithMetrics(s.metrics))
	s.Require().NoError(err)
	s.service = svc
}

func (s *ServiceSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil, ids.NewSequence(0))
		s.ErrorContains(err, "beer store is required")
	})

	s.Run("nil id generator returns error", func() {
		_, err := New(s.store, nil)
		s.ErrorContains(err, "id generator is required")
	})
}

// =============================================================================
// Create
// =============================================================================

func (s *ServiceSuite) TestCreate() {
	s.Run("classifies and stamps the request time", func() {
		beer, err := s.service.Create(s.ctx, "north", 330)
		s.Require().NoError(err)
		s.Equal(domain.BeerID(0), beer.ID)
		s.Equal(models.GlassPint, beer.Type)
		s.Equal("2024-07-01T19:00:00Z", beer.Timestamp)
		s.Equal([]string{"Tap with id north posted a new beer (id: 0)!"}, s.notifier.messages)
	})

	s.Run("invalid volume is rejected and still consumes an id", func() {
		_, err := s.service.Create(s.ctx, "north", 5000)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))
		s.Equal(1, s.store.Count())

		beer, err := s.service.Create(s.ctx, "north", 150)
		s.Require().NoError(err)
		s.Equal(domain.BeerID(2), beer.ID)
	})

	s.Equal(2.0, testutil.ToFloat64(s.metrics.BeersCreated))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.BeersRejected))
	s.Equal(2.0, testutil.ToFloat64(s.metrics.BeersInCollection))
}

func (s *ServiceSuite) TestCreateIdsStrictlyIncrease() {
	var last domain.BeerID = -1
	for i := 0; i < 20; i++ {
		beer, err := s.service.Create(s.ctx, "1", 200)
		s.Require().NoError(err)
		s.Greater(beer.ID, last)
		last = beer.ID
	}
}

// =============================================================================
// Queries
// =============================================================================

func (s *ServiceSuite) TestListPage() {
	for i := 0; i < 25; i++ {
		_, err := s.service.Create(s.ctx, "1", 200)
		s.Require().NoError(err)
	}

	s.Run("pages through in insertion order", func() {
		page, err := s.service.ListPage(s.ctx, paging.Page{Number: 3, Size: 10})
		s.Require().NoError(err)
		s.Len(page, 5)
		s.Equal(domain.BeerID(20), page[0].ID)
	})

	s.Run("past the end is empty", func() {
		page, err := s.service.ListPage(s.ctx, paging.Page{Number: 9, Size: 10})
		s.Require().NoError(err)
		s.Empty(page)
	})

	s.Run("non-positive page is a bad request", func() {
		_, err := s.service.ListPage(s.ctx, paging.Page{Number: 0, Size: 10})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

		_, err = s.service.ListPage(s.ctx, paging.Page{Number: 1, Size: -1})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *ServiceSuite) TestListPageByType() {
	for _, v := range []float64{150, 900, 160, 500} {
		_, err := s.service.Create(s.ctx, "1", v)
		s.Require().NoError(err)
	}

	halves, err := s.service.ListPageByType(s.ctx, models.GlassHalf, paging.Default())
	s.Require().NoError(err)
	s.Len(halves, 2)

	unknown, err := s.service.ListPageByType(s.ctx, models.GlassType("growler"), paging.Default())
	s.Require().NoError(err)
	s.Empty(unknown)
}

func (s *ServiceSuite) TestGetByID() {
	created, err := s.service.Create(s.ctx, "1", 200)
	s.Require().NoError(err)

	s.Run("found", func() {
		beer, err := s.service.GetByID(s.ctx, created.ID)
		s.Require().NoError(err)
		s.Equal(*created, *beer)
	})

	s.Run("missing is not_found with a client message", func() {
		_, err := s.service.GetByID(s.ctx, 404)
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
		de, ok := dErrors.As(err)
		s.Require().True(ok)
		s.Equal("Beer with id 404 not found", de.Message)
	})
}

// =============================================================================
// RemoveByID
// =============================================================================

func (s *ServiceSuite) TestRemoveByID() {
	created, err := s.service.Create(s.ctx, "1", 200)
	s.Require().NoError(err)

	s.Run("existing beer is removed and notified", func() {
		s.Require().NoError(s.service.RemoveByID(s.ctx, created.ID))
		s.Equal(0, s.store.Count())
		s.Equal("Beer 0 deleted from the collection", s.notifier.messages[len(s.notifier.messages)-1])
		s.Equal(1.0, testutil.ToFloat64(s.metrics.BeersDeleted))
	})

	s.Run("missing beer is not_found and sends no notification", func() {
		before := len(s.notifier.messages)
		err := s.service.RemoveByID(s.ctx, created.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Len(s.notifier.messages, before)
	})
}

// =============================================================================
// Store failures
// =============================================================================

type brokenStore struct {
	*store.Collection
	err error
}

func (b brokenStore) Add(context.Context, *models.Beer) (models.BeerResponse, error) {
	return models.BeerResponse{}, b.err
}

func (b brokenStore) FindByID(context.Context, domain.BeerID) (models.BeerResponse, error) {
	return models.BeerResponse{}, b.err
}

func (s *ServiceSuite) TestStoreErrorsAreInternal() {
	svc, err := New(brokenStore{Collection: store.New(nil), err: errors.New("disk on fire")}, ids.NewSequence(0))
	s.Require().NoError(err)

	_, err = svc.Create(s.ctx, "1", 200)
	s.True(dErrors.Is(err, dErrors.CodeInternal))

	_, err = svc.GetByID(s.ctx, 1)
	s.True(dErrors.Is(err, dErrors.CodeInternal))
}
