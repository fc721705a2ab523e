//go:build integration

package mirror

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"taproom/internal/beers/models"
	"taproom/internal/beers/store"
	"taproom/internal/notify"
	"taproom/pkg/domain"
	"taproom/pkg/testutil/containers"
)

type RedisMirrorSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	mirror *Redis
}

func TestRedisMirrorSuite(t *testing.T) {
	suite.Run(t, new(RedisMirrorSuite))
}

func (s *RedisMirrorSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisMirrorSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	m, err := New(s.redis.Client, "taproom:test-events", WithTimeout(2*time.Second))
	s.Require().NoError(err)
	s.mirror = m
}

func (s *RedisMirrorSuite) TestPublishesEventsAndCount() {
	ctx := context.Background()
	sub := s.redis.Client.Subscribe(ctx, "taproom:test-events")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	s.Require().NoError(err)

	hub := notify.NewHub()
	hub.Attach(s.mirror)
	coll := store.New(hub)

	beer, err := models.NewBeer("north", 1, 500, time.Now())
	s.Require().NoError(err)
	_, err = coll.Add(ctx, beer)
	s.Require().NoError(err)

	select {
	case msg := <-sub.Channel():
		var ev notify.Event
		s.Require().NoError(json.Unmarshal([]byte(msg.Payload), &ev))
		s.Equal("Tap with id north posted a new beer (id: 1)!", ev.Message)
		s.Equal(1, ev.Count)
	case <-time.After(5 * time.Second):
		s.Fail("no event received on the mirror channel")
	}

	count, err := s.redis.Client.Get(ctx, CountKey).Int()
	s.Require().NoError(err)
	s.Equal(1, count)

	coll.Delete(ctx, domain.BeerID(1))
	count, err = s.redis.Client.Get(ctx, CountKey).Int()
	s.Require().NoError(err)
	s.Equal(0, count)
}
