package beers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"
)

const (
	beersPath   = "/api/beers"
	socketPath  = "/sockets/beers"
	readTimeout = 3 * time.Second
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string) error
	DELETE(path string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	Save(key, value string)
	Saved(key string) string
	OpenSocket(path string) error
	Sockets() []*websocket.Conn
}

// RegisterSteps registers beer collection and realtime step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &beerSteps{tc: tc}

	ctx.Step(`^tap "([^"]*)" serves (\d+(?:\.\d+)?) ml$`, steps.tapServes)
	ctx.Step(`^I save the beer id$`, steps.saveBeerID)
	ctx.Step(`^I fetch the saved beer$`, steps.fetchSavedBeer)
	ctx.Step(`^I delete the saved beer$`, steps.deleteSavedBeer)
	ctx.Step(`^I list beers of type "([^"]*)"$`, steps.listByType)

	ctx.Step(`^(\d+) taps? (?:are|is) connected to the beer socket$`, steps.connectTaps)
	ctx.Step(`^every connected tap should receive a message containing "([^"]*)"$`, steps.everyTapReceives)
	ctx.Step(`^every connected tap should receive the saved beer announcement for tap "([^"]*)"$`, steps.everyTapReceivesAnnouncement)
}

type beerSteps struct {
	tc TestContext
}

func (s *beerSteps) tapServes(ctx context.Context, tap string, volume float64) error {
	return s.tc.POST(beersPath, map[string]any{"tapId": tap, "volume": volume})
}

func (s *beerSteps) saveBeerID(ctx context.Context) error {
	id, err := s.tc.GetResponseField("beer.id")
	if err != nil {
		return err
	}
	switch v := id.(type) {
	case float64:
		s.tc.Save("beer_id", strconv.FormatInt(int64(v), 10))
	case string:
		s.tc.Save("beer_id", v)
	default:
		return fmt.Errorf("unexpected beer id %v", id)
	}
	return nil
}

func (s *beerSteps) fetchSavedBeer(ctx context.Context) error {
	return s.tc.GET(beersPath + "/" + s.tc.Saved("beer_id"))
}

func (s *beerSteps) deleteSavedBeer(ctx context.Context) error {
	return s.tc.DELETE(beersPath + "/" + s.tc.Saved("beer_id"))
}

func (s *beerSteps) listByType(ctx context.Context, glass string) error {
	return s.tc.GET(beersPath + "?type=" + glass + "&page_size=100")
}

func (s *beerSteps) connectTaps(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := s.tc.OpenSocket(socketPath); err != nil {
			return err
		}
	}
	// The server registers a socket after the handshake completes.
	time.Sleep(100 * time.Millisecond)
	return nil
}

func (s *beerSteps) everyTapReceives(ctx context.Context, want string) error {
	for i, conn := range s.tc.Sockets() {
		if err := readUntil(conn, want); err != nil {
			return fmt.Errorf("tap %d: %w", i, err)
		}
	}
	return nil
}

func (s *beerSteps) everyTapReceivesAnnouncement(ctx context.Context, tap string) error {
	want := fmt.Sprintf("Tap with id %s posted a new beer (id: %s)!", tap, s.tc.Saved("beer_id"))
	return s.everyTapReceives(ctx, want)
}

// readUntil reads frames until one equals or contains want. Other traffic,
// such as reports from earlier scenarios, is skipped.
func readUntil(conn *websocket.Conn, want string) error {
	deadline := time.Now().Add(readTimeout)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("waiting for %q: %w", want, err)
		}
		if strings.Contains(string(payload), want) {
			return nil
		}
	}
}
