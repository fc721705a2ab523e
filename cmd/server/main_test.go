package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"taproom/internal/platform/config"
	platformredis "taproom/internal/platform/redis"
	"taproom/internal/realtime"
)

// ServerSuite runs the fully wired application behind an httptest server.
//
// Justification for unit tests: the wiring itself (listener order, shared
// registry, route layout) only shows up when everything is assembled.
type ServerSuite struct {
	suite.Suite
	app    *app
	server *httptest.Server
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	cfg := config.Server{
		ShutdownTimeout: time.Second,
		Beers:           config.Beers{IDStart: 0, ReportEvery: 2},
		Realtime: config.Realtime{
			MaxConnections: 5,
			SendBuffer:     8,
			PingInterval:   time.Second,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := buildApp(context.Background(), cfg, logger, prometheus.NewRegistry())
	s.Require().NoError(err)
	s.app = a
	s.server = httptest.NewServer(a.router)
}

func (s *ServerSuite) TearDownTest() {
	s.app.registry.CloseAll()
	s.server.Close()
	s.app.closeBackends(context.Background())
}

func (s *ServerSuite) dial() *websocket.Conn {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + realtime.SocketPath
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn
}

func (s *ServerSuite) read(conn *websocket.Conn) string {
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	s.Require().NoError(err)
	return string(payload)
}

func (s *ServerSuite) post(tapID string, volume float64) *http.Response {
	body, err := json.Marshal(map[string]any{"tapId": tapID, "volume": volume})
	s.Require().NoError(err)
	resp, err := http.Post(s.server.URL+"/api/beers", "application/json", bytes.NewReader(body))
	s.Require().NoError(err)
	return resp
}

func (s *ServerSuite) delete(id string) *http.Response {
	req, err := http.NewRequest(http.MethodDelete, s.server.URL+"/api/beers/"+id, nil)
	s.Require().NoError(err)
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	return resp
}

// =============================================================================
// Notification fan-out
// =============================================================================

func (s *ServerSuite) TestCreateNotifiesEveryConnection() {
	conns := []*websocket.Conn{s.dial(), s.dial(), s.dial()}
	defer func() {
		for _, c := range conns {
			_ = c.Close()
		}
	}()
	s.Require().Eventually(func() bool { return s.app.registry.Len() == 3 }, 2*time.Second, 10*time.Millisecond)

	resp := s.post("1", 300)
	resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	for _, c := range conns {
		s.Equal("Tap with id 1 posted a new beer (id: 0)!", s.read(c))
	}
}

func (s *ServerSuite) TestReportFollowsBroadcastOnInterval() {
	conn := s.dial()
	defer conn.Close()
	s.Require().Eventually(func() bool { return s.app.registry.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	s.post("1", 300).Body.Close()
	s.post("2", 500).Body.Close()

	s.Equal("Tap with id 1 posted a new beer (id: 0)!", s.read(conn))
	s.Equal("Tap with id 2 posted a new beer (id: 1)!", s.read(conn))
	s.JSONEq(`{"contributions":[{"tap":"tap 1","share":"50.0%"},{"tap":"tap 2","share":"50.0%"}],"totalRecords":2}`, s.read(conn))

	resp := s.delete("0")
	resp.Body.Close()
	s.Equal(http.StatusNoContent, resp.StatusCode)
	s.Equal("Beer 0 deleted from the collection", s.read(conn))
}

// =============================================================================
// Operational endpoints
// =============================================================================

func (s *ServerSuite) TestHealth() {
	s.post("1", 300).Body.Close()

	resp, err := http.Get(s.server.URL + "/health")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	var body healthResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	s.Equal("ok", body.Status)
	s.Equal(1, body.Beers)
	s.Equal([]string{"broadcaster", "aggregator"}, body.Listeners)
	s.Empty(body.Backends)
}

func (s *ServerSuite) TestHealthDegradedWhenBackendDown() {
	s.app.redis = &platformredis.Client{Client: goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})}

	resp, err := http.Get(s.server.URL + "/health")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusServiceUnavailable, resp.StatusCode)

	var body healthResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	s.Equal("degraded", body.Status)
	s.Equal(map[string]string{"redis": "down"}, body.Backends)
}

func (s *ServerSuite) TestMetricsExposeDomainCounters() {
	s.post("1", 300).Body.Close()
	s.post("1", 9000).Body.Close()

	resp, err := http.Get(s.server.URL + "/metrics")
	s.Require().NoError(err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	text := string(raw)
	s.Contains(text, "taproom_beers_created_total 1")
	s.Contains(text, "taproom_beers_rejected_total 1")
	s.Contains(text, "taproom_http_request_duration_seconds")
}

func (s *ServerSuite) TestRequestIDIsEchoed() {
	req, err := http.NewRequest(http.MethodGet, s.server.URL+"/api/beers", nil)
	s.Require().NoError(err)
	req.Header.Set("X-Request-ID", "tap-check-1")

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal("tap-check-1", resp.Header.Get("X-Request-ID"))
}
