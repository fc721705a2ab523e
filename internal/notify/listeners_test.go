package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"taproom/internal/beers/models"
	"taproom/internal/beers/store"
	"taproom/internal/notify/metrics"
	"taproom/internal/notify/mocks"
	"taproom/pkg/domain"
)

// fakeConnections records what each of n connections would have received.
type fakeConnections struct {
	mu       sync.Mutex
	received [][]string
}

func newFakeConnections(n int) *fakeConnections {
	return &fakeConnections{received: make([][]string, n)}
}

func (f *fakeConnections) Broadcast(payload []byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.received {
		f.received[i] = append(f.received[i], string(payload))
	}
	return len(f.received)
}

func (f *fakeConnections) reports(conn int) []Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Report
	for _, msg := range f.received[conn] {
		if !strings.HasPrefix(msg, "{") {
			continue
		}
		var r Report
		if err := json.Unmarshal([]byte(msg), &r); err == nil {
			out = append(out, r)
		}
	}
	return out
}

func snapshotOf(t *testing.T, taps ...string) store.Snapshot {
	t.Helper()
	beers := make([]*models.Beer, 0, len(taps))
	for i, tap := range taps {
		b, err := models.NewBeer(domain.TapID(tap), domain.BeerID(i), 200, time.Now())
		require.NoError(t, err)
		beers = append(beers, b)
	}
	return store.NewSnapshot(beers...)
}

func TestBroadcasterPushesMessageVerbatim(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := mocks.NewMockPublisher(ctrl)
	pub.EXPECT().Broadcast([]byte("Tap with id 1 posted a new beer (id: 0)!")).Return(3)

	b := NewBroadcaster(pub, nil)
	assert.Equal(t, "broadcaster", b.Name())
	require.NoError(t, b.OnNotify(context.Background(), store.NewSnapshot(), "Tap with id 1 posted a new beer (id: 0)!"))
}

func TestFormatShare(t *testing.T) {
	cases := map[float64]string{
		50:                "50.0%",
		100:               "100.0%",
		100.0 / 3:         "33.33%",
		200.0 / 3:         "66.67%",
		100.0 / 7:         "14.29%",
		12.5:              "12.5%",
		0.1:               "0.1%",
		100.0 * 1 / 10000: "0.01%",
	}
	for pct, want := range cases {
		assert.Equal(t, want, FormatShare(pct), "pct %v", pct)
	}
}

func TestBuildReport(t *testing.T) {
	t.Run("first appearance order and shares", func(t *testing.T) {
		report := BuildReport(snapshotOf(t, "b", "a", "b", "c", "b", "a"))
		assert.Equal(t, 6, report.TotalRecords)
		assert.Equal(t, []Contribution{
			{Tap: "tap b", Share: "50.0%"},
			{Tap: "tap a", Share: "33.33%"},
			{Tap: "tap c", Share: "16.67%"},
		}, report.Contributions)
	})

	t.Run("empty collection has no contributions", func(t *testing.T) {
		report := BuildReport(store.NewSnapshot())
		assert.Equal(t, 0, report.TotalRecords)
		assert.NotNil(t, report.Contributions)
		assert.Empty(t, report.Contributions)

		raw, err := json.Marshal(report)
		require.NoError(t, err)
		assert.JSONEq(t, `{"contributions":[],"totalRecords":0}`, string(raw))
	})
}

func TestAggregatorTriggersOnMultiplesOnly(t *testing.T) {
	conns := newFakeConnections(1)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	agg := NewAggregator(conns, WithReportEvery(3), WithAggregatorMetrics(m))

	for n := 1; n <= 7; n++ {
		taps := make([]string, n)
		for i := range taps {
			taps[i] = strconv.Itoa(i % 2)
		}
		require.NoError(t, agg.OnNotify(context.Background(), snapshotOf(t, taps...), "ignored"))
	}

	reports := conns.reports(0)
	require.Len(t, reports, 2)
	assert.Equal(t, 3, reports[0].TotalRecords)
	assert.Equal(t, 6, reports[1].TotalRecords)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReportsTotal))
}

// =============================================================================
// Collection -> Hub -> listeners pipeline
// =============================================================================

type pipeline struct {
	conns *fakeConnections
	coll  *store.Collection
	now   time.Time
}

func newPipeline(connections int) *pipeline {
	conns := newFakeConnections(connections)
	hub := NewHub()
	hub.Attach(NewBroadcaster(conns, nil))
	hub.Attach(NewAggregator(conns))
	return &pipeline{conns: conns, coll: store.New(hub), now: time.Now()}
}

func (p *pipeline) add(t *testing.T, tap string, id int) {
	t.Helper()
	beer, err := models.NewBeer(domain.TapID(tap), domain.BeerID(id), 400, p.now)
	require.NoError(t, err)
	_, err = p.coll.Add(context.Background(), beer)
	require.NoError(t, err)
}

func TestPipelineBroadcastsToEveryConnection(t *testing.T) {
	p := newPipeline(3)
	p.add(t, "7", 0)

	for conn := 0; conn < 3; conn++ {
		assert.Equal(t, []string{"Tap with id 7 posted a new beer (id: 0)!"}, p.conns.received[conn], "connection %d", conn)
	}
}

func TestPipelineAggregatesOnTenthAddOnly(t *testing.T) {
	p := newPipeline(2)

	for i := 0; i < 10; i++ {
		p.add(t, fmt.Sprint(i%3), i)
	}
	reports := p.conns.reports(0)
	require.Len(t, reports, 1)
	assert.Equal(t, 10, reports[0].TotalRecords)

	var total float64
	for _, c := range reports[0].Contributions {
		v, err := strconv.ParseFloat(strings.TrimSuffix(c.Share, "%"), 64)
		require.NoError(t, err)
		total += v
	}
	assert.InDelta(t, 100.0, total, 0.05)

	p.add(t, "0", 10)
	assert.Len(t, p.conns.reports(0), 1, "the 11th beer must not trigger a report")
	assert.Len(t, p.conns.reports(1), 1)
}

func TestPipelineDeleteCanTriggerReport(t *testing.T) {
	p := newPipeline(1)
	for i := 0; i < 11; i++ {
		p.add(t, "1", i)
	}
	require.Len(t, p.conns.reports(0), 1)

	p.coll.Delete(context.Background(), 3)

	reports := p.conns.reports(0)
	require.Len(t, reports, 2)
	assert.Equal(t, 10, reports[1].TotalRecords)
	assert.Equal(t, []Contribution{{Tap: "tap 1", Share: "100.0%"}}, reports[1].Contributions)
}
