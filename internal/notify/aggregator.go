package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"taproom/internal/beers/store"
	"taproom/internal/notify/metrics"
	"taproom/pkg/domain"
)

// DefaultReportEvery is the collection size multiple that triggers a report.
const DefaultReportEvery = 10

// Contribution is one tap's share of the collection.
type Contribution struct {
	Tap   string `json:"tap"`
	Share string `json:"share"`
}

// Report is the aggregate pushed to connections.
type Report struct {
	Contributions []Contribution `json:"contributions"`
	TotalRecords  int            `json:"totalRecords"`
}

// BuildReport computes each tap's share of snap, taps in order of first appearance.
func BuildReport(snap store.Snapshot) Report {
	beers := snap.Beers()
	report := Report{Contributions: []Contribution{}, TotalRecords: len(beers)}
	if len(beers) == 0 {
		return report
	}

	var order []domain.TapID
	counts := make(map[domain.TapID]int)
	for _, b := range beers {
		if _, seen := counts[b.TapID()]; !seen {
			order = append(order, b.TapID())
		}
		counts[b.TapID()]++
	}

	for _, tap := range order {
		pct := float64(counts[tap]) / float64(len(beers)) * 100
		report.Contributions = append(report.Contributions, Contribution{
			Tap:   "tap " + tap.String(),
			Share: FormatShare(pct),
		})
	}
	return report
}

// FormatShare rounds pct to two decimals and renders it with the shortest
// representation, keeping at least one decimal: 50 -> "50.0%", 33.333 -> "33.33%".
func FormatShare(pct float64) string {
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(pct, 'f', 2, 64), 64)
	if err != nil {
		rounded = pct
	}
	s := strconv.FormatFloat(rounded, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s + "%"
}

// Aggregator broadcasts a Report whenever the collection size is a multiple
// of its interval. The trigger is the post-mutation count, so deletions can
// fire it too.
type Aggregator struct {
	publisher Publisher
	every     int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type AggregatorOption func(*Aggregator)

func WithReportEvery(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.every = n
		}
	}
}

func WithAggregatorLogger(logger *slog.Logger) AggregatorOption {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

func WithAggregatorMetrics(m *metrics.Metrics) AggregatorOption {
	return func(a *Aggregator) {
		a.metrics = m
	}
}

// NewAggregator creates an aggregator writing to publisher.
func NewAggregator(publisher Publisher, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		publisher: publisher,
		every:     DefaultReportEvery,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) Name() string { return "aggregator" }

func (a *Aggregator) OnNotify(ctx context.Context, snap store.Snapshot, _ string) error {
	if snap.Count()%a.every != 0 {
		return nil
	}
	report := BuildReport(snap)
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	queued := a.publisher.Broadcast(payload)
	a.metrics.IncrementReports()
	a.logger.InfoContext(ctx, "tap contribution report",
		"total_beers", report.TotalRecords,
		"taps", len(report.Contributions),
		"connections", queued,
	)
	return nil
}
