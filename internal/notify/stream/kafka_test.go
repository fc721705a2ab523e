package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"taproom/internal/beers/store"
	"taproom/internal/notify"
	"taproom/internal/notify/metrics"
	"taproom/pkg/requestcontext"
)

// fakeProducer resolves every promise synchronously with err. A full
// producer rejects records the way kgo does once MaxBufferedRecords is hit.
type fakeProducer struct {
	records []*kgo.Record
	err     error
	full    bool
}

func (f *fakeProducer) TryProduce(_ context.Context, r *kgo.Record, promise func(*kgo.Record, error)) {
	if f.full {
		promise(r, kgo.ErrMaxBuffered)
		return
	}
	f.records = append(f.records, r)
	promise(r, f.err)
}

func TestNewValidatesArguments(t *testing.T) {
	_, err := New(nil, "taproom.notifications")
	assert.Error(t, err)

	_, err = New(&fakeProducer{}, "")
	assert.Error(t, err)
}

func TestOnNotifyProducesEvent(t *testing.T) {
	producer := &fakeProducer{}
	k, err := New(producer, "taproom.notifications")
	require.NoError(t, err)

	at := time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), at)
	require.NoError(t, k.OnNotify(ctx, store.NewSnapshot(), "Beer 2 deleted from the collection"))

	require.Len(t, producer.records, 1)
	rec := producer.records[0]
	assert.Equal(t, "taproom.notifications", rec.Topic)
	assert.True(t, rec.Timestamp.Equal(at))

	var ev notify.Event
	require.NoError(t, json.Unmarshal(rec.Value, &ev))
	assert.Equal(t, "Beer 2 deleted from the collection", ev.Message)
	assert.Equal(t, 0, ev.Count)
}

func TestDeliveryFailureIsLoggedAndCounted(t *testing.T) {
	var logs bytes.Buffer
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	producer := &fakeProducer{err: errors.New("broker not available")}

	k, err := New(producer, "taproom.notifications",
		WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))),
		WithMetrics(m),
	)
	require.NoError(t, err)

	require.NoError(t, k.OnNotify(context.Background(), store.NewSnapshot(), "msg"),
		"delivery failures are asynchronous and never fail the notification")

	assert.Contains(t, logs.String(), "notification not delivered to kafka")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ListenerFailures.WithLabelValues("kafka-stream")))
}

func TestFullBufferDropsWithoutBlocking(t *testing.T) {
	var logs bytes.Buffer
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	producer := &fakeProducer{full: true}

	k, err := New(producer, "taproom.notifications",
		WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))),
		WithMetrics(m),
	)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- k.OnNotify(context.Background(), store.NewSnapshot(), "Beer 3 deleted from the collection")
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("OnNotify waited on a full producer buffer")
	}

	assert.Empty(t, producer.records)
	assert.Contains(t, logs.String(), "kafka buffer full, notification dropped")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ListenerFailures.WithLabelValues("kafka-stream")))
}
