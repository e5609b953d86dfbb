package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/dyfi-induced-db/internal/domain"
	"github.com/couchcryptid/dyfi-induced-db/internal/observability"
)

type mockWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func testEvent(id string, collated bool) *domain.CatalogEvent {
	mag, ms := 4.5, int64(1425988800500)
	ev := &domain.CatalogEvent{
		Type:       "Feature",
		ID:         id,
		Properties: domain.Properties{Mag: &mag, Time: &ms},
		Geometry:   &domain.Geometry{Type: "Point", Coordinates: []float64{-97.51, 36.49, 5}},
	}
	if collated {
		seq, line := 1, "4.5 -97.5 36.5 5.0 2015 03 10 12 00 00\n"
		ev.Properties.LineCollated = &seq
		ev.Properties.Collated = &line
	}
	return ev
}

func newTestPublisher(w messageWriter) *Publisher {
	return &Publisher{
		writer:  w,
		metrics: observability.NewMetricsForTesting(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2017, time.January, 2, 3, 4, 5, 0, time.UTC)

	msg, err := serializeToMessage(testEvent("us1", true), now)
	require.NoError(t, err)

	assert.Equal(t, []byte("us1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"line_collated":1`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "collated", msg.Headers[0].Key)
	assert.Equal(t, []byte("true"), msg.Headers[0].Value)
	assert.Equal(t, "processed_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2017-01-02T03:04:05Z"), msg.Headers[1].Value)

	var back domain.CatalogEvent
	require.NoError(t, json.Unmarshal(msg.Value, &back))
	assert.Equal(t, "us1", back.ID)
}

func TestPublisher_WriteEvents(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2017, time.January, 2, 0, 0, 0, 0, time.UTC))
	domain.SetClock(clock)
	t.Cleanup(func() { domain.SetClock(nil) })

	w := &mockWriter{}
	p := newTestPublisher(w)

	require.NoError(t, p.WriteEvents(context.Background(), []*domain.CatalogEvent{
		testEvent("us1", true),
		testEvent("us2", false),
	}))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, []byte("us2"), w.msgs[1].Key)
	assert.Equal(t, []byte("false"), w.msgs[1].Headers[0].Value)
	assert.Equal(t, []byte("2017-01-02T00:00:00Z"), w.msgs[1].Headers[1].Value)
}

func TestPublisher_WriteEvents_Empty(t *testing.T) {
	w := &mockWriter{}
	require.NoError(t, newTestPublisher(w).WriteEvents(context.Background(), nil))
	assert.Empty(t, w.msgs)
}

func TestPublisher_WriteEvents_Error(t *testing.T) {
	w := &mockWriter{err: errors.New("leader not available")}
	err := newTestPublisher(w).WriteEvents(context.Background(), []*domain.CatalogEvent{testEvent("us1", false)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

func TestPublisher_Close(t *testing.T) {
	w := &mockWriter{}
	require.NoError(t, newTestPublisher(w).Close())
	assert.True(t, w.closed)
}
