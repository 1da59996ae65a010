package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pitaka.app/internal/bank"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func sampleEvent() bank.Event {
	return bank.Event{
		Type:       bank.EventDeposit,
		Reference:  "TXN17170000000001234",
		OwnerID:    "owner-1",
		AccountID:  "acc-1",
		Amount:     bank.Pesos(1500),
		OccurredAt: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestKafkaPublisherKeysByOwner(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisherWithWriter(w)

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "owner-1", string(msg.Key))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "deposit", decoded["type"])
	assert.Equal(t, 1500.0, decoded["amount"])
	assert.Equal(t, "event_type", msg.Headers[0].Key)
}

type recording struct {
	got []bank.Event
	err error
}

func (r *recording) Publish(_ context.Context, evt bank.Event) error {
	r.got = append(r.got, evt)
	return r.err
}

func TestMultiDeliversToAllSinks(t *testing.T) {
	broken := &recording{err: errors.New("broker down")}
	healthy := &recording{}
	var failed []string
	m := NewMulti(nil, func(s string) { failed = append(failed, s) },
		Sink{Name: "kafka", Publisher: broken},
		Sink{Name: "stream", Publisher: healthy},
	)

	err := m.Publish(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka")
	assert.Len(t, healthy.got, 1)
	assert.Equal(t, []string{"kafka"}, failed)
}
