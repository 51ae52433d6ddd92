package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/goeconomy/internal/domain"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublisherKeysByMarket(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{writer: w}

	event := domain.Event{
		ID:         "evt-1",
		Kind:       domain.EventTrade,
		Owners:     []string{"alice", "bob"},
		Currency:   "COINS",
		ItemID:     "sword",
		Amount:     decimal.NewFromInt(60),
		Quantity:   2,
		OccurredAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.Publish(context.Background(), event))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "sword/COINS", string(msg.Key))
	assert.Equal(t, event.OccurredAt, msg.Time)
	assert.Equal(t, "trade.executed", string(msg.Headers[0].Value))

	var decoded domain.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "evt-1", decoded.ID)
	assert.True(t, decoded.Amount.Equal(decimal.NewFromInt(60)))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublisherReturnsWriterError(t *testing.T) {
	brokerErr := errors.New("leader not available")
	p := &Publisher{writer: &fakeWriter{err: brokerErr}}

	err := p.Publish(context.Background(), domain.Event{ID: "evt-1", Kind: domain.EventTransfer, Owners: []string{"alice"}})
	assert.ErrorIs(t, err, brokerErr)
}
