package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tillpoint/internal/clock"
	"github.com/smallbiznis/tillpoint/internal/events/domain"
	"github.com/smallbiznis/tillpoint/internal/events/repository"
	"github.com/smallbiznis/tillpoint/internal/events/service"
	"github.com/smallbiznis/tillpoint/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []domain.Message
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, msg domain.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func setup(t *testing.T) (*gorm.DB, domain.Outbox, *recordingPublisher, *clock.FakeClock, *snowflake.Node) {
	t.Helper()
	db := dbtest.Open(t, &domain.OutboxEvent{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	pub := &recordingPublisher{}

	outbox := service.New(service.Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Repo:      repository.Provide(),
		Publisher: pub,
		Clock:     fc,
	})
	return db, outbox, pub, fc, node
}

func TestEnqueueAndRelay(t *testing.T) {
	db, outbox, pub, _, node := setup(t)
	ctx := context.Background()
	orderID := node.Generate()

	var event *domain.OutboxEvent
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		event, err = outbox.Enqueue(ctx, tx, domain.TopicOrderCreated, orderID, map[string]string{"folio": "A1B2C3D4"})
		return err
	})
	require.NoError(t, err)
	assert.Len(t, event.EventID, 26)

	res, err := outbox.Relay(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, domain.RelayResult{Sent: 1}, res)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, event.EventID, pub.msgs[0].EventID)
	assert.Equal(t, orderID.String(), pub.msgs[0].AggregateID)
	var body map[string]string
	require.NoError(t, json.Unmarshal(pub.msgs[0].Body, &body))
	assert.Equal(t, "A1B2C3D4", body["folio"])

	res, err = outbox.Relay(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, res.Sent, "sent events are not replayed")
}

func TestEnqueueRolledBackWithTransaction(t *testing.T) {
	db, outbox, pub, _, node := setup(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := outbox.Enqueue(ctx, tx, domain.TopicOrderPaid, node.Generate(), struct{}{}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	res, err := outbox.Relay(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, res.Sent)
	assert.Empty(t, pub.msgs)
}

func TestRelayBacksOffAfterFailure(t *testing.T) {
	db, outbox, pub, fc, node := setup(t)
	ctx := context.Background()

	_, err := outbox.Enqueue(ctx, db, domain.TopicOrderCancelled, node.Generate(), struct{}{})
	require.NoError(t, err)

	pub.err = errors.New("broker down")
	res, err := outbox.Relay(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)

	var stored domain.OutboxEvent
	require.NoError(t, db.First(&stored).Error)
	assert.Equal(t, 1, stored.Attempts)
	assert.Equal(t, domain.StatusPending, stored.Status)
	assert.Equal(t, "broker down", stored.LastError)

	pub.err = nil
	res, err = outbox.Relay(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, res.Sent, "not due yet")

	fc.Advance(2 * time.Second)
	res, err = outbox.Relay(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
}

func TestEnqueueValidates(t *testing.T) {
	db, outbox, _, _, node := setup(t)
	ctx := context.Background()

	_, err := outbox.Enqueue(ctx, db, " ", node.Generate(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTopic)

	_, err = outbox.Enqueue(ctx, db, domain.TopicOrderPaid, 0, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidAggregate)
}
