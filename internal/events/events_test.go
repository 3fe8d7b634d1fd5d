package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/bytehub/config"
	"github.com/Gopher0727/bytehub/internal/pkg/kafka"
	"github.com/Gopher0727/bytehub/internal/utils"
	logger "github.com/Gopher0727/bytehub/middleware/log"
)

type grantCall struct {
	userID, membershipID string
	count                int
}

type fakeGranter struct {
	mu    sync.Mutex
	calls []grantCall
	err   error
}

func (f *fakeGranter) GrantInitialBoosts(ctx context.Context, userID, membershipID string, count int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, grantCall{userID, membershipID, count})
	if f.err != nil {
		return 0, f.err
	}
	return count, nil
}

func sampleEvent() MembershipGranted {
	return MembershipGranted{
		MembershipID:  "m1",
		UserID:        "u1",
		TierID:        "t1",
		InitialBoosts: 2,
		GrantedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestDecodeMembershipGranted(t *testing.T) {
	payload, err := sampleEvent().Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"membership_id":"m1","user_id":"u1","tier_id":"t1","initial_boosts":2,"granted_at":"2026-03-01T12:00:00Z"}`, string(payload))

	evt, err := DecodeMembershipGranted(payload)
	require.NoError(t, err)
	assert.Equal(t, sampleEvent(), evt)

	_, err = DecodeMembershipGranted([]byte(`{"user_id":"u1"}`))
	assert.Error(t, err)

	_, err = DecodeMembershipGranted([]byte(`not json`))
	assert.Error(t, err)
}

func TestKafkaPublisher(t *testing.T) {
	cfg := &config.KafkaConfig{Producer: config.ProducerConfig{RetryBackoffMs: 1}}

	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, _ := msg.Key.Encode()
		if string(key) != "u1" {
			return errors.New("event must be keyed by user id")
		}
		if msg.Topic != "membership" {
			return errors.New("wrong topic")
		}
		return nil
	})

	pub := NewKafkaPublisher(kafka.NewProducerWith(sp, cfg), "membership", 0)
	require.NoError(t, pub.PublishMembershipGranted(context.Background(), sampleEvent()))
	require.NoError(t, sp.Close())
}

func TestKafkaPublisher_Failure(t *testing.T) {
	cfg := &config.KafkaConfig{Producer: config.ProducerConfig{RetryBackoffMs: 1}}

	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrNotEnoughReplicas)

	pub := NewKafkaPublisher(kafka.NewProducerWith(sp, cfg), "membership", 0)
	err := pub.PublishMembershipGranted(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, sarama.ErrNotEnoughReplicas)
	require.NoError(t, sp.Close())
}

func TestMembershipGrantedHandler(t *testing.T) {
	granter := &fakeGranter{}
	handler := NewMembershipGrantedHandler(granter, logger.NewNop())

	payload, err := sampleEvent().Encode()
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), &sarama.ConsumerMessage{Value: payload}))
	require.Len(t, granter.calls, 1)
	assert.Equal(t, grantCall{"u1", "m1", 2}, granter.calls[0])

	assert.Error(t, handler(context.Background(), &sarama.ConsumerMessage{Value: []byte("{")}))

	granter.err = errors.New("db down")
	assert.Error(t, handler(context.Background(), &sarama.ConsumerMessage{Value: payload}))
}

func TestLocalPublisher(t *testing.T) {
	granter := &fakeGranter{}
	pub := NewLocalPublisher(utils.InlineExecutor{}, granter, nil)

	ctx := logger.WithTraceID(context.Background(), "trace-1")
	require.NoError(t, pub.PublishMembershipGranted(ctx, sampleEvent()))
	require.Len(t, granter.calls, 1)
	assert.Equal(t, grantCall{"u1", "m1", 2}, granter.calls[0])

	// handler failures are logged, not returned
	granter.err = errors.New("db down")
	assert.NoError(t, pub.PublishMembershipGranted(ctx, sampleEvent()))
}

func TestLocalPublisher_WorkerPool(t *testing.T) {
	granter := &fakeGranter{}
	pool := utils.NewWorkerPool(2, 8, nil)
	pool.Start()
	pub := NewLocalPublisher(pool, granter, nil)

	for range 5 {
		require.NoError(t, pub.PublishMembershipGranted(context.Background(), sampleEvent()))
	}
	pool.Stop()

	granter.mu.Lock()
	defer granter.mu.Unlock()
	assert.Len(t, granter.calls, 5)
}
