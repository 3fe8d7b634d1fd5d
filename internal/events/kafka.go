package events

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/Gopher0727/bytehub/internal/pkg/kafka"
	"github.com/Gopher0727/bytehub/internal/pkg/metrics"
	logger "github.com/Gopher0727/bytehub/middleware/log"
)

// KafkaPublisher writes events to a topic keyed by user id so one user's
// events stay ordered on a partition.
type KafkaPublisher struct {
	producer   *kafka.Producer
	topic      string
	maxRetries int
}

func NewKafkaPublisher(producer *kafka.Producer, topic string, maxRetries int) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, maxRetries: maxRetries}
}

func (p *KafkaPublisher) PublishMembershipGranted(ctx context.Context, evt MembershipGranted) error {
	payload, err := evt.Encode()
	if err != nil {
		return err
	}
	if _, _, err := p.producer.ProduceWithRetry(ctx, p.topic, []byte(evt.UserID), payload, p.maxRetries); err != nil {
		metrics.EventsPublished.WithLabelValues(TypeMembershipGranted, "error").Inc()
		return fmt.Errorf("failed to publish %s: %w", TypeMembershipGranted, err)
	}
	metrics.EventsPublished.WithLabelValues(TypeMembershipGranted, "ok").Inc()
	return nil
}

// NewMembershipGrantedHandler adapts a BoostGranter to a Kafka message
// handler. Undecodable messages fail every retry and end up in the DLQ.
func NewMembershipGrantedHandler(granter BoostGranter, log *logger.Logger) kafka.MessageHandler {
	return func(ctx context.Context, message *sarama.ConsumerMessage) error {
		evt, err := DecodeMembershipGranted(message.Value)
		if err != nil {
			return err
		}
		created, err := granter.GrantInitialBoosts(ctx, evt.UserID, evt.MembershipID, evt.InitialBoosts)
		if err != nil {
			return err
		}
		log.InfoContext(ctx, "initial boosts granted",
			zap.String("user_id", evt.UserID),
			zap.String("membership_id", evt.MembershipID),
			zap.Int("created", created),
		)
		return nil
	}
}
