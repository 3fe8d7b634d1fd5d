package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/Gopher0727/bytehub/config"
	logger "github.com/Gopher0727/bytehub/middleware/log"
)

const HeaderError = "x-error"

// MessageHandler processes one consumed message.
type MessageHandler func(ctx context.Context, message *sarama.ConsumerMessage) error

// Consumer is a consumer-group member that retries failed messages and
// forwards exhausted ones to the DLQ topic.
type Consumer struct {
	consumerGroup sarama.ConsumerGroup
	config        *config.KafkaConfig
	handler       MessageHandler
	dlqProducer   *Producer
	topics        []string
	log           *logger.Logger
	ready         chan bool
	wg            sync.WaitGroup
	cancel        context.CancelFunc
}

type consumerGroupHandler struct {
	consumer *Consumer
}

func NewConsumer(cfg *config.KafkaConfig, topics []string, handler MessageHandler, log *logger.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_6_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	saramaConfig.Net.DialTimeout = 10 * time.Second
	saramaConfig.Net.ReadTimeout = 10 * time.Second
	saramaConfig.Net.WriteTimeout = 10 * time.Second
	saramaConfig.Metadata.Retry.Max = 3
	saramaConfig.Metadata.Retry.Backoff = 250 * time.Millisecond
	saramaConfig.Metadata.Timeout = 10 * time.Second

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer group: %w", err)
	}

	dlqProducer, err := NewProducer(cfg)
	if err != nil {
		consumerGroup.Close()
		return nil, fmt.Errorf("failed to create DLQ producer: %w", err)
	}

	return newConsumer(consumerGroup, dlqProducer, cfg, topics, handler, log), nil
}

func newConsumer(group sarama.ConsumerGroup, dlq *Producer, cfg *config.KafkaConfig, topics []string, handler MessageHandler, log *logger.Logger) *Consumer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Consumer{
		consumerGroup: group,
		config:        cfg,
		handler:       handler,
		dlqProducer:   dlq,
		topics:        topics,
		log:           log,
		ready:         make(chan bool),
	}
}

// Start joins the group in the background and returns once the first
// session is set up or ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		handler := &consumerGroupHandler{consumer: c}
		for {
			if ctx.Err() != nil {
				return
			}
			if err := c.consumerGroup.Consume(ctx, c.topics, handler); err != nil {
				c.log.ErrorContext(ctx, "kafka consume failed", zap.Error(err))
			}
			if ctx.Err() != nil {
				return
			}
			c.ready = make(chan bool)
		}
	}()

	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	if err := c.consumerGroup.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer group: %w", err)
	}
	if err := c.dlqProducer.Close(); err != nil {
		return fmt.Errorf("failed to close DLQ producer: %w", err)
	}
	return nil
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.consumer.ready)
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}
			h.consumer.handle(session.Context(), message)
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

// handle runs the handler with retries and routes the message to the DLQ
// once retries are exhausted.
func (c *Consumer) handle(ctx context.Context, message *sarama.ConsumerMessage) {
	err := c.processMessageWithRetry(ctx, message)
	if err == nil {
		return
	}
	if dlqErr := c.sendToDLQ(ctx, message, err); dlqErr != nil {
		c.log.ErrorContext(ctx, "failed to send message to DLQ",
			zap.String("topic", message.Topic),
			zap.Int64("offset", message.Offset),
			zap.Error(dlqErr),
		)
	}
}

func (c *Consumer) processMessageWithRetry(ctx context.Context, message *sarama.ConsumerMessage) error {
	maxRetries := c.config.Consumer.MaxRetries
	backoff := time.Duration(c.config.Consumer.RetryBackoffMs) * time.Millisecond

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := c.handler(ctx, message)
		if err == nil {
			return nil
		}
		lastErr = err
		c.log.WarnContext(ctx, "kafka message handling failed",
			zap.String("topic", message.Topic),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		if attempt < maxRetries {
			if err := sleepCtx(ctx, backoff); err != nil {
				return err
			}
			backoff *= 2
		}
	}
	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

func (c *Consumer) sendToDLQ(ctx context.Context, message *sarama.ConsumerMessage, processingErr error) error {
	header := sarama.RecordHeader{Key: []byte(HeaderError), Value: []byte(processingErr.Error())}
	_, _, err := c.dlqProducer.Produce(ctx, c.config.Topics.DLQ, message.Key, message.Value, header)
	if err != nil {
		return fmt.Errorf("failed to send message to DLQ: %w", err)
	}

	c.log.WarnContext(ctx, "message sent to DLQ",
		zap.String("topic", message.Topic),
		zap.Int32("partition", message.Partition),
		zap.Int64("offset", message.Offset),
		zap.Error(processingErr),
	)
	return nil
}

func (c *Consumer) Ready() <-chan bool {
	return c.ready
}
