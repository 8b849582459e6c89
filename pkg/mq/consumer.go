package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"milletsmon/pkg/otel"
	"milletsmon/pkg/trace"
)

type MessageHandler func(ctx context.Context, data json.RawMessage) error

// ConsumerOptions 队列声明参数
type ConsumerOptions struct {
	Queue      string
	RoutingKey string

	// Exclusive 声明只属于当前实例的临时队列（断开即删除），用于广播类事件
	Exclusive bool
	Prefetch  int
}

type Consumer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	queue   amqp091.Queue
	opts    ConsumerOptions
	handler MessageHandler
	logger  *zap.Logger
}

func NewConsumer(url string, opts ConsumerOptions, handler MessageHandler, logger *zap.Logger) (*Consumer, error) {
	if handler == nil {
		return nil, errors.New("consumer handler not set")
	}
	if opts.Prefetch <= 0 {
		opts.Prefetch = 16
	}

	conn, err := NewConnection(url, opts.Queue)
	if err != nil {
		return nil, err
	}
	ch, err := openChannel(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	fail := func(step string, err error) (*Consumer, error) {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to %s: %w", step, err)
	}

	if err := ch.Qos(opts.Prefetch, 0, false); err != nil {
		return fail("set qos", err)
	}
	q, err := ch.QueueDeclare(opts.Queue, !opts.Exclusive, opts.Exclusive, opts.Exclusive, false, nil)
	if err != nil {
		return fail("declare queue", err)
	}
	if err := ch.QueueBind(q.Name, opts.RoutingKey, ExchangeName, false, nil); err != nil {
		return fail("bind queue", err)
	}

	logger.Info("Consumer initialized",
		zap.String("routing_key", opts.RoutingKey),
		zap.String("queue", q.Name),
		zap.Bool("exclusive", opts.Exclusive),
		zap.Int("prefetch", opts.Prefetch),
	)

	return &Consumer{
		conn:    conn,
		channel: ch,
		queue:   q,
		opts:    opts,
		handler: handler,
		logger:  logger,
	}, nil
}

// IsConnected 连接是否仍然可用
func (c *Consumer) IsConnected() bool {
	return c.conn != nil && !c.conn.IsClosed()
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming 阻塞直到 ctx 结束或 delivery channel 关闭，需要放在 goroutine 里调用
func (c *Consumer) StartConsuming(ctx context.Context) error {
	deliveries, err := c.channel.Consume(c.queue.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("routing_key", c.opts.RoutingKey),
		zap.String("queue", c.queue.Name),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.handle(ctx, msg)
		}
	}
}

// shouldRequeue 解析失败的消息重投也不会成功；其余错误只重投一次
func shouldRequeue(err error, redelivered bool) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return false
	}
	return !redelivered
}

// handle 保证每条消息都会被 ack 或 nack；MessageId 作为 trace_id 带进 handler
func (c *Consumer) handle(ctx context.Context, msg amqp091.Delivery) {
	if msg.MessageId != "" {
		ctx = trace.WithContext(ctx, msg.MessageId)
	}
	ctx, span := otel.ConsumeSpan(ctx, c.queue.Name, msg.RoutingKey, msg.Headers)
	defer span.End()
	log := c.logger.With(
		zap.String("routing_key", msg.RoutingKey),
		zap.String("message_id", msg.MessageId),
		zap.String("app_id", msg.AppId),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Handler panic recovered", zap.Any("panic", r))
			if err := msg.Nack(false, false); err != nil {
				log.Error("Failed to nack message after panic", zap.Error(err))
			}
		}
	}()

	if err := c.handler(ctx, msg.Body); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		requeue := shouldRequeue(err, msg.Redelivered)
		log.Error("Handler error", zap.Bool("requeue", requeue), zap.Error(err))
		if err := msg.Nack(false, requeue); err != nil {
			log.Error("Failed to nack message", zap.Error(err))
		}
		return
	}

	if err := msg.Ack(false); err != nil {
		log.Error("Failed to ack message", zap.Error(err))
	}
}
