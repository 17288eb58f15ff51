package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"spendwise/internal/logger"
)

// AMQPQueue is a WorkQueue on a durable RabbitMQ queue bound to a direct
// exchange. Deliveries are acked manually; failed items are republished
// with an incremented attempt until maxAttempts, then rejected. Throttled
// items are republished after their delay with the attempt unchanged.
type AMQPQueue struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
	prefetch     int
	maxAttempts  int
	log          *zap.SugaredLogger

	publishMu sync.Mutex
}

// NewAMQPQueue dials url and declares the exchange, queue and binding.
func NewAMQPQueue(url, exchangeName, queueName string, prefetch, maxAttempts int) (*AMQPQueue, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if prefetch <= 0 {
		prefetch = 1
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	q := &AMQPQueue{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
		prefetch:     prefetch,
		maxAttempts:  maxAttempts,
		log:          logger.Named("amqp-queue"),
	}

	if err := q.setup(); err != nil {
		q.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return q, nil
}

func (q *AMQPQueue) setup() error {
	err := q.channel.ExchangeDeclare(
		q.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = q.channel.QueueDeclare(
		q.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := q.channel.QueueBind(q.queueName, q.queueName, q.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	if err := q.channel.Qos(q.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	return nil
}

// Enqueue publishes each item as a persistent JSON message.
func (q *AMQPQueue) Enqueue(ctx context.Context, items ...WorkItem) error {
	for _, item := range items {
		if err := q.publish(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (q *AMQPQueue) publish(ctx context.Context, item WorkItem) error {
	body, err := item.Marshal()
	if err != nil {
		return fmt.Errorf("marshal work item: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	q.publishMu.Lock()
	defer q.publishMu.Unlock()

	err = q.channel.PublishWithContext(
		ctx,
		q.exchangeName, // exchange
		q.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			MessageId:    item.ID,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish work item: %w", err)
	}

	q.log.Debugw("published work item",
		"item_id", item.ID,
		"transaction_id", item.TransactionID,
		"attempt", item.Attempt,
	)
	return nil
}

// Consume hands deliveries to up to prefetch concurrent handlers until ctx
// is cancelled, then waits for in-flight deliveries.
func (q *AMQPQueue) Consume(ctx context.Context, handler Handler) error {
	msgs, err := q.channel.Consume(
		q.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	q.log.Infow("started consuming work items", "queue", q.queueName, "concurrency", q.prefetch)

	var g errgroup.Group
	g.SetLimit(q.prefetch)
	for {
		select {
		case <-ctx.Done():
			q.log.Infow("stopping consumption", "reason", ctx.Err())
			_ = g.Wait()
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				_ = g.Wait()
				return fmt.Errorf("delivery channel closed")
			}
			g.Go(func() error {
				q.deliver(ctx, handler, delivery)
				return nil
			})
		}
	}
}

func (q *AMQPQueue) deliver(ctx context.Context, handler Handler, delivery amqp091.Delivery) {
	item, err := UnmarshalWorkItem(delivery.Body)
	if err != nil {
		q.log.Errorw("rejecting malformed work item", "error", err)
		_ = delivery.Nack(false, false)
		return
	}

	err = handler(ctx, item)
	if err == nil {
		_ = delivery.Ack(false)
		return
	}

	if delay, ok := throttleDelay(err); ok {
		// Ack now so the delivery does not hold a prefetch slot while parked.
		_ = delivery.Ack(false)
		q.park(ctx, item, delay)
		return
	}

	item.Attempt++
	if item.Attempt >= q.maxAttempts {
		q.log.Errorw("work item failed, giving up",
			"item_id", item.ID,
			"transaction_id", item.TransactionID,
			"attempts", item.Attempt,
			"error", err,
		)
		_ = delivery.Nack(false, false)
		return
	}

	if pubErr := q.publish(ctx, item); pubErr != nil {
		q.log.Errorw("failed to republish work item, requeueing delivery",
			"item_id", item.ID,
			"error", pubErr,
		)
		_ = delivery.Nack(false, true)
		return
	}
	_ = delivery.Ack(false)
}

// park republishes a throttled item after delay. An item lost to shutdown
// leaves its transaction due, so the next recurring sweep dispatches it
// again.
func (q *AMQPQueue) park(ctx context.Context, item WorkItem, delay time.Duration) {
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			q.log.Warnw("dropping throttled work item", "item_id", item.ID, "transaction_id", item.TransactionID)
			return
		}
		if err := q.publish(ctx, item); err != nil {
			q.log.Errorw("failed to republish throttled work item", "item_id", item.ID, "error", err)
		}
	}()
}

// Close closes the channel and the connection.
func (q *AMQPQueue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
