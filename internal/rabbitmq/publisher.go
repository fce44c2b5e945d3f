package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ariefcatur/go-order-inventory/internal/orders"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	dialAttempts = 5
	maxRedialGap = 30 * time.Second
)

var ErrNotConnected = errors.New("rabbitmq not connected")

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// session is one live connection with its channel. closed fires when the
// broker drops the connection.
type session struct {
	conn   io.Closer
	ch     channel
	closed <-chan *amqp.Error
}

type dialFunc func() (*session, error)

// Publisher sends one JSON message per order event to a durable queue
// through the default exchange. When the connection drops it redials in the
// background; events published meanwhile fail with ErrNotConnected.
type Publisher struct {
	dial  dialFunc
	queue string
	log   *zap.SugaredLogger

	mu   sync.Mutex // amqp channels are not safe for concurrent publishing
	sess *session

	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// Dial connects to RabbitMQ, retrying with a growing delay, and declares the
// queue.
func Dial(ctx context.Context, url, queue string, log *zap.SugaredLogger) (*Publisher, error) {
	dial := func() (*session, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, err
		}
		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("open channel: %w", err)
		}
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("declare queue %s: %w", queue, err)
		}
		return &session{conn: conn, ch: ch, closed: conn.NotifyClose(make(chan *amqp.Error, 1))}, nil
	}
	return connect(ctx, dial, queue, log)
}

func connect(ctx context.Context, dial dialFunc, queue string, log *zap.SugaredLogger) (*Publisher, error) {
	var (
		s   *session
		err error
	)
	for i := 0; i < dialAttempts; i++ {
		s, err = dial()
		if err == nil {
			break
		}
		wait := backoff(i)
		log.Warnw("rabbitmq dial failed, retrying", "attempt", i+1, "wait", wait, "err", err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq after %d attempts: %w", dialAttempts, err)
	}

	p := &Publisher{
		dial:    dial,
		queue:   queue,
		log:     log,
		sess:    s,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go p.watch()
	return p, nil
}

func backoff(attempt int) time.Duration {
	return min(time.Duration(attempt*attempt)*time.Second+time.Second, maxRedialGap)
}

// watch replaces the session whenever the broker closes it, until Close.
func (p *Publisher) watch() {
	defer close(p.stopped)
	for {
		p.mu.Lock()
		s := p.sess
		p.mu.Unlock()

		select {
		case <-p.done:
			return
		case amqpErr := <-s.closed:
			p.log.Warnw("rabbitmq connection lost, redialing", "queue", p.queue, "err", amqpErr)
			p.mu.Lock()
			p.sess = nil
			p.mu.Unlock()
			_ = s.ch.Close()
			_ = s.conn.Close()

			next, ok := p.redial()
			if !ok {
				return
			}
			p.mu.Lock()
			p.sess = next
			p.mu.Unlock()
			p.log.Infow("rabbitmq reconnected", "queue", p.queue)
		}
	}
}

func (p *Publisher) redial() (*session, bool) {
	for i := 0; ; i++ {
		s, err := p.dial()
		if err == nil {
			return s, true
		}
		wait := backoff(i)
		p.log.Warnw("rabbitmq redial failed", "attempt", i+1, "wait", wait, "err", err)
		select {
		case <-time.After(wait):
		case <-p.done:
			return nil, false
		}
	}
}

func (p *Publisher) Publish(ctx context.Context, ev orders.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sess == nil {
		return fmt.Errorf("publish to queue %s: %w", p.queue, ErrNotConnected)
	}
	err = p.sess.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Type:         ev.Action,
		Timestamp:    ev.OccurredAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to queue %s: %w", p.queue, err)
	}
	return nil
}

// Close stops redialing and closes the current session, if any.
func (p *Publisher) Close() error {
	p.once.Do(func() { close(p.done) })
	<-p.stopped

	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.sess
	p.sess = nil
	if s == nil {
		return nil
	}
	if err := s.ch.Close(); err != nil {
		_ = s.conn.Close()
		return err
	}
	return s.conn.Close()
}
