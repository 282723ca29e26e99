package notifier

import (
	"auction-engine/internal/models"
	"auction-engine/utils"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Queue names consumed by the notification workers
const (
	BidPlacedQueue    = "auction.bid_placed"
	AuctionEndedQueue = "auction.ended"
)

// Redial backoff after a failed connect
const (
	minRedialBackoff = time.Second
	maxRedialBackoff = 30 * time.Second
)

// amqpChannel is the part of *amqp.Channel the publisher needs
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// amqpSession is a live connection and its publishing channel
type amqpSession struct {
	ch   amqpChannel
	conn io.Closer
}

func (s *amqpSession) close() {
	_ = s.ch.Close()
	_ = s.conn.Close()
}

type amqpDialer func() (*amqpSession, error)

// AMQPPublisher publishes events as persistent JSON messages to durable
// RabbitMQ queues. One channel is shared and guarded by a mutex. A closed
// channel or connection is replaced on the next publish; failed redials back
// off up to maxRedialBackoff.
type AMQPPublisher struct {
	mu       sync.Mutex
	dial     amqpDialer
	session  *amqpSession
	now      func() time.Time
	backoff  time.Duration
	nextDial time.Time
}

// DialAMQP connects to the broker and declares the event queues
func DialAMQP(url string) (*AMQPPublisher, error) {
	p := newAMQPPublisher(func() (*amqpSession, error) { return openAMQP(url) }, time.Now)

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.channelLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func newAMQPPublisher(dial amqpDialer, now func() time.Time) *AMQPPublisher {
	return &AMQPPublisher{dial: dial, now: now, backoff: minRedialBackoff}
}

// openAMQP dials, opens a channel and declares the queues. Close reasons are
// logged as they arrive; the publisher notices closure through IsClosed.
func openAMQP(url string) (*amqpSession, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: channel open: %w", err)
	}
	for _, q := range []string{BidPlacedQueue, AuctionEndedQueue} {
		// durable, not auto-deleted, not exclusive
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("rabbitmq: declare %s: %w", q, err)
		}
	}

	connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		select {
		case reason := <-connClosed:
			if reason != nil {
				utils.Warn("rabbitmq: connection closed", map[string]any{"code": reason.Code, "reason": reason.Reason})
			}
		case reason := <-chClosed:
			if reason != nil {
				utils.Warn("rabbitmq: channel closed", map[string]any{"code": reason.Code, "reason": reason.Reason})
			}
		}
	}()

	return &amqpSession{ch: ch, conn: conn}, nil
}

func (p *AMQPPublisher) NewBidPlaced(ctx context.Context, event models.NewBidPlacedEvent) error {
	return p.publish(ctx, BidPlacedQueue, "NewBidPlaced", event)
}

func (p *AMQPPublisher) AuctionEnded(ctx context.Context, event models.AuctionEndedEvent) error {
	return p.publish(ctx, AuctionEndedQueue, "AuctionEnded", event)
}

func (p *AMQPPublisher) publish(ctx context.Context, queue, eventType string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal %s: %w", eventType, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    utils.NewEventID(),
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// a channel that died since the last publish gets one fresh session
	for attempt := 1; ; attempt++ {
		ch, err := p.channelLocked()
		if err != nil {
			return fmt.Errorf("rabbitmq: publish %s: %w", eventType, err)
		}
		// default exchange, routing key = queue name
		err = ch.PublishWithContext(ctx, "", queue, false, false, msg)
		if err == nil {
			return nil
		}
		utils.Warn("rabbitmq: publish failed", utils.ErrFields(err, map[string]any{"queue": queue, "attempt": attempt}))

		if !errors.Is(err, amqp.ErrClosed) && !ch.IsClosed() {
			return fmt.Errorf("rabbitmq: publish %s: %w", eventType, err)
		}
		p.dropLocked()
		if attempt == 2 {
			return fmt.Errorf("rabbitmq: publish %s: %w", eventType, err)
		}
	}
}

// channelLocked returns a usable channel, redialing when the current one is gone
func (p *AMQPPublisher) channelLocked() (amqpChannel, error) {
	if p.session != nil && !p.session.ch.IsClosed() {
		return p.session.ch, nil
	}
	p.dropLocked()

	if now := p.now(); now.Before(p.nextDial) {
		return nil, fmt.Errorf("rabbitmq: reconnect backing off until %s: %w", p.nextDial.Format(time.RFC3339), amqp.ErrClosed)
	}

	session, err := p.dial()
	if err != nil {
		p.nextDial = p.now().Add(p.backoff)
		utils.Warn("rabbitmq: reconnect failed", utils.ErrFields(err, map[string]any{"retry_in": p.backoff.String()}))
		if p.backoff < maxRedialBackoff {
			p.backoff *= 2
			if p.backoff > maxRedialBackoff {
				p.backoff = maxRedialBackoff
			}
		}
		return nil, err
	}

	p.session = session
	p.backoff = minRedialBackoff
	p.nextDial = time.Time{}
	return session.ch, nil
}

func (p *AMQPPublisher) dropLocked() {
	if p.session == nil {
		return
	}
	p.session.close()
	p.session = nil
}

// Close releases the channel and the connection
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return nil
	}
	_ = p.session.ch.Close()
	err := p.session.conn.Close()
	p.session = nil
	return err
}
