package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/turf-booking/internal/logging"
	"github.com/iliyamo/turf-booking/internal/notify"
)

// DefaultPublishTimeout bounds one publish, dial to confirm.
const DefaultPublishTimeout = 5 * time.Second

// Publisher sends booking events to RabbitMQ.  It opens a connection per
// message, which is plenty for the confirmation rate of a single venue.
// Every publish is bounded by Timeout and by the caller's context, so a
// broker outage cannot wedge request handlers.
type Publisher struct {
	url     string
	Timeout time.Duration
}

// NewPublisher returns a publisher for the broker at url.
func NewPublisher(url string) *Publisher {
	return &Publisher{url: url, Timeout: DefaultPublishTimeout}
}

// BookingConfirmed implements notify.Notifier by queueing the message for
// the mail consumer.
func (p *Publisher) BookingConfirmed(ctx context.Context, msg notify.BookingConfirmation) error {
	return p.PublishBookingConfirmed(ctx, EventFromConfirmation(msg))
}

// PublishBookingConfirmed publishes a persistent BookingConfirmedEvent to the
// booking.confirmed queue.  Errors are logged and returned so the caller can
// choose to ignore them.
func (p *Publisher) PublishBookingConfirmed(ctx context.Context, event BookingConfirmedEvent) error {
	log := logging.FromContext(ctx).WithField("booking_id", event.BookingCode)

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	deadline, _ := ctx.Deadline()

	// The handshake cannot watch ctx, so it gets the remaining time as its
	// deadline.  Afterwards closing the connection unblocks channel calls.
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Locale: "en_US",
		Dial:   amqp.DefaultDial(time.Until(deadline)),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		log.WithError(err).Warn("rabbitmq: dial failed")
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.WithError(err).Warn("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if err := declare(ch); err != nil {
		log.WithError(err).Warn("rabbitmq: queue declare failed")
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",                    // default exchange
		BookingConfirmedQueue, // routing key = queue name
		false,                 // mandatory
		false,                 // immediate
		pub,
	); err != nil {
		log.WithError(err).Warn("rabbitmq: publish failed")
		return err
	}
	return nil
}

// declare makes sure the durable queue exists.
func declare(ch *amqp.Channel) error {
	_, err := ch.QueueDeclare(
		BookingConfirmedQueue, // name
		true,                  // durable
		false,                 // autoDelete
		false,                 // exclusive
		false,                 // noWait
		nil,                   // args
	)
	return err
}
