package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// Fill reports arrive on the ORDER_FILLS JetStream stream, one subject per
// order number: orders.fills.{order_number}. This is the external/simulated
// feed that supplies fills to the ledger.

const (
	StreamName    = "ORDER_FILLS"
	SubjectPrefix = "orders.fills"
	consumerName  = "ordertrack-fills"
)

// RawReport is an unparsed fill report from NATS, ready for the consumer
// to parse and route into the ledger.
type RawReport struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	Ack       func()
	Nak       func()
}

// Subscriber feeds raw fill reports from JetStream into the report channel.
type Subscriber struct {
	js       jetstream.JetStream
	out      chan<- RawReport
	log      zerolog.Logger
	consumer jetstream.ConsumeContext
}

func NewSubscriber(js jetstream.JetStream, out chan<- RawReport, log zerolog.Logger) *Subscriber {
	return &Subscriber{js: js, out: out, log: log}
}

// EnsureStream creates the fill-report stream if it doesn't exist.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{SubjectPrefix + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", StreamName, err)
	}
	return nil
}

// Subscribe creates a durable consumer with explicit ack and starts
// feeding the report channel.
func (s *Subscriber) Subscribe(ctx context.Context) error {
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       consumerName,
		FilterSubject: SubjectPrefix + ".>",
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		raw := RawReport{
			Subject:   msg.Subject(),
			Data:      msg.Data(),
			Timestamp: time.Now(),
			Ack:       func() { msg.Ack() },
			Nak:       func() { msg.Nak() },
		}

		select {
		case s.out <- raw:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", consumerName, err)
	}

	s.consumer = consumeCtx
	s.log.Info().Str("subject", SubjectPrefix+".>").Str("consumer", consumerName).Msg("subscribed to fill feed")
	return nil
}

// Drain stops the consumer.
func (s *Subscriber) Drain() {
	if s.consumer != nil {
		s.consumer.Drain()
	}
}

// Connect dials NATS with unlimited reconnects and returns a JetStream
// context.
func Connect(url string, log zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}
	return nc, js, nil
}
