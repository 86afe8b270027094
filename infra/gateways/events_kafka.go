package gateways

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/giovaniif/court-booking/infra"
	"github.com/giovaniif/court-booking/infra/tracing"
	protocols "github.com/giovaniif/court-booking/protocols"
)

const eventTypeHeader = "event-type"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventGatewayKafka publishes one message per event, keyed by court id so that
// events of a court keep their order within a partition.
type EventGatewayKafka struct {
	writer  messageWriter
	sleeper protocols.Sleeper
}

func NewEventGatewayKafka(brokers []string, topic string) *EventGatewayKafka {
	return newEventGatewayKafka(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 5 * time.Second,
	}, NewSleeper())
}

func newEventGatewayKafka(writer messageWriter, sleeper protocols.Sleeper) *EventGatewayKafka {
	return &EventGatewayKafka{writer: writer, sleeper: sleeper}
}

func (g *EventGatewayKafka) Publish(ctx context.Context, event protocols.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	headers := headerCarrier{{Key: eventTypeHeader, Value: []byte(event.Type)}}
	tracing.Inject(ctx, &headers)

	msg := kafka.Message{
		Key:     []byte(strconv.Itoa(event.CourtId)),
		Value:   payload,
		Headers: headers,
	}
	write := RetryWithBackoff(func(ctx context.Context) error {
		err := g.writer.WriteMessages(ctx, msg)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return infra.NewTimeoutError("kafka write")
		}
		return infra.NewUnavailableError("kafka write", err)
	}, g.sleeper)
	return write(ctx)
}

func (g *EventGatewayKafka) Close() error {
	return g.writer.Close()
}

// headerCarrier adapts kafka headers to propagation.TextMapCarrier.
type headerCarrier []kafka.Header

func (c *headerCarrier) Get(key string) string {
	for _, h := range *c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	for i, h := range *c {
		if h.Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c))
	for _, h := range *c {
		keys = append(keys, h.Key)
	}
	return keys
}
