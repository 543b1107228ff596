package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ymaeda2106/Stall-Order-System/internal/order/application"
	"github.com/ymaeda2106/Stall-Order-System/internal/order/domain"
	"github.com/ymaeda2106/Stall-Order-System/pkg/idempotency"
	"github.com/ymaeda2106/Stall-Order-System/pkg/tracing"
)

// Consumer feeds order events published by any instance back into this
// instance's stream bus, so every SSE client sees changes no matter
// which replica served the write. Each instance joins its own consumer
// group and therefore receives every message.
type Consumer struct {
	log    *slog.Logger
	reader *kafka.Reader
	svc    *application.Service
	idem   idempotency.Marker
	tracer trace.Tracer
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, svc *application.Service, idem idempotency.Marker) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &Consumer{
		log:    log,
		reader: r,
		svc:    svc,
		idem:   idem,
		tracer: otel.Tracer("order-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		key := idempotency.MessageKey(msg.Topic, msg.Partition, msg.Offset)
		seen, err := c.idem.Seen(ctx, key)
		if err != nil {
			c.log.Error("idempotency check failed", "err", err)
			continue
		}
		if seen {
			c.log.Debug("duplicate message skipped", "key", key)
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		c.handle(ctx, msg)
		_ = c.reader.CommitMessages(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeOrderEvent")
	defer span.End()

	eventType := headerValue(msg.Headers, "event_type")
	switch eventType {
	case domain.EventOrderCreated:
		var event domain.OrderCreated
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.log.Error("decode order created event", "err", err)
			return
		}
		if err := c.svc.Republish(msgCtx, event.OrderID, true); err != nil {
			c.log.Error("republish created order", "order_id", event.OrderID, "err", err)
		}
	case domain.EventOrderUpdated:
		var event domain.OrderUpdated
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.log.Error("decode order updated event", "err", err)
			return
		}
		if err := c.svc.Republish(msgCtx, event.OrderID, false); err != nil {
			c.log.Error("republish updated order", "order_id", event.OrderID, "err", err)
		}
	default:
		c.log.Warn("unknown event type skipped", "event_type", eventType)
	}
}

func headerValue(h []kafka.Header, key string) string {
	for _, hh := range h {
		if hh.Key == key {
			return string(hh.Value)
		}
	}
	return ""
}
