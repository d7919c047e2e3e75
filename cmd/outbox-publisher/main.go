package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/abdulbasit0-UI/storefront-backend/internal/bootstrap"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/config"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/kafka"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/metrics"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/outbox"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/outbox/registry"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/pubsub"
)

type closingSink interface {
	sink
	io.Closer
}

func main() {
	requeue := flag.String("requeue", "", "move a dead-lettered event id back to the outbox and exit")
	flag.Parse()

	ctx := context.Background()
	rt := bootstrap.NewRuntime("outbox-publisher")
	rt.Must(ctx, "startup", rt.Open(ctx, bootstrap.NeedDB))
	cfg, conn := rt.Config, rt.DB.DB()
	dlq := outbox.NewDLQRepository(conn)

	if *requeue != "" {
		rt.Must(ctx, "requeue", requeueDeadLetter(ctx, dlq, *requeue))
		rt.Logger.Info(rt.Logger.WithField(ctx, "event_id", *requeue), "dead letter requeued")
		rt.Shutdown(ctx)
		return
	}

	transport, topics, err := openTransport(ctx, cfg, rt.Logger)
	rt.Must(ctx, "transport", err)
	rt.OnClose("transport", transport.Close)

	events, err := registry.NewEventRegistry(topics)
	rt.Must(ctx, "event registry", err)

	publisher, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        rt.Logger,
		DB:            rt.DB,
		Sink:          transport,
		Repository:    outbox.NewRepository(conn),
		Registry:      events,
		DLQRepository: dlq,
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	rt.Must(ctx, "outbox publisher", err)

	runCtx, stop := rt.SignalContext(map[string]any{"transport": cfg.Outbox.Transport})
	defer stop()
	rt.ServeWorkerMetrics(runCtx)
	rt.Logger.Info(runCtx, "starting outbox publisher")

	if err := publisher.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Must(runCtx, "publish loop", err)
	}
	rt.Shutdown(runCtx)
}

func openTransport(ctx context.Context, cfg *config.Config, logg *logger.Logger) (closingSink, registry.Topics, error) {
	if cfg.Outbox.Transport == config.OutboxTransportKafka {
		s, err := kafka.NewSink(cfg.Kafka, logg)
		if err != nil {
			return nil, registry.Topics{}, err
		}
		return s, registry.Topics{Orders: cfg.Kafka.OrdersTopic, Carts: cfg.Kafka.CartsTopic}, nil
	}

	client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return nil, registry.Topics{}, err
	}
	s, err := pubsub.NewSink(client)
	if err != nil {
		return nil, registry.Topics{}, errors.Join(err, client.Close())
	}
	return &pubsubTransport{Sink: s, client: client}, registry.Topics{Orders: cfg.PubSub.OrdersTopic, Carts: cfg.PubSub.CartsTopic}, nil
}

// pubsubTransport stops the publishers before the client they share.
type pubsubTransport struct {
	*pubsub.Sink
	client *pubsub.Client
}

func (t *pubsubTransport) Close() error {
	return errors.Join(t.Sink.Close(), t.client.Close())
}

func requeueDeadLetter(ctx context.Context, dlq *outbox.DLQRepository, raw string) error {
	eventID, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse event id: %w", err)
	}
	return dlq.Requeue(ctx, eventID)
}
