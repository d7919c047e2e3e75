package main

import (
	"context"
	"errors"

	"github.com/abdulbasit0-UI/storefront-backend/internal/analytics/router"
	"github.com/abdulbasit0-UI/storefront-backend/internal/analytics/worker"
	"github.com/abdulbasit0-UI/storefront-backend/internal/analytics/writer"
	"github.com/abdulbasit0-UI/storefront-backend/internal/bootstrap"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/bigquery"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/config"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/idempotency"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/kafka"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/pubsub"
)

func main() {
	ctx := context.Background()
	rt := bootstrap.NewRuntime("analytics-worker")
	rt.Must(ctx, "startup", rt.Open(ctx, bootstrap.NeedRedis))
	cfg, logg := rt.Config, rt.Logger

	bq, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	rt.Must(ctx, "bigquery client", err)
	rt.OnClose("bigquery", bq.Close)

	source, err := openSource(ctx, rt)
	rt.Must(ctx, "analytics source", err)

	guard, err := idempotency.NewGuard(rt.Redis, worker.ConsumerName, cfg.Eventing.OutboxIdempotencyTTL)
	rt.Must(ctx, "idempotency guard", err)

	sink, err := writer.New(bq, writer.Config{OrdersTable: cfg.BigQuery.OrdersTable})
	rt.Must(ctx, "bigquery writer", err)

	routes, err := router.NewRouter(sink, logg)
	rt.Must(ctx, "analytics router", err)

	consumer, err := worker.NewService(source, routes, guard, logg)
	rt.Must(ctx, "analytics consumer", err)

	runCtx, stop := rt.SignalContext(map[string]any{"transport": cfg.Outbox.Transport})
	defer stop()
	rt.ServeWorkerMetrics(runCtx)
	logg.Info(runCtx, "analytics worker ready")

	if err := consumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Must(runCtx, "analytics consumer loop", err)
	}
	rt.Shutdown(runCtx)
}

// openSource reads from whichever transport the outbox publisher writes to
// and registers its teardown with rt.
func openSource(ctx context.Context, rt *bootstrap.Runtime) (worker.Source, error) {
	cfg := rt.Config
	if cfg.Outbox.Transport == config.OutboxTransportKafka {
		reader, err := kafka.NewReader(cfg.Kafka, cfg.Kafka.OrdersTopic)
		if err != nil {
			return nil, err
		}
		rt.OnClose("kafka reader", reader.Close)
		return worker.NewKafkaSource(reader, rt.Logger, 0, 0)
	}

	client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, rt.Logger)
	if err != nil {
		return nil, err
	}
	rt.OnClose("pubsub", client.Close)
	subscription, err := client.OrdersSubscription(ctx)
	if err != nil {
		return nil, err
	}
	return worker.NewPubSubSource(subscription)
}
