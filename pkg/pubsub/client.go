// Package pubsub adapts Google Cloud Pub/Sub v2 to the outbox transport and
// the analytics subscription.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/config"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
)

const (
	kindTopic        = "topics"
	kindSubscription = "subscriptions"
)

var errProjectIDRequired = errors.New("gcp project id is required")

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

// NewClient dials Pub/Sub. Topics and subscriptions are checked lazily by
// the role that needs them.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	psClient, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "gcp_project", projectID), "pubsub client initialized")
	}
	return &Client{client: psClient, projectID: projectID, cfg: cfg}, nil
}

// OrdersSubscription returns the subscriber the analytics worker drains,
// failing if the subscription has not been provisioned.
func (c *Client) OrdersSubscription(ctx context.Context) (*pubsub.Subscriber, error) {
	name := resourceName(c.projectID, kindSubscription, c.cfg.OrdersSubscription)
	if name == "" {
		return nil, errors.New("orders subscription not configured")
	}
	_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: name})
	if err := notFound("subscription", name, err); err != nil {
		return nil, err
	}
	return c.client.Subscriber(name), nil
}

// checkTopics verifies every outbox topic exists.
func (c *Client) checkTopics(ctx context.Context) error {
	for _, topic := range []string{c.cfg.OrdersTopic, c.cfg.CartsTopic} {
		name := resourceName(c.projectID, kindTopic, topic)
		if name == "" {
			continue
		}
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
		if err := notFound("topic", name, err); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func notFound(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", kind, name)
	default:
		return fmt.Errorf("checking %s %q: %w", kind, name, err)
	}
}

// resourceName expands a short id into projects/<p>/<kind>/<id>. Names that
// are already fully qualified pass through.
func resourceName(projectID, kind, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+kind+"/") {
		return n
	}
	if projectID == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", projectID, kind, n)
}

// Sink publishes outbox rows with the aggregate id as ordering key, so events
// for one order arrive in the order they were written.
type Sink struct {
	client *Client
	mu     sync.Mutex
	topics map[string]*pubsub.Publisher
}

func NewSink(client *Client) (*Sink, error) {
	if client == nil || client.client == nil {
		return nil, errors.New("pubsub client required")
	}
	return &Sink{client: client, topics: make(map[string]*pubsub.Publisher)}, nil
}

// Publish waits for the server ack. A failed ordered publish pauses the key
// inside the client, so it is resumed before returning the error.
func (s *Sink) Publish(ctx context.Context, topic, key string, data []byte, attrs map[string]string) error {
	pub, err := s.publisher(topic)
	if err != nil {
		return err
	}
	attributes := make(map[string]string, len(attrs)+1)
	for k, v := range attrs {
		attributes[k] = v
	}
	if key != "" {
		attributes["key"] = key
	}
	_, err = pub.Publish(ctx, &pubsub.Message{Data: data, Attributes: attributes, OrderingKey: key}).Get(ctx)
	if err != nil && key != "" {
		pub.ResumePublish(key)
	}
	return err
}

// Ping checks the outbox topics exist.
func (s *Sink) Ping(ctx context.Context) error {
	return s.client.checkTopics(ctx)
}

// Close flushes and stops every cached publisher.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, pub := range s.topics {
		pub.Stop()
		delete(s.topics, name)
	}
	return nil
}

func (s *Sink) publisher(topic string) (*pubsub.Publisher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pub, ok := s.topics[topic]; ok {
		return pub, nil
	}
	name := resourceName(s.client.projectID, kindTopic, topic)
	if name == "" {
		return nil, fmt.Errorf("publisher not configured for topic %q", topic)
	}
	pub := s.client.client.Publisher(name)
	pub.EnableMessageOrdering = true
	s.topics[topic] = pub
	return pub, nil
}
