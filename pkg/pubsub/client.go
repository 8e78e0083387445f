// Package pubsub connects the publisher and the analytics worker to the
// ledger event topic.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mianhamzaathar/AIFORGE/pkg/config"
	"github.com/mianhamzaathar/AIFORGE/pkg/logger"
)

// Role says which resources must exist before NewClient returns.
type Role int

const (
	// Publishing needs the ledger topic.
	Publishing Role = iota
	// Consuming needs the topic and the analytics subscription.
	Consuming
)

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errTopicRequired        = errors.New("pubsub ledger topic is required")
	errClientNotInitialized = errors.New("pubsub client not initialized")
)

type Client struct {
	client  *pubsub.Client
	project string
	cfg     config.PubSubConfig

	pubOnce   sync.Once
	publisher *pubsub.Publisher
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, role Role, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	if strings.TrimSpace(cfg.LedgerTopic) == "" {
		return nil, errTopicRequired
	}

	ps, err := pubsub.NewClient(ctx, project, credentials(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	c := &Client{client: ps, project: project, cfg: cfg}

	checks := []func(context.Context) error{c.checkTopic}
	if role == Consuming {
		checks = append(checks, c.checkSubscription)
	}
	for _, check := range checks {
		if err := check(ctx); err != nil {
			_ = ps.Close()
			return nil, err
		}
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", cfg.LedgerTopic), "pubsub client ready")
	}
	return c, nil
}

func credentials(gcp config.GCPConfig) []option.ClientOption {
	if strings.TrimSpace(gcp.CredentialsJSON) != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	}
	if strings.TrimSpace(gcp.ApplicationCredentials) != "" {
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	}
	return nil
}

func (c *Client) checkTopic(ctx context.Context) error {
	name := resourceName(c.project, "topics", c.cfg.LedgerTopic)
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
	return describeLookup("topic", c.cfg.LedgerTopic, err)
}

func (c *Client) checkSubscription(ctx context.Context) error {
	name := resourceName(c.project, "subscriptions", c.cfg.LedgerSubscription)
	if name == "" {
		return errors.New("pubsub ledger subscription is required")
	}
	_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: name})
	return describeLookup("subscription", c.cfg.LedgerSubscription, err)
}

func describeLookup(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", kind, name)
	default:
		return fmt.Errorf("look up %s %q: %w", kind, name, err)
	}
}

// LedgerPublisher returns the shared publisher for the ledger topic. It is
// stopped, flushing pending messages, by Close.
func (c *Client) LedgerPublisher() *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	c.pubOnce.Do(func() {
		c.publisher = c.client.Publisher(resourceName(c.project, "topics", c.cfg.LedgerTopic))
	})
	return c.publisher
}

// LedgerSubscriber returns a subscriber for the analytics subscription with
// flow control applied.
func (c *Client) LedgerSubscriber() *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	name := resourceName(c.project, "subscriptions", c.cfg.LedgerSubscription)
	if name == "" {
		return nil
	}
	sub := c.client.Subscriber(name)
	if c.cfg.MaxOutstanding > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = c.cfg.MaxOutstanding
	}
	return sub
}

// Ping verifies the ledger topic is still reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}
	return c.checkTopic(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.publisher != nil {
		c.publisher.Stop()
	}
	return c.client.Close()
}

// resourceName expands a short id to projects/<p>/<collection>/<id>; full
// paths pass through unchanged.
func resourceName(project, collection, name string) string {
	name = strings.TrimSpace(name)
	project = strings.TrimSpace(project)
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+collection+"/"):
		return name
	case project == "":
		return ""
	}
	return "projects/" + project + "/" + collection + "/" + name
}
