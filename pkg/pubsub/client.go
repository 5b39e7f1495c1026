package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/kirana-backend/pkg/config"
	"github.com/angelmondragon/kirana-backend/pkg/logger"
)

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoSubscriptions   = errors.New("pubsub subscription name is required")
)

// NewClient creates a Pub/Sub v2 client and ensures the configured
// subscriptions exist.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}

	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID, clientOptions(gcp, cfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:    psClient,
		projectID: gcp.ProjectID,
		cfg:       cfg,
	}

	if err := c.ensureSubscriptionsConfigured(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "project_id", gcp.ProjectID), "pubsub client initialized")
	}

	return c, nil
}

func clientOptions(gcp config.GCPConfig, cfg config.PubSubConfig) []option.ClientOption {
	if host := strings.TrimSpace(cfg.EmulatorHost); host != "" {
		return []option.ClientOption{
			option.WithEndpoint(host),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		}
	}
	var opts []option.ClientOption
	if gcp.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	} else if gcp.ApplicationCredentials != "" {
		opts = append(opts, option.WithCredentialsFile(gcp.ApplicationCredentials))
	}
	return opts
}

// stream pairs a domain event topic with the subscription the worker reads
// it from.
type stream struct {
	name         string
	topic        string
	subscription string
}

func streams(cfg config.PubSubConfig) []stream {
	all := []stream{
		{name: "cart", topic: cfg.CartTopic, subscription: cfg.CartSubscription},
		{name: "orders", topic: cfg.OrdersTopic, subscription: cfg.OrdersSubscription},
		{name: "customer", topic: cfg.CustomerTopic, subscription: cfg.CustomerSubscription},
	}
	out := all[:0]
	for _, st := range all {
		st.topic = strings.TrimSpace(st.topic)
		st.subscription = strings.TrimSpace(st.subscription)
		if st.subscription != "" {
			out = append(out, st)
		}
	}
	return out
}

func (c *Client) ensureSubscriptionsConfigured(ctx context.Context) error {
	configured := streams(c.cfg)
	if len(configured) == 0 {
		return errNoSubscriptions
	}
	for _, st := range configured {
		if err := c.ensureSubscriptionExists(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

// ensureSubscriptionExists also rejects a subscription attached to a topic
// other than the one its stream publishes to; order events read from the
// cart topic would never arrive.
func (c *Client) ensureSubscriptionExists(ctx context.Context, st stream) error {
	fullName := c.subscriptionResourceName(st.subscription)
	if fullName == "" {
		return fmt.Errorf("%s subscription %q not configured", st.name, st.subscription)
	}

	sub, err := c.client.SubscriptionAdminClient.GetSubscription(
		ctx,
		&pubsubpb.GetSubscriptionRequest{Subscription: fullName},
	)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%s subscription %q does not exist", st.name, st.subscription)
		}
		return fmt.Errorf("checking %s subscription %q: %w", st.name, st.subscription, err)
	}
	return c.checkTopicBinding(st, sub.GetTopic())
}

func (c *Client) checkTopicBinding(st stream, attached string) error {
	if st.topic == "" || attached == "" {
		return nil
	}
	if want := c.topicResourceName(st.topic); want != attached {
		return fmt.Errorf("%s subscription %q reads %s, expected %s", st.name, st.subscription, attached, want)
	}
	return nil
}

// Subscription returns a v2 Subscriber handle for a subscription ID or full
// resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := c.subscriptionResourceName(name)
	if fullName == "" {
		return nil
	}
	return c.client.Subscriber(fullName)
}

// CartSubscription returns the subscriber for cart change notifications.
func (c *Client) CartSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.CartSubscription)
}

// OrdersSubscription returns the subscriber for order events.
func (c *Client) OrdersSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.OrdersSubscription)
}

// CustomerSubscription returns the subscriber for address and locale events.
func (c *Client) CustomerSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.CustomerSubscription)
}

// Publisher returns a publisher handle for the given topic ID/resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := c.topicResourceName(name)
	if fullName == "" {
		return nil
	}
	return c.client.Publisher(fullName)
}

// Ping verifies Pub/Sub connectivity by checking configured subscriptions exist.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return errors.New("pubsub client not initialized")
	}
	return c.ensureSubscriptionsConfigured(ctx)
}

// Close releases the Pub/Sub client resources.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) subscriptionResourceName(name string) string {
	return resourceName(c, name, "subscriptions")
}

func (c *Client) topicResourceName(name string) string {
	return resourceName(c, name, "topics")
}

func resourceName(c *Client, name, kind string) string {
	if c == nil {
		return ""
	}
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+kind+"/") {
		return n
	}
	p := strings.TrimSpace(c.projectID)
	if p == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", p, kind, n)
}

// IsRetryable classifies publish errors: transient gRPC codes are retried,
// everything else is treated as permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted, codes.Internal:
		return true
	case codes.NotFound, codes.PermissionDenied, codes.InvalidArgument, codes.Unauthenticated:
		return false
	}
	return true
}
