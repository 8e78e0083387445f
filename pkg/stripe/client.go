// Package stripe holds the Stripe credentials and webhook verification used
// by token checkout.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/mianhamzaathar/AIFORGE/pkg/config"
	"github.com/mianhamzaathar/AIFORGE/pkg/logger"
)

// Environment is the Stripe mode a deployment runs against.
type Environment string

const (
	Test Environment = "test"
	Live Environment = "live"
)

var (
	errAPIKeyRequired = errors.New("stripe api key is required")
	errSecretRequired = errors.New("stripe webhook secret is required")
	errModeMismatch   = errors.New("stripe event livemode does not match environment")
)

func ParseEnvironment(raw string) (Environment, error) {
	switch env := Environment(strings.ToLower(strings.TrimSpace(raw))); env {
	case "":
		return Test, nil
	case Test, Live:
		return env, nil
	default:
		return "", fmt.Errorf("stripe environment must be %q or %q, got %q", Test, Live, raw)
	}
}

// acceptsKey reports whether key is a secret or restricted key of this mode.
func (e Environment) acceptsKey(key string) bool {
	for _, kind := range []string{"sk", "rk"} {
		if strings.HasPrefix(key, kind+"_"+string(e)) {
			return true
		}
	}
	return false
}

// Client checks a deployment's Stripe credentials and verifies webhooks.
type Client struct {
	env           Environment
	signingSecret string
}

// NewClient validates the credentials and sets the package-level stripe.Key
// the resource clients read.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := ParseEnvironment(cfg.Environment())
	if err != nil {
		return nil, err
	}
	key := strings.TrimSpace(cfg.APIKey)
	secret := strings.TrimSpace(cfg.Secret)
	switch {
	case key == "":
		return nil, errAPIKeyRequired
	case secret == "":
		return nil, errSecretRequired
	case !env.acceptsKey(key):
		return nil, fmt.Errorf("stripe %s environment needs an sk_%[1]s or rk_%[1]s key", env)
	}

	stripe.Key = key
	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_env", string(env)), "stripe client initialized")
	}
	return &Client{env: env, signingSecret: secret}, nil
}

func (c *Client) Environment() Environment {
	if c == nil {
		return ""
	}
	return c.env
}

func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// ConstructEvent verifies the Stripe-Signature header and rejects events
// from the other mode, so a test-mode webhook can never credit live tokens.
func (c *Client) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	event, err := VerifyEvent(payload, signature, c.SigningSecret())
	if err != nil {
		return stripe.Event{}, err
	}
	if event.Livemode != (c.Environment() == Live) {
		return stripe.Event{}, errModeMismatch
	}
	return event, nil
}

// VerifyEvent checks the signature only. Events rendered with an older
// account API version are accepted; only checkout session fields are read.
func VerifyEvent(payload []byte, signature, secret string) (stripe.Event, error) {
	if strings.TrimSpace(secret) == "" {
		return stripe.Event{}, errSecretRequired
	}
	return webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}
