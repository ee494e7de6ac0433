package sso

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const wellKnownPath = "/.well-known/openid-configuration"

// DiscoveryDocument is the subset of the OIDC discovery response this
// package consumes.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

// DiscoveryClient fetches discovery documents with a bounded retry. The
// retry budget is explicit: maxRetries attempts after the first, with
// exponential backoff, cancellable through the context.
type DiscoveryClient struct {
	client     *http.Client
	maxRetries uint64
}

type DiscoveryOption func(*DiscoveryClient)

// WithHTTPClient overrides the HTTP client, mostly for tests.
func WithHTTPClient(client *http.Client) DiscoveryOption {
	return func(c *DiscoveryClient) {
		if client != nil {
			c.client = client
		}
	}
}

// WithMaxRetries sets how many times a failed fetch is retried.
func WithMaxRetries(n uint64) DiscoveryOption {
	return func(c *DiscoveryClient) {
		c.maxRetries = n
	}
}

// NewDiscoveryClient creates a client with a 10s request timeout and 3
// retries.
func NewDiscoveryClient(opts ...DiscoveryOption) *DiscoveryClient {
	c := &DiscoveryClient{
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Fetch resolves the discovery document for issuerURL. Transport failures
// and 5xx responses are retried; 4xx responses are terminal.
func (c *DiscoveryClient) Fetch(ctx context.Context, issuerURL string) (*DiscoveryDocument, error) {
	if issuerURL == "" {
		return nil, fmt.Errorf("%w: empty issuer URL", ErrDiscoveryInvalid)
	}

	url := strings.TrimSuffix(issuerURL, "/") + wellKnownPath

	var doc *DiscoveryDocument

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("discovery endpoint returned %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("discovery endpoint returned %d", resp.StatusCode))
		}

		decoded := &DiscoveryDocument{}
		if err := json.NewDecoder(resp.Body).Decode(decoded); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: %v", ErrDiscoveryInvalid, err))
		}

		doc = decoded
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries),
		ctx,
	)

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscoveryUnavailable, err)
	}

	if doc.AuthorizationEndpoint == "" || doc.TokenEndpoint == "" {
		return nil, fmt.Errorf("%w: missing endpoints", ErrDiscoveryInvalid)
	}

	return doc, nil
}
