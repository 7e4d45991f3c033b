// Package anilist provides a GraphQL client for the AniList API.
// It implements a deep module interface - simple methods hiding the GraphQL
// queries and the mapping to domain types.
package anilist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/h0rv/postergrid/internal/auth"
	"github.com/machinebox/graphql"
)

// DefaultEndpoint is the public AniList GraphQL endpoint.
const DefaultEndpoint = "https://graphql.anilist.co"

// ErrInvalidID indicates a media ID that is not an AniList numeric ID.
var ErrInvalidID = errors.New("invalid media ID")

// Client is an AniList GraphQL API client.
// Queries work anonymously; mutations and Viewer need a token.
type Client struct {
	gql    *graphql.Client
	token  string
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = hc }
}

// WithLogger sets the logger requests are traced to at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// New creates a client for endpoint, or DefaultEndpoint when empty.
// token may be empty for anonymous access.
func New(endpoint, token string, opts ...Option) *Client {
	o := clientOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	var gqlOpts []graphql.ClientOption
	if o.httpClient != nil {
		gqlOpts = append(gqlOpts, graphql.WithHTTPClient(o.httpClient))
	}

	client := graphql.NewClient(endpoint, gqlOpts...)
	client.Log = func(s string) { o.logger.Debug(s, slog.String("component", "anilist")) }

	return &Client{
		gql:    client,
		token:  token,
		logger: o.logger,
	}
}

// HasToken reports whether the client can run authenticated requests.
func (c *Client) HasToken() bool {
	return c.token != ""
}

// makeRequest executes a GraphQL request, authenticated when a token is set.
func (c *Client) makeRequest(ctx context.Context, req *graphql.Request, resp interface{}) error {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.gql.Run(ctx, req, resp)
}

// requireToken returns auth.ErrNoToken for anonymous clients.
func (c *Client) requireToken(op string) error {
	if c.token == "" {
		return fmt.Errorf("%s: %w", op, auth.ErrNoToken)
	}
	return nil
}

func parseID(id string) (int, error) {
	n, err := strconv.Atoi(id)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return n, nil
}
