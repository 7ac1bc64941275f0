package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"

	"github.com/manifest-network/rootcheck/internal/metrics"
	"github.com/manifest-network/rootcheck/internal/models"
	"github.com/manifest-network/rootcheck/internal/utils"
)

// ErrBlockNotFound is returned when the node has no block at the requested height.
var ErrBlockNotFound = errors.New("block not found")

const (
	defaultRetryWait    = 500 * time.Millisecond
	defaultRetryMaxWait = 5 * time.Second
)

// GraphQLError carries the errors array of a GraphQL response.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "graphql error: " + strings.Join(e.Messages, "; ")
}

// Options configures a GraphQLClient.
type Options struct {
	Endpoint   string
	Timeout    time.Duration
	MaxRetries uint
	RetryWait  time.Duration
}

// GraphQLClient queries a Fuel node's GraphQL API.
type GraphQLClient struct {
	http     *resty.Client
	endpoint string
}

// NewGraphQLClient returns a client for the GraphQL endpoint in opts.
func NewGraphQLClient(opts Options) (*GraphQLClient, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("graphql endpoint is empty")
	}
	retryWait := opts.RetryWait
	if retryWait == 0 {
		retryWait = defaultRetryWait
	}

	httpClient := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(int(opts.MaxRetries)).
		SetRetryWaitTime(retryWait).
		SetRetryMaxWaitTime(max(retryWait, defaultRetryMaxWait)).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= http.StatusInternalServerError || r.StatusCode() == http.StatusTooManyRequests
		}).
		AddRetryHook(func(r *resty.Response, err error) {
			if r == nil || r.Request == nil {
				slog.Warn("Retrying GraphQL request", "error", err)
				return
			}
			slog.Warn("Retrying GraphQL request", "attempt", r.Request.Attempt, "status", r.StatusCode(), "error", err)
		})
	httpClient.JSONMarshal = json.Marshal
	httpClient.JSONUnmarshal = json.Unmarshal

	return &GraphQLClient{
		http:     httpClient,
		endpoint: opts.Endpoint,
	}, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLErrorItem struct {
	Message string `json:"message"`
}

type graphQLResponse[T any] struct {
	Data   *T                 `json:"data"`
	Errors []graphQLErrorItem `json:"errors"`
}

// query posts a GraphQL document and decodes its data into T.
func query[T any](ctx context.Context, c *GraphQLClient, document string, variables map[string]any) (*T, error) {
	var out graphQLResponse[T]
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(graphQLRequest{Query: document, Variables: variables}).
		SetResult(&out).
		Post(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("graphql request to %s failed: %w", c.endpoint, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("graphql request to %s failed: unexpected status %s", c.endpoint, resp.Status())
	}
	if len(out.Errors) > 0 {
		gqlErr := &GraphQLError{}
		for _, e := range out.Errors {
			gqlErr.Messages = append(gqlErr.Messages, e.Message)
		}
		return nil, gqlErr
	}
	if out.Data == nil {
		return nil, errors.New("graphql response has no data")
	}
	return out.Data, nil
}

// FetchBlock returns the block at height with every transaction's payload and status.
func (c *GraphQLClient) FetchBlock(ctx context.Context, height uint64) (*models.Block, error) {
	start := time.Now()
	defer func() { metrics.FetchDuration.Observe(time.Since(start).Seconds()) }()

	variables := map[string]any{"first": 1}
	if cursor := utils.HeightCursor(height); cursor != nil {
		variables["after"] = *cursor
	}

	data, err := query[fullBlocksData](ctx, c, fullBlocksQuery, variables)
	if err != nil {
		return nil, fmt.Errorf("failed to query block %d: %w", height, err)
	}
	if len(data.Blocks.Edges) == 0 {
		return nil, fmt.Errorf("height %d: %w", height, ErrBlockNotFound)
	}

	block, err := data.Blocks.Edges[0].Node.toModel()
	if err != nil {
		return nil, fmt.Errorf("failed to convert block %d: %w", height, err)
	}
	if block.Header.Height != height {
		return nil, fmt.Errorf("node returned block %d for requested height %d", block.Header.Height, height)
	}
	return block, nil
}

// LatestHeight returns the height of the node's latest block.
func (c *GraphQLClient) LatestHeight(ctx context.Context) (uint64, error) {
	data, err := query[chainData](ctx, c, latestHeightQuery, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to query latest block height: %w", err)
	}
	height, err := utils.ParseHeight(data.Chain.LatestBlock.Height)
	if err != nil {
		return 0, fmt.Errorf("failed to parse latest block height: %w", err)
	}
	return height, nil
}
