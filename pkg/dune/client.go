// Package dune talks to the bulk analytics API. Query execution is
// asynchronous upstream: Execute starts a run and Results polls it, and each
// call consumes one unit of the daily credit budget.
package dune

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/Jaberkh/Nut-test/pkg/httpx"
)

const DefaultBaseURL = "https://api.dune.com"

type Client struct {
	http    *httpx.Client
	logger  *zap.Logger
	apiKey  string
	baseURL string
}

func NewClient(logger *zap.Logger, http *httpx.Client, apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    http,
		logger:  logger,
		apiKey:  apiKey,
		baseURL: baseURL,
	}
}

type executeResponse struct {
	ExecutionID string `json:"execution_id"`
}

type resultsResponse struct {
	State  string `json:"state"`
	Result *struct {
		Rows []PeanutRow `json:"rows"`
	} `json:"result"`
}

// Execute starts a query run and returns its execution id.
func (c *Client) Execute(ctx context.Context, queryID string) (string, error) {
	url := fmt.Sprintf("%s/api/v1/query/%s/execute", c.baseURL, queryID)
	var out executeResponse
	if err := c.http.DoJSON(ctx, http.MethodPost, url, c.headers(), &out); err != nil {
		return "", err
	}
	if out.ExecutionID == "" {
		return "", fmt.Errorf("execute query %s: empty execution id", queryID)
	}
	c.logger.Info("Query execution started",
		zap.String("query_id", queryID),
		zap.String("execution_id", out.ExecutionID))
	return out.ExecutionID, nil
}

// Results fetches the rows for a finished execution. pending is true while
// the upstream job is still EXECUTING or PENDING; in that case rows is nil
// and the caller should skip this cycle.
func (c *Client) Results(ctx context.Context, executionID string) (rows []PeanutRow, pending bool, err error) {
	url := fmt.Sprintf("%s/api/v1/execution/%s/results", c.baseURL, executionID)
	var out resultsResponse
	if err := c.http.DoJSON(ctx, http.MethodGet, url, c.headers(), &out); err != nil {
		return nil, false, err
	}
	if out.State == "EXECUTING" || out.State == "PENDING" {
		return nil, true, nil
	}
	if out.Result != nil {
		rows = out.Result.Rows
	}
	c.logger.Info("Query results fetched",
		zap.String("execution_id", executionID),
		zap.String("state", out.State),
		zap.Int("rows", len(rows)))
	return rows, false, nil
}

func (c *Client) headers() map[string]string {
	return map[string]string{"X-Dune-API-Key": c.apiKey}
}
