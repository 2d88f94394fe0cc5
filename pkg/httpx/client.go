package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Jaberkh/Nut-test/pkg/retry"
	"github.com/Jaberkh/Nut-test/pkg/utils"
)

// Client is a thin JSON fetch wrapper with a per-attempt timeout and a fixed
// retry count. It is the sole transport for the bulk analytics API; identity
// lookups deliberately bypass it and stay single-attempt.
type Client struct {
	client  *http.Client
	logger  *zap.Logger
	timeout time.Duration
	retry   retry.Config
}

// Opts is the set of options for a new Client.
type Opts struct {
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
	HTTPClient  *http.Client
}

// New creates a Client with the given options, defaulting to a 5-second
// per-attempt timeout and three attempts one second apart.
func New(logger *zap.Logger, o Opts) *Client {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = time.Second
	}
	client := o.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Client{
		client:  client,
		logger:  logger,
		timeout: o.Timeout,
		retry:   retry.Config{MaxAttempts: o.MaxAttempts, Delay: o.RetryDelay},
	}
}

// DoJSON issues the request and decodes the response body into out (when out
// is non-nil). A non-2xx status counts as a failed attempt, same as a
// transport error; after the final attempt the last error is returned.
func (c *Client) DoJSON(ctx context.Context, method, url string, headers map[string]string, out any) error {
	return retry.WithFixedDelay(ctx, c.retry, c.logger, method+" "+url, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(attemptCtx, method, url, nil)
		if err != nil {
			return err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			_ = utils.DrainAndClose(resp.Body)
			return fmt.Errorf("http %d", resp.StatusCode)
		}

		if out != nil {
			var raw json.RawMessage
			if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
				_ = utils.DrainAndClose(resp.Body)
				return err
			}
			if err := json.Unmarshal(raw, out); err != nil {
				_ = utils.DrainAndClose(resp.Body)
				return err
			}
		}

		return utils.DrainAndClose(resp.Body)
	})
}
