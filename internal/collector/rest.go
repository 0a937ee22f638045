package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

const maxErrorBody = 256

// restClient is the shared GET-and-decode path of the exchange providers.
type restClient struct {
	baseURL string
	client  *http.Client
	limiter *Limiter
	timeout time.Duration
}

func newRESTClient(baseURL, proxyURL string, timeout time.Duration, limiter *Limiter) *restClient {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &restClient{
		baseURL: baseURL,
		client:  &http.Client{Transport: transport},
		limiter: limiter,
		timeout: timeout,
	}
}

// getJSON performs one rate-limited GET bounded by the client timeout.
// Throttling, auth and server errors map to ErrProviderUnavailable; other
// 4xx statuses and undecodable bodies map to rejectErr.
func (c *restClient) getJSON(ctx context.Context, path string, params url.Values, rejectErr error, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limit wait: %w", ErrProviderUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %w", ErrProviderUnavailable, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrProviderUnavailable, path, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusTeapot, // binance IP ban
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode >= 500:
		return fmt.Errorf("%w: GET %s: status %d, body: %s", ErrProviderUnavailable, path, resp.StatusCode, truncate(body))
	default:
		return fmt.Errorf("%w: GET %s: status %d, body: %s", rejectErr, path, resp.StatusCode, truncate(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", rejectErr, path, err)
	}
	return nil
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}

// parseNumber parses an exchange decimal string without float rounding on the way in.
func parseNumber(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}
