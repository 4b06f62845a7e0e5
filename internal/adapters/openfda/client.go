package openfda

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mikey/openfda-engine/internal/core"
	"go.uber.org/zap"
)

// maxBodySize caps how much of an upstream response is read
const maxBodySize = 32 << 20

// Client is an implementation of the Fetcher interface against the openFDA API
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	userAgent  string
	timeout    time.Duration
	logger     *zap.Logger
}

// NewClient creates a new openFDA client. A nil httpClient uses a default
// client; the per-request timeout is applied through the request context.
func NewClient(
	httpClient *http.Client,
	baseURL string,
	apiKey string,
	userAgent string,
	timeout time.Duration,
	logger *zap.Logger,
) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		userAgent:  userAgent,
		timeout:    timeout,
		logger:     logger,
	}
}

func (c *Client) buildURL(req core.FetchRequest) string {
	q := url.Values{}
	q.Set("search", req.Search)
	q.Set("limit", strconv.Itoa(req.Limit))
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	return c.baseURL + string(req.Endpoint) + "?" + q.Encode()
}

// Fetch runs one openFDA search. A 404 is openFDA's "no matches" answer and
// yields an empty page; every other non-200 status is a FetchError.
func (c *Client) Fetch(ctx context.Context, req core.FetchRequest) (*core.Page, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(req), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build openFDA request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.transportError(ctx, req.Endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, c.transportError(ctx, req.Endpoint, err)
	}

	c.logger.Debug("openFDA request completed",
		zap.String("endpoint", string(req.Endpoint)),
		zap.String("search", req.Search),
		zap.Int("limit", req.Limit),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusOK:
		page, err := core.DecodePage(body)
		if err != nil {
			return nil, &core.FetchError{
				Kind:     core.KindUpstreamError,
				Status:   resp.StatusCode,
				Endpoint: req.Endpoint,
				Message:  "malformed response body",
				Err:      err,
			}
		}
		return page, nil
	case resp.StatusCode == http.StatusNotFound:
		return &core.Page{}, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &core.FetchError{
			Kind:     core.KindRateLimited,
			Status:   resp.StatusCode,
			Endpoint: req.Endpoint,
			Message:  "openFDA rate limit exceeded",
		}
	default:
		return nil, &core.FetchError{
			Kind:     core.KindUpstreamError,
			Status:   resp.StatusCode,
			Endpoint: req.Endpoint,
			Message:  "unexpected openFDA response " + http.StatusText(resp.StatusCode),
		}
	}
}

// transportError classifies failures that produced no usable HTTP response
func (c *Client) transportError(ctx context.Context, endpoint core.Endpoint, err error) error {
	if errors.Is(err, context.Canceled) && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return err
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &core.FetchError{
			Kind:     core.KindTimeout,
			Endpoint: endpoint,
			Message:  "openFDA request timed out",
			Err:      err,
		}
	}

	return &core.FetchError{
		Kind:     core.KindNetworkError,
		Endpoint: endpoint,
		Message:  "openFDA request failed",
		Err:      err,
	}
}
