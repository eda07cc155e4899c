package proxy

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/otwlabs/otw/internal/infrastructure/resilience"
)

// ClientConfig tunes the upstream fetch client.
type ClientConfig struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	UserAgent    string
	// RPS throttles upstream fetches across all sessions; zero means
	// unlimited.
	RPS float64
}

// DefaultClientConfig returns production defaults: a bounded timeout so
// a hanging upstream cannot pin connections forever, and GET-only
// retries.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:      20 * time.Second,
		MaxRetries:   2,
		RetryWaitMin: 500 * time.Millisecond,
		RetryWaitMax: 5 * time.Second,
		UserAgent:    "otw-recorder/1.0 (+https://otw.dev)",
	}
}

// retryMethodKey carries the request method into the retry policy.
type retryMethodKey struct{}

// Client wraps resty with retrying transport, rate limiting, and a
// circuit breaker for upstream fetches.
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
}

// NewClient builds the upstream fetch client. Redirects are followed
// transparently for GET; POST redirects are returned to the engine so
// it can translate the Location into the proxy shape.
func NewClient(cfg ClientConfig) *Client {
	if cfg.RetryWaitMin <= 0 {
		cfg.RetryWaitMin = 500 * time.Millisecond
	}
	if cfg.RetryWaitMax <= 0 {
		cfg.RetryWaitMax = 5 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.Logger = nil

	// Retries are GET-only. A POST that failed mid-flight may have
	// mutated upstream state; replaying it is not ours to decide. The
	// context carries the method because resp is nil on transport errors.
	retryClient.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if m, _ := ctx.Value(retryMethodKey{}).(string); m != "" && m != http.MethodGet {
			return false, nil
		}
		if resp != nil && resp.Request != nil && resp.Request.Method != http.MethodGet {
			return false, nil
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	// Exhausted retries hand the last upstream response back unchanged;
	// the engine passes upstream status codes through to the browser.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	rc := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetTransport(&retryablehttp.RoundTripper{Client: retryClient}).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
			if len(via) > 0 && via[0].Method != http.MethodGet && via[0].Method != http.MethodHead {
				return http.ErrUseLastResponse
			}
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		})).
		// Bodies pass through the rewrite/stream paths untouched; resty
		// must not buffer or parse them.
		SetDoNotParseResponse(true)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), int(cfg.RPS)+1)
	}

	breaker := resilience.New("proxy-upstream", resilience.UpstreamSettings())

	return &Client{resty: rc, limiter: limiter, breaker: breaker}
}

// Do executes an upstream request with rate limiting and breaker
// protection. The response body is unread; the caller owns closing it.
func (c *Client) Do(ctx context.Context, method, targetURL string, headers map[string]string, body []byte) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("upstream rate limit: %w", err)
	}

	req := c.resty.R().SetContext(context.WithValue(ctx, retryMethodKey{}, method))
	for k, v := range headers {
		if v != "" {
			req.SetHeader(k, v)
		}
	}
	if body != nil {
		req.SetBody(body)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return req.Execute(method, targetURL)
	})
	if err != nil {
		return nil, err
	}
	return result.(*resty.Response), nil
}
