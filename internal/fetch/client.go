package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Options tunes the shared fetch client.
type Options struct {
	Retries     int           // attempts beyond the first, default 3
	RetryWait   time.Duration // initial backoff, default 2s
	Timeout     time.Duration // per-request timeout, default 30s
	RequestsSec float64       // issuer politeness rate, default 0.5 req/s shared across funds
	Headless    bool          // rendered adapter: run the browser headless
}

func (o Options) withDefaults() Options {
	if o.Retries <= 0 {
		o.Retries = 3
	}
	if o.RetryWait <= 0 {
		o.RetryWait = 2 * time.Second
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.RequestsSec <= 0 {
		o.RequestsSec = 0.5
	}
	return o
}

// Client holds what every adapter shares: a browser-impersonating HTTP
// client and a politeness rate limiter. Issuer sites sit behind anti-bot
// checks, so the transport goes through the cloudflare bypass round-tripper
// and all requests carry a real browser User-Agent.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	opts    Options
}

// NewClient builds the shared fetch client.
func NewClient(opts Options) *Client {
	opts = opts.withDefaults()

	httpClient := resty.New()
	if jar, err := cookiejar.New(nil); err == nil {
		httpClient.SetCookieJar(jar)
	}
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	httpClient.SetHeader("User-Agent", browserUserAgent)
	httpClient.SetTimeout(opts.Timeout)
	httpClient.SetRetryCount(opts.Retries)
	httpClient.SetRetryWaitTime(opts.RetryWait)
	httpClient.SetRetryMaxWaitTime(opts.RetryWait * 8)
	httpClient.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
	})

	return &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsSec), 1),
		opts:    opts,
	}
}

// get performs one rate-limited GET and returns the body. Transient failures
// are retried inside resty with exponential backoff; what escapes here is
// already the last attempt's failure.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode())
	}

	log.Debugf("fetch: GET %s -> %d bytes in %d ms", url, len(resp.Body()), time.Since(start).Milliseconds())
	return resp.Body(), nil
}

// attempts is how many tries the client makes in total, for error reporting.
func (c *Client) attempts() int {
	return c.opts.Retries + 1
}
