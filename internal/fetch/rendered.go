package fetch

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/epeers/etfarchive/config"
	log "github.com/sirupsen/logrus"
)

// renderedAdapter handles pages that only materialize their holdings table
// after client-side JavaScript runs. It drives a headless browser, waits for
// the configured selector, and hands the rendered HTML to the same table
// finder the plain html adapter uses.
type renderedAdapter struct {
	client *Client
}

// renderTimeout bounds one render attempt; slow fund pages take ~20s.
const renderTimeout = 60 * time.Second

func (a *renderedAdapter) Fetch(ctx context.Context, fund config.Fund) (*RawPage, error) {
	var lastErr error
	for attempt := 1; attempt <= a.client.attempts(); attempt++ {
		if err := a.client.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{FundTicker: fund.Ticker, Attempts: attempt, Err: err}
		}

		html, err := a.render(ctx, fund)
		if err == nil {
			page, perr := extractTablePage(bytes.NewReader([]byte(html)))
			if perr == nil {
				return page, nil
			}
			err = perr
		}

		lastErr = err
		log.Warnf("fetch: render attempt %d/%d for %s failed: %v", attempt, a.client.attempts(), fund.Ticker, err)

		if attempt < a.client.attempts() {
			// Exponential backoff between render attempts, same shape as the
			// HTTP client's retry schedule.
			wait := a.client.opts.RetryWait << (attempt - 1)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, &FetchError{FundTicker: fund.Ticker, Attempts: attempt, Err: ctx.Err()}
			}
		}
	}

	return nil, &FetchError{FundTicker: fund.Ticker, Attempts: a.client.attempts(), Err: lastErr}
}

func (a *renderedAdapter) render(ctx context.Context, fund config.Fund) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", a.client.opts.Headless),
		chromedp.UserAgent(browserUserAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, renderTimeout)
	defer cancelRun()

	selector := fund.WaitSelector
	if selector == "" {
		selector = "table"
	}

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(fund.URL),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render of %s: %w", fund.URL, err)
	}
	return html, nil
}
