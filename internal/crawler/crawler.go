// Package crawler drives a batch sweep over one forum target: fetch a
// page, parse it, feed the entities through the store, enqueue the
// follow-up pages, repeat until the queue drains. Pages of the same
// pagination chain are processed in discovery order.
package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/corpix/uarand"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/kmazurek/forum-archiver/internal/parser"
	"github.com/kmazurek/forum-archiver/internal/store"
)

// Config holds the crawl settings for one forum target.
type Config struct {
	RateLimitMs int
	MaxRetries  int
	UserAgent   string

	// OnlyThreadURL switches the crawl to direct-thread mode: the
	// section tree is skipped and only this thread is re-scraped.
	OnlyThreadURL string
}

// Result summarizes one finished crawl.
type Result struct {
	PagesFetched int
	PagesFailed  int
	Entities     int
}

// Crawler runs a single-goroutine sweep of one forum. All store writes
// happen on this goroutine, so the reconciler sees them serialized.
type Crawler struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	parser  parser.Parser
	store   *store.Store
	log     logrus.FieldLogger
}

// New builds a crawler around a parser and an open store.
func New(cfg Config, p parser.Parser, st *store.Store, log logrus.FieldLogger) (*Crawler, error) {
	if p == nil {
		return nil, fmt.Errorf("parser is required")
	}
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.RateLimitMs <= 0 {
		cfg.RateLimitMs = 1000
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	rps := 1000.0 / float64(cfg.RateLimitMs)
	return &Crawler{
		cfg:     cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		parser:  p,
		store:   st,
		log:     log.WithField("component", "crawler").WithField("forum", p.Name()),
	}, nil
}

// Run executes the sweep. Store write failures are fatal; fetch and
// per-page parse failures only skip the affected page.
func (c *Crawler) Run(ctx context.Context) (*Result, error) {
	result := &Result{}

	var queue []parser.Request
	if c.cfg.OnlyThreadURL != "" {
		seed, err := c.parser.DirectThread(c.cfg.OnlyThreadURL)
		if err != nil {
			return nil, fmt.Errorf("direct thread mode: %w", err)
		}
		if err := c.apply(seed, result); err != nil {
			return nil, err
		}
		queue = append(queue, seed.Follow...)
	} else {
		queue = append(queue, c.parser.Start())
	}

	// Listing pages link back to earlier pages of the same chain;
	// without request dedup the sweep would cycle.
	visited := make(map[string]struct{})

	// FIFO keeps sibling pages of one pagination chain in discovery
	// order, which the within-page dedup and offset checks rely on.
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		req := queue[0]
		queue = queue[1:]

		if _, seen := visited[req.URL]; seen {
			continue
		}
		visited[req.URL] = struct{}{}

		body, err := c.fetch(ctx, req.URL)
		if err != nil {
			result.PagesFailed++
			c.log.WithField("url", req.URL).WithError(err).Warn("page fetch failed, skipping")
			continue
		}

		res, err := c.parser.Parse(parser.Page{URL: req.URL, Body: body, Ctx: req.Ctx})
		if err != nil {
			result.PagesFailed++
			c.log.WithField("url", req.URL).WithError(err).Warn("page parse failed, skipping")
			continue
		}
		result.PagesFetched++

		if err := c.apply(res, result); err != nil {
			return result, err
		}
		queue = append(queue, res.Follow...)
	}

	c.log.WithFields(logrus.Fields{
		"pages":    result.PagesFetched,
		"failed":   result.PagesFailed,
		"entities": result.Entities,
	}).Info("crawl finished")
	return result, nil
}

// apply reconciles a page's entities in emission order. Any store
// error terminates the crawl target.
func (c *Crawler) apply(res *parser.Result, result *Result) error {
	for _, e := range res.Entities {
		if err := c.store.Apply(e); err != nil {
			return fmt.Errorf("store write: %w", err)
		}
		result.Entities++
	}
	return nil
}

// fetch retrieves one page with rate limiting and retry-with-backoff,
// the same discipline the target boards expect from polite crawlers.
func (c *Crawler) fetch(ctx context.Context, url string) (io.Reader, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		userAgent := c.cfg.UserAgent
		if userAgent == "" {
			userAgent = uarand.GetRandom()
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			c.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			return nil, fmt.Errorf("page not found (404)")
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
			c.backoff(ctx, attempt)
			continue
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			c.backoff(ctx, attempt)
			continue
		}
		return bytes.NewReader(data), nil
	}
	return nil, fmt.Errorf("max retries reached: %w", lastErr)
}

func (c *Crawler) backoff(ctx context.Context, attempt int) {
	select {
	case <-time.After(time.Duration(attempt+1) * time.Second):
	case <-ctx.Done():
	}
}
