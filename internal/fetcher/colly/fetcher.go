// Package collyfetcher retrieves feeds and documents using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/2448334/seimas-scraper/internal/crawler"
	"github.com/2448334/seimas-scraper/internal/metrics"
)

// Config controls collector behavior.
type Config struct {
	UserAgent   string
	Timeout     time.Duration
	// MaxBodySize caps response bodies in bytes; zero means unlimited.
	MaxBodySize int
	// Limiter, when set, is waited on before every request.
	Limiter     Waiter
}

// Waiter throttles outgoing requests.
type Waiter interface {
	Wait(ctx context.Context, url string) error
}

// Fetcher implements crawler.TextFetcher and crawler.BytesFetcher. Every call runs on
// a clone of one of two base collectors sharing a pooled transport: the text collector
// decodes bodies to UTF-8, the binary one leaves them untouched.
type Fetcher struct {
	text    *colly.Collector
	binary  *colly.Collector
	limiter Waiter
	logger  *zap.Logger
}

var (
	_ crawler.TextFetcher  = (*Fetcher)(nil)
	_ crawler.BytesFetcher = (*Fetcher)(nil)
)

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	transport := newHTTPTransport()
	build := func(detectCharset bool) *colly.Collector {
		c := colly.NewCollector(colly.Async(false))
		c.AllowURLRevisit = true
		c.IgnoreRobotsTxt = true
		c.DetectCharset = detectCharset
		c.MaxBodySize = cfg.MaxBodySize
		if cfg.UserAgent != "" {
			c.UserAgent = cfg.UserAgent
		}
		c.WithTransport(transport)
		c.SetRequestTimeout(timeout)
		return c
	}
	return &Fetcher{
		text:    build(true),
		binary:  build(false),
		limiter: cfg.Limiter,
		logger:  logger.Named("fetcher"),
	}
}

// FetchText performs a GET and returns the body decoded to UTF-8.
func (f *Fetcher) FetchText(ctx context.Context, url string) (string, error) {
	body, err := f.fetch(ctx, f.text, url)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FetchBytes performs a GET and returns the raw body.
func (f *Fetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	return f.fetch(ctx, f.binary, url)
}

func (f *Fetcher) fetch(ctx context.Context, base *colly.Collector, url string) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, url); err != nil {
			return nil, fmt.Errorf("%w: %w", crawler.ErrTransport, err)
		}
	}
	var (
		body     []byte
		fetchErr error
	)
	start := time.Now()
	collector := base.Clone()
	collector.Context = ctx
	f.configureCollectorHooks(collector, url, start, &body, &fetchErr)

	if err := runCollector(ctx, collector, url, &fetchErr); err != nil {
		f.logger.Warn("fetch failed", zap.String("url", url), zap.Error(err))
		return nil, err
	}
	return body, nil
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	url string,
	start time.Time,
	body *[]byte,
	fetchErr *error,
) {
	hooks.OnResponse(func(r *colly.Response) {
		*body = append([]byte(nil), r.Body...)
		metrics.ObserveFetch(url, strconv.Itoa(r.StatusCode), len(r.Body))
		f.logger.Debug("fetched",
			zap.String("url", url),
			zap.Int("status", r.StatusCode),
			zap.Int("bytes", len(r.Body)),
			zap.Duration("duration", time.Since(start)),
		)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		status := "error"
		if r != nil && r.StatusCode != 0 {
			status = strconv.Itoa(r.StatusCode)
		}
		metrics.ObserveFetch(url, status, 0)
		*fetchErr = err
	})
}

func runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: fetch %s canceled: %w", crawler.ErrTransport, url, ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("%w: fetch %s: %w", crawler.ErrTransport, url, *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("%w: visit %s: %w", crawler.ErrTransport, url, err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
	}
}
