package scraper

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/blingmoon/stepchain/workflow"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Fetcher 获取文档，非 2xx 和网络错误都返回 workflow.ErrExternalCall
type Fetcher interface {
	FetchDocument(ctx context.Context, url string) (string, error)
}

type HTTPFetcherOptions struct {
	Timeout   time.Duration
	UserAgent string
	// 每秒请求数，<=0 不限速
	RPS    float64
	Logger *slog.Logger
}

type HTTPFetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	logger    *slog.Logger
}

func NewHTTPFetcher(opts HTTPFetcherOptions) *HTTPFetcher {
	f := &HTTPFetcher{
		client:    &http.Client{Timeout: opts.Timeout},
		userAgent: opts.UserAgent,
		logger:    opts.Logger,
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	if opts.RPS > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(opts.RPS), 1)
	}
	return f
}

func (f *HTTPFetcher) FetchDocument(ctx context.Context, url string) (string, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return "", errors.WithMessagef(workflow.ErrExternalCall, "rate limit wait, url: %s, err: %v", url, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.WithMessagef(workflow.ErrExternalCall, "build request, url: %s, err: %v", url, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", errors.WithMessagef(workflow.ErrExternalCall, "request failed, url: %s, err: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// 把 body 读完，连接可以复用
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", errors.WithMessagef(workflow.ErrExternalCall, "unexpected status %d, url: %s", resp.StatusCode, url)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.WithMessagef(workflow.ErrExternalCall, "read body failed, url: %s, err: %v", url, err)
	}
	f.logger.DebugContext(ctx, "document fetched", slog.String("url", url), slog.Int("bytes", len(body)))
	return string(body), nil
}
