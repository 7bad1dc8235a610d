package fetcher

import (
	"context"
	"time"

	"mpscraper/pkg/article"
	"mpscraper/pkg/auth"
	"mpscraper/pkg/config"
	apierrors "mpscraper/pkg/errors"
	"mpscraper/pkg/logger"
	"mpscraper/pkg/wechat"
)

// RateLimiter paces outgoing requests and accepts outcome feedback.
type RateLimiter interface {
	Wait(ctx context.Context) (time.Duration, error)
	ReportSuccess()
	ReportError(isRateLimit bool)
}

// ResponseTimeRecorder is implemented by limiters that tune themselves on
// observed latency. Detected by type assertion; feeding it is optional.
type ResponseTimeRecorder interface {
	RecordResponseTime(d time.Duration)
}

// CredentialSource supplies the active session for outgoing requests.
type CredentialSource interface {
	CurrentCredentials() *auth.Credentials
}

// Cache stores completed result sets keyed by account ID.
type Cache interface {
	Get(key string) *article.ResultSet
	Set(key string, rs *article.ResultSet)
}

// ListFetcher pages through an account's published articles, pacing every
// request through the rate limiter and reusing cached results when allowed.
type ListFetcher struct {
	client  *wechat.Client
	limiter RateLimiter
	creds   CredentialSource
	cache   Cache
	cfg     config.FetchConfig
	logger  logger.Logger
}

// New creates a list fetcher. The cache may be nil.
func New(client *wechat.Client, limiter RateLimiter, creds CredentialSource, cache Cache, cfg config.FetchConfig, log logger.Logger) *ListFetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	if cfg.PageSize <= 0 || cfg.PageSize > wechat.MaxPageSize {
		cfg.PageSize = wechat.MaxPageSize
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 3
	}
	return &ListFetcher{
		client:  client,
		limiter: limiter,
		creds:   creds,
		cache:   cache,
		cfg:     cfg,
		logger:  log,
	}
}

type fetchOptions struct {
	maxItems int
	useCache bool
}

// FetchOption adjusts a single fetch call.
type FetchOption func(*fetchOptions)

// WithMaxItems caps how many items are fetched for an account. Zero means
// no cap beyond the configured default.
func WithMaxItems(n int) FetchOption {
	return func(o *fetchOptions) {
		o.maxItems = n
	}
}

// WithoutCache forces a live fetch and skips the cache write-back.
func WithoutCache() FetchOption {
	return func(o *fetchOptions) {
		o.useCache = false
	}
}

func (f *ListFetcher) options(opts []FetchOption) fetchOptions {
	o := fetchOptions{
		maxItems: f.cfg.MaxItemsPerAccount,
		useCache: f.cache != nil,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if f.cache == nil {
		o.useCache = false
	}
	return o
}

// FetchPage fetches one page of items, returning the page and the total
// count the platform reports. Every call waits on the rate limiter first
// and reports the outcome back to it.
func (f *ListFetcher) FetchPage(ctx context.Context, account article.Account, begin, count int) ([]article.ListItem, int, error) {
	creds := f.creds.CurrentCredentials()
	if creds == nil || creds.IsExpired() {
		return nil, 0, apierrors.New(apierrors.KindAuth, 0, "not authenticated")
	}

	if count <= 0 || count > wechat.MaxPageSize {
		count = wechat.MaxPageSize
	}

	waited, err := f.limiter.Wait(ctx)
	if err != nil {
		return nil, 0, err
	}
	if waited > 0 {
		f.logger.DebugWithFields("rate limiter delayed request", map[string]interface{}{
			"account_id": account.ID,
			"waited_ms":  waited.Milliseconds(),
		})
	}

	start := time.Now()
	resp, err := f.client.FetchArticleList(ctx, creds.Token, account.ID, begin, count, creds.Cookies)
	elapsed := time.Since(start)
	if err != nil {
		f.limiter.ReportError(apierrors.IsRateLimit(err))
		return nil, 0, err
	}

	f.limiter.ReportSuccess()
	if recorder, ok := f.limiter.(ResponseTimeRecorder); ok {
		recorder.RecordResponseTime(elapsed)
	}

	items := make([]article.ListItem, 0, len(resp.RawItems))
	for _, raw := range resp.RawItems {
		item, err := wechat.ParseListItem(raw)
		if err != nil {
			f.logger.WarnWithFields("skipping malformed article entry", map[string]interface{}{
				"account_id": account.ID,
				"error":      err.Error(),
			})
			continue
		}
		items = append(items, item)
	}

	return items, resp.TotalCount, nil
}

// FetchAll pages through an account's articles until the platform runs out,
// the configured cap is reached, or an error stops progress. On error the
// partial result set collected so far is returned alongside the error.
func (f *ListFetcher) FetchAll(ctx context.Context, account article.Account, opts ...FetchOption) (*article.ResultSet, error) {
	o := f.options(opts)

	if o.useCache {
		if cached := f.cache.Get(account.ID); cached != nil {
			f.logger.InfoWithFields("serving result set from cache", map[string]interface{}{
				"account_id": account.ID,
				"items":      cached.Count(),
			})
			return cached, nil
		}
	}

	rs := article.NewResultSet(account)
	begin := 0

	for {
		items, total, err := f.FetchPage(ctx, account, begin, f.cfg.PageSize)
		if err != nil {
			return rs, err
		}

		rs.TotalCount = total
		added := rs.AddItems(items)

		f.logger.DebugWithFields("fetched article page", map[string]interface{}{
			"account_id": account.ID,
			"begin":      begin,
			"returned":   len(items),
			"added":      added,
			"total":      total,
		})

		if len(items) == 0 {
			break
		}
		if o.maxItems > 0 && rs.Count() >= o.maxItems {
			break
		}
		if total > 0 && rs.Count() >= total {
			break
		}
		if added == 0 {
			// The platform repeated a page; stop rather than loop.
			break
		}

		begin += len(items)
	}

	rs.FetchedAt = time.Now()

	if o.useCache {
		f.cache.Set(account.ID, rs)
	}

	f.logger.InfoWithFields("fetched account articles", map[string]interface{}{
		"account_id":   account.ID,
		"account_name": account.Name,
		"items":        rs.Count(),
		"total":        rs.TotalCount,
	})
	return rs, nil
}

// FetchCount returns how many articles the account has published, from a
// single minimal request.
func (f *ListFetcher) FetchCount(ctx context.Context, account article.Account) (int, error) {
	_, total, err := f.FetchPage(ctx, account, 0, 1)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// StreamItem is one element of a Stream: either an item or a terminal error.
type StreamItem struct {
	Item article.ListItem
	Err  error
}

// Stream fetches an account's articles page by page and delivers items on
// the returned channel as they arrive. The channel is closed when the
// account is exhausted, the cap is reached, an error occurs (delivered as
// the final element), or ctx is cancelled. Streaming always bypasses the
// cache; a partially consumed stream is not a usable cache entry.
func (f *ListFetcher) Stream(ctx context.Context, account article.Account, opts ...FetchOption) <-chan StreamItem {
	o := f.options(opts)
	out := make(chan StreamItem)

	go func() {
		defer close(out)

		begin := 0
		sent := 0
		seen := make(map[string]struct{})

		for {
			items, total, err := f.FetchPage(ctx, account, begin, f.cfg.PageSize)
			if err != nil {
				select {
				case out <- StreamItem{Err: err}:
				case <-ctx.Done():
				}
				return
			}

			for _, item := range items {
				if _, dup := seen[item.Link]; dup {
					continue
				}
				seen[item.Link] = struct{}{}

				select {
				case out <- StreamItem{Item: item}:
				case <-ctx.Done():
					return
				}

				sent++
				if o.maxItems > 0 && sent >= o.maxItems {
					return
				}
			}

			if len(items) == 0 {
				return
			}
			if total > 0 && sent >= total {
				return
			}
			begin += len(items)
		}
	}()

	return out
}
