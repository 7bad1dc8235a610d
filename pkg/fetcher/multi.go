package fetcher

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"mpscraper/pkg/article"
)

// FetchMany fetches several accounts concurrently, bounded by the configured
// concurrency limit. Accounts share the fetcher's rate limiter, so adding
// workers raises parallelism without raising the request rate.
//
// Failed accounts are logged and left out of the result; one bad account
// never sinks a batch. The returned map is keyed by account ID.
func (f *ListFetcher) FetchMany(ctx context.Context, accounts []article.Account, opts ...FetchOption) map[string]*article.ResultSet {
	results := make(map[string]*article.ResultSet, len(accounts))
	if len(accounts) == 0 {
		return results
	}

	sem := semaphore.NewWeighted(int64(f.cfg.MaxConcurrency))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, account := range accounts {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled; report what finished.
			break
		}

		wg.Add(1)
		go func(account article.Account) {
			defer wg.Done()
			defer sem.Release(1)

			rs, err := f.FetchAll(ctx, account, opts...)
			if err != nil {
				f.logger.ErrorWithFields("account fetch failed", map[string]interface{}{
					"account_id":   account.ID,
					"account_name": account.Name,
					"error":        err.Error(),
				})
				return
			}

			mu.Lock()
			results[account.ID] = rs
			mu.Unlock()
		}(account)
	}

	wg.Wait()
	return results
}
