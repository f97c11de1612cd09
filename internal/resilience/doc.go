// Package resilience groups the fault tolerance helpers used by the crawler's
// network-facing adapters.
//
//   - circuitbreaker: per-host breakers (sony/gobreaker) so a dead site stops
//     consuming fetch attempts for the rest of the run
//   - retry: exponential backoff with jitter for transient network failures
//
// Usage Example:
//
//	breakers := circuitbreaker.NewGroup(circuitbreaker.FeedFetchConfig())
//	err := retry.WithBackoff(ctx, retry.FeedFetchConfig(), func() error {
//	    body, err = circuitbreaker.Do(breakers.Get(host), func() ([]byte, error) {
//	        return fetch(ctx, feedURL)
//	    })
//	    return err
//	})
package resilience
