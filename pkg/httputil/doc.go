// Package httputil provides the HTTP plumbing shared by the feed client and
// the image fetcher.
//
//   - [NewClient]: an *http.Client whose transport reports every request to
//     the registered observability hooks
//   - [CheckStatus]: maps response codes to not-found, rate-limited and
//     retryable errors
//   - [Retry]: automatic retry with exponential backoff
//
// Only errors wrapped in [RetryableError] are retried:
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return &httputil.RetryableError{Err: err}
//	    }
//	    ...
//	})
package httputil
