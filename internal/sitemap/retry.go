package sitemap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryDelays is the spec's exact linear-ish backoff schedule (§4.1):
// "retries are 3 attempts with linear backoff (1s, 3s, 8s) on 5xx /
// connection errors".
var retryDelays = []time.Duration{1 * time.Second, 3 * time.Second, 8 * time.Second}

// retryableError marks an error that connection-level or 5xx retry logic
// should retry; a plain error (e.g. a 4xx response) is not retried.
type retryableError struct{ err error }

func (r *retryableError) Error() string { return r.err.Error() }
func (r *retryableError) Unwrap() error { return r.err }

// fixedScheduleBackOff replays retryDelays verbatim and then stops. The
// library's built-in exponential/constant policies can't express an
// arbitrary fixed sequence, so this is a one-off backoff.BackOff rather
// than a stock one.
type fixedScheduleBackOff struct {
	delays []time.Duration
	next   int
}

func newFixedScheduleBackOff(delays []time.Duration) *fixedScheduleBackOff {
	return &fixedScheduleBackOff{delays: delays}
}

func (b *fixedScheduleBackOff) NextBackOff() time.Duration {
	if b.next >= len(b.delays) {
		return backoff.Stop
	}
	d := b.delays[b.next]
	b.next++
	return d
}

func (b *fixedScheduleBackOff) Reset() { b.next = 0 }

// fetch performs an HTTP GET with up to len(retryDelays) retries on
// connection errors or 5xx responses; 4xx responses fail immediately.
func (w *Walker) fetch(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	operation := func() error {
		b, err := w.fetchOnce(ctx, url)
		if err != nil {
			if _, retryable := err.(*retryableError); !retryable {
				return backoff.Permanent(err)
			}
			return err
		}
		body = b
		return nil
	}

	policy := backoff.WithContext(newFixedScheduleBackOff(retryDelays), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	return body, nil
}

func (w *Walker) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	if cached, ok := w.bodyCache.Get(url); ok {
		return cached.([]byte), nil
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, &retryableError{err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, &retryableError{fmt.Errorf("server error: %s", resp.Status)}
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("client error: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	w.bodyCache.Set(url, body, bodyCacheTTL)
	return body, nil
}
