package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/partscout/backend/internal/domain"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"

// maxBodyBytes caps how much of a listing page is read
const maxBodyBytes = 8 << 20

// Options configures a Fetcher
type Options struct {
	Name          string        // log tag, e.g. "Compuzone"
	Timeout       time.Duration // per attempt
	Retries       int           // extra attempts after the first
	Backoff       time.Duration // base delay, doubled per attempt
	RatePerSecond float64
	Burst         int
	UserAgent     string
}

// Request describes one HTTP call. A non-nil Form is sent as an
// application/x-www-form-urlencoded POST body.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Form   url.Values
	Header http.Header
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Fetcher performs HTTP requests with a per-attempt timeout, a bounded
// retry budget and client-side rate limiting. Cookies persist across calls.
type Fetcher struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	name        string
	retries     int
	backoff     time.Duration
	userAgent   string
}

// New creates a Fetcher from options, filling defaults for zero values
func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 2
	}
	if opts.Burst <= 0 {
		opts.Burst = 4
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Name == "" {
		opts.Name = "Fetch"
	}

	jar, _ := cookiejar.New(nil)

	return &Fetcher{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Jar:     jar,
		},
		rateLimiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
		name:        opts.Name,
		retries:     opts.Retries,
		backoff:     opts.Backoff,
		userAgent:   opts.UserAgent,
	}
}

// Do executes the request, retrying network errors, 429 and 5xx responses.
// Once the budget is exhausted the error wraps domain.ErrSourceUnavailable.
func (f *Fetcher) Do(ctx context.Context, r Request) (*Response, error) {
	var lastErr error
	attempts := f.retries + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := f.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrSourceUnavailable, err)
		}

		resp, err := f.doOnce(ctx, r)
		if err == nil {
			return resp, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, perm.err)
		}

		log.Printf("[%s] %s %s failed (attempt %d/%d): %v", f.name, r.method(), r.URL, attempt, attempts, err)
		lastErr = err

		if attempt < attempts {
			if err := sleep(ctx, exponentialBackoff(f.backoff, attempt)); err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
			}
		}
	}

	return nil, fmt.Errorf("%w: %d attempts: %v", domain.ErrSourceUnavailable, attempts, lastErr)
}

// Get is a shorthand for a GET request with query parameters
func (f *Fetcher) Get(ctx context.Context, rawURL string, query url.Values, header http.Header) (*Response, error) {
	return f.Do(ctx, Request{Method: http.MethodGet, URL: rawURL, Query: query, Header: header})
}

// PostForm is a shorthand for a form-encoded POST
func (f *Fetcher) PostForm(ctx context.Context, rawURL string, form url.Values, header http.Header) (*Response, error) {
	return f.Do(ctx, Request{Method: http.MethodPost, URL: rawURL, Form: form, Header: header})
}

func (f *Fetcher) doOnce(ctx context.Context, r Request) (*Response, error) {
	reqURL := r.URL
	if len(r.Query) > 0 {
		sep := "?"
		if strings.Contains(reqURL, "?") {
			sep = "&"
		}
		reqURL += sep + r.Query.Encode()
	}

	var body io.Reader
	if r.Form != nil {
		body = strings.NewReader(r.Form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, r.method(), reqURL, body)
	if err != nil {
		return nil, &permanentError{fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")
	if r.Form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	}
	for key, values := range r.Header {
		for i, v := range values {
			if i == 0 {
				req.Header.Set(key, v)
			} else {
				req.Header.Add(key, v)
			}
		}
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, &permanentError{fmt.Errorf("status %d", resp.StatusCode)}
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

func (r Request) method() string {
	if r.Method != "" {
		return r.Method
	}
	if r.Form != nil {
		return http.MethodPost
	}
	return http.MethodGet
}

// permanentError marks failures that retrying cannot fix
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

// exponentialBackoff returns base * 2^(attempt-1)
func exponentialBackoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base * time.Duration(1<<(attempt-1))
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
