package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"sjsage522/pricemonitor/helpers"
	"sjsage522/pricemonitor/internal/monitoring"
	"sjsage522/pricemonitor/logger"
	apperrors "sjsage522/pricemonitor/pkg/errors"
	"sjsage522/pricemonitor/services/cache"
	"sjsage522/pricemonitor/services/proxy"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultBlockTime = 5 * time.Minute
	maxBodyBytes     = 10 << 20
)

var rateLimitStatuses = []int{http.StatusTooManyRequests, 430}

var errBodyTooLarge = errors.New("response body exceeds size limit")

// Result is a successfully fetched page
type Result struct {
	URL        string
	Body       []byte
	StatusCode int
	Attempts   int
	Duration   time.Duration
}

// Options configures a Fetcher. Zero values fall back to defaults, field by field
// for the retry policy.
type Options struct {
	Timeout          time.Duration
	Retry            RetryPolicy
	UserAgents       []string
	DefaultUserAgent string
	Cache            cache.CacheService
	BlockTime        time.Duration
	Proxy            proxy.ProxyManager
	Metrics          *monitoring.Metrics
	Client           *http.Client
}

// Fetcher retrieves product pages with retries, jittered backoff and per-host rate limit blocking
type Fetcher struct {
	client     *http.Client
	timeout    time.Duration
	policy     RetryPolicy
	userAgents []string
	cache      cache.CacheService
	blockTime  time.Duration
	proxy      proxy.ProxyManager
	metrics    *monitoring.Metrics
	maxBody    int64
	log        *logger.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

type proxyKey struct{}

// New creates a Fetcher
func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	opts.Retry = opts.Retry.withDefaults()
	if opts.BlockTime <= 0 {
		opts.BlockTime = defaultBlockTime
	}

	agents := helpers.UserAgents()
	if len(opts.UserAgents) > 0 {
		agents = opts.UserAgents
	}
	if opts.DefaultUserAgent != "" && !slices.Contains(agents, opts.DefaultUserAgent) {
		agents = append(slices.Clone(agents), opts.DefaultUserAgent)
	}

	client := opts.Client
	if client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if opts.Proxy != nil {
			transport.Proxy = func(req *http.Request) (*url.URL, error) {
				u, _ := req.Context().Value(proxyKey{}).(*url.URL)
				return u, nil
			}
		}
		client = &http.Client{Transport: transport}
	}

	return &Fetcher{
		client:     client,
		timeout:    opts.Timeout,
		policy:     opts.Retry,
		userAgents: agents,
		cache:      opts.Cache,
		blockTime:  opts.BlockTime,
		proxy:      opts.Proxy,
		metrics:    opts.Metrics,
		maxBody:    maxBodyBytes,
		log:        logger.ForFetcher(),
		sleep:      sleepContext,
	}
}

// Policy returns the retry policy in use
func (f *Fetcher) Policy() RetryPolicy {
	return f.policy
}

// Fetch GETs rawURL. 503 responses and network errors are retried up to
// maxRetries attempts (policy default when maxRetries <= 0); any other
// non-200 status fails immediately.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, maxRetries int) (*Result, error) {
	if !helpers.IsValidURL(rawURL) {
		return nil, apperrors.NewInvalidURL(rawURL)
	}
	if err := f.checkBlocked(rawURL); err != nil {
		return nil, err
	}

	start := time.Now()
	attempts := f.policy.Attempts(maxRetries)
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if ctx.Err() != nil {
			return nil, apperrors.NewCancelled(rawURL, ctx.Err())
		}

		status, header, body, err := f.attempt(ctx, rawURL)
		switch {
		case errors.Is(err, errBodyTooLarge):
			f.metrics.IncFetchAttempt("permanent")
			return nil, apperrors.NewParsing(rawURL, fmt.Sprintf("page larger than %d bytes", f.maxBody), err)

		case err != nil && ctx.Err() != nil:
			f.metrics.IncFetchAttempt("cancelled")
			return nil, apperrors.NewCancelled(rawURL, ctx.Err())

		case err != nil:
			f.metrics.IncFetchAttempt("transient")
			lastErr = apperrors.NewNetworkTransient(rawURL, 0, err)

		case status == http.StatusOK:
			f.metrics.IncFetchAttempt("ok")
			utf8Body, err := helpers.ToUTF8(body, header.Get("Content-Type"))
			if err != nil {
				return nil, apperrors.NewParsing(rawURL, "failed to decode body", err)
			}
			return &Result{
				URL:        rawURL,
				Body:       utf8Body,
				StatusCode: status,
				Attempts:   attempt + 1,
				Duration:   time.Since(start),
			}, nil

		case status == http.StatusServiceUnavailable:
			f.metrics.IncFetchAttempt("transient")
			lastErr = apperrors.NewNetworkTransient(rawURL, status, nil)

		case slices.Contains(rateLimitStatuses, status):
			f.metrics.IncFetchAttempt("rate_limited")
			return nil, f.block(rawURL, header.Get("Retry-After"))

		default:
			f.metrics.IncFetchAttempt("permanent")
			return nil, apperrors.NewNetworkPermanent(rawURL, status, nil)
		}

		if attempt == attempts-1 {
			break
		}

		wait := f.policy.Backoff(attempt)
		f.log.Warn().
			Str("url", rawURL).
			Int("attempt", attempt+1).
			Int("max_attempts", attempts).
			Dur("wait", wait).
			Err(lastErr).
			Msg("Transient fetch failure, retrying")

		if err := f.sleep(ctx, wait); err != nil {
			return nil, apperrors.NewCancelled(rawURL, err)
		}
	}

	return nil, apperrors.NewRetriesExhausted(rawURL, attempts, lastErr)
}

// attempt performs a single GET under the per-attempt timeout
func (f *Fetcher) attempt(ctx context.Context, rawURL string) (int, http.Header, []byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var proxyURL *url.URL
	if f.proxy != nil {
		proxyURL = f.proxy.Next()
		attemptCtx = context.WithValue(attemptCtx, proxyKey{}, proxyURL)
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	helpers.SetBrowserHeaders(req, helpers.RandomUserAgent(f.userAgents))

	resp, err := f.client.Do(req)
	if err != nil {
		if f.proxy != nil {
			f.proxy.MarkFailed(proxyURL)
		}
		return 0, nil, nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if f.proxy != nil {
		f.proxy.MarkHealthy(proxyURL)
	}

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return resp.StatusCode, resp.Header, nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > f.maxBody {
		return 0, nil, nil, errBodyTooLarge
	}
	return resp.StatusCode, resp.Header, body, nil
}

func blockKey(rawURL string) string {
	return "rate_limited:" + helpers.HostKey(rawURL)
}

// checkBlocked fails fast while the host is inside a rate limit block window
func (f *Fetcher) checkBlocked(rawURL string) error {
	if f.cache == nil {
		return nil
	}
	value, err := f.cache.Get(blockKey(rawURL))
	if err != nil {
		return nil
	}
	seconds, _ := strconv.Atoi(string(value))
	return apperrors.NewRateLimit(rawURL, time.Duration(seconds)*time.Second)
}

// block records a rate limit for the host and returns the error to report
func (f *Fetcher) block(rawURL, retryAfter string) error {
	blockFor := f.blockTime
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
		blockFor = time.Duration(secs) * time.Second
	}

	if f.cache != nil {
		value := []byte(strconv.Itoa(int(blockFor / time.Second)))
		if err := f.cache.Set(blockKey(rawURL), value, blockFor); err != nil {
			f.log.Warn().Err(err).Str("url", rawURL).Msg("Failed to record rate limit block")
		}
	}

	f.log.Warn().Str("url", rawURL).Dur("block_for", blockFor).Msg("Rate limited, blocking host")
	return apperrors.NewRateLimit(rawURL, blockFor)
}
