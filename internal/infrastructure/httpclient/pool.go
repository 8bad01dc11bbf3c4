// Package httpclient provides the pooled HTTP client the fact providers
// share: bounded concurrency, bounded retries with jittered exponential
// backoff, and rolling request stats.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	MaxConcurrency int
	RequestTimeout time.Duration
	MaxRetries     int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	UserAgent      string
}

// DefaultConfig suits free-tier public APIs: small concurrency, two
// retries, sub-second initial backoff.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 8,
		RequestTimeout: 10 * time.Second,
		MaxRetries:     2,
		BackoffBase:    250 * time.Millisecond,
		BackoffMax:     4 * time.Second,
		UserAgent:      "tokensentry/1.0",
	}
}

// Pool is a shared HTTP client with a concurrency gate. One Pool serves all
// providers so the process-wide outbound pressure stays bounded no matter
// how many scans run at once.
type Pool struct {
	config    Config
	semaphore chan struct{}
	client    *http.Client

	mu    sync.Mutex
	stats Stats
}

// Stats is a rolling summary of pool activity. AvgLatency is an
// exponential moving average, not a percentile.
type Stats struct {
	TotalRequests   int64         `json:"total_requests"`
	SuccessRequests int64         `json:"success_requests"`
	FailedRequests  int64         `json:"failed_requests"`
	RetriedRequests int64         `json:"retried_requests"`
	AvgLatency      time.Duration `json:"avg_latency"`
	LastRequestAt   time.Time     `json:"last_request_at"`
}

func NewPool(config Config) *Pool {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 1
	}
	return &Pool{
		config:    config,
		semaphore: make(chan struct{}, config.MaxConcurrency),
		client: &http.Client{
			Timeout: config.RequestTimeout,
		},
	}
}

// Do executes the request with the pool's concurrency gate and retry
// policy. Requests with a consumed body and no GetBody cannot be retried
// and fail on their first error.
func (p *Pool) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	select {
	case p.semaphore <- struct{}{}:
		defer func() { <-p.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if p.config.UserAgent != "" {
		req.Header.Set("User-Agent", p.config.UserAgent)
	}

	var lastErr error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		attemptReq := req
		if attempt > 0 {
			if req.Body != nil && req.GetBody == nil {
				break
			}
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					break
				}
				attemptReq = req.Clone(ctx)
				attemptReq.Body = body
			}

			p.markRetried()
			backoff := p.backoff(attempt)
			log.Debug().
				Dur("backoff", backoff).
				Int("attempt", attempt).
				Str("url", req.URL.String()).
				Msg("Retrying HTTP request")

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		start := time.Now()
		resp, err := p.client.Do(attemptReq.WithContext(ctx))
		p.recordLatency(time.Since(start))

		if err != nil {
			lastErr = err
			if isRetryableError(err) && attempt < p.config.MaxRetries {
				continue
			}
			break
		}

		if isRetryableStatus(resp.StatusCode) && attempt < p.config.MaxRetries {
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
			drain(resp)
			continue
		}

		p.markOutcome(true)
		return resp, nil
	}

	p.markOutcome(false)
	return nil, lastErr
}

// GetJSON fetches url and decodes the JSON body into out.
func (p *Pool) GetJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return p.doJSON(ctx, req, out)
}

// PostJSON sends payload as a JSON body and decodes the JSON response into
// out. Used for the RPC-style fact sources.
func (p *Pool) PostJSON(ctx context.Context, url string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return p.doJSON(ctx, req, out)
}

func (p *Pool) doJSON(ctx context.Context, req *http.Request, out interface{}) error {
	resp, err := p.Do(ctx, req)
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, req.URL.Host)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Stats returns a snapshot of the rolling counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Pool) backoff(attempt int) time.Duration {
	backoff := p.config.BackoffBase * time.Duration(1<<uint(attempt-1))
	if backoff > p.config.BackoffMax {
		backoff = p.config.BackoffMax
	}
	// Up to 10% jitter so synchronized retries spread out.
	jitter := time.Duration(rand.Float64() * 0.1 * float64(backoff))
	return backoff + jitter
}

func (p *Pool) markOutcome(success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.TotalRequests++
	if success {
		p.stats.SuccessRequests++
	} else {
		p.stats.FailedRequests++
	}
}

func (p *Pool) markRetried() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.RetriedRequests++
}

func (p *Pool) recordLatency(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.LastRequestAt = time.Now()
	if p.stats.AvgLatency == 0 {
		p.stats.AvgLatency = d
		return
	}
	const alpha = 0.2
	p.stats.AvgLatency = time.Duration(float64(p.stats.AvgLatency)*(1-alpha) + float64(d)*alpha)
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"network is unreachable",
	} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
