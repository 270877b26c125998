package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// maxBodyBytes caps every upstream payload. Search pages are small JSON or
// HTML documents; anything bigger is not something we want to parse.
const maxBodyBytes = 5 << 20

// DefaultUserAgent identifies the service to upstream sites.
const DefaultUserAgent = "design-feed/1.0 (+https://github.com/fleveque/design-feed)"

// HTTPOptions configures the shared client used by the HTTP adapters.
type HTTPOptions struct {
	Client    *http.Client
	UserAgent string
	// RatePerMinute enables a local quota. Zero means unlimited.
	RatePerMinute int
}

// source bundles what every HTTP adapter needs to make a request.
type source struct {
	name      string
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
}

func newSource(name string, opts HTTPOptions) source {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	s := source{name: name, client: client, userAgent: ua}
	if opts.RatePerMinute > 0 {
		// Same shape as the LLM quota: one token every minute/N, burst of 1.
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMinute)), 1)
	}
	return s
}

// get performs a GET and returns the body of a 2xx response. Non-2xx
// statuses, transport failures and an exhausted local quota all come back
// as classified *Error values.
func (s source) get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	// The request path never waits on a quota: a provider out of tokens is
	// reported as rate limited and the engine moves on to the next one.
	if s.limiter != nil && !s.limiter.Allow() {
		return nil, NewError(s.name, KindRateLimited, 0, errors.New("local quota exhausted"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, NewError(s.name, KindUpstream, 0, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", s.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, Classify(s.name, fmt.Errorf("requesting %s: %w", url, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, NewError(s.name, KindForStatus(resp.StatusCode), resp.StatusCode,
			fmt.Errorf("unexpected status: %s", string(snippet)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, Classify(s.name, fmt.Errorf("reading body: %w", err))
	}
	return body, nil
}
