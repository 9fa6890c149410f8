package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrServerError is wrapped by HTTPProber when the endpoint answered
// with a 5xx status.
var ErrServerError = errors.New("server error")

// userAgent identifies probes in the services' access logs.
const userAgent = "bank-deploy-healthcheck"

// Prober sends one health probe to a URL. A nil error means the endpoint
// is accepting requests.
type Prober interface {
	Probe(ctx context.Context, url string) error
}

// HTTPProber probes with a GET request.
//
// Any response below 500 counts as success: a login endpoint answering
// 401 or 405 to an unauthenticated GET is up and routing. Connection
// errors, timeouts and 5xx responses are failures.
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber creates a prober whose requests give up after timeout.
// A zero timeout means one second.
func NewHTTPProber(timeout time.Duration) *HTTPProber {
	if timeout == 0 {
		timeout = time.Second
	}
	// Keep-alives are disabled so every probe opens a fresh connection,
	// the way a new client would.
	transport := &http.Transport{
		DisableKeepAlives: true,
	}
	return &HTTPProber{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to form health check request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", url, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s returned %d", ErrServerError, url, resp.StatusCode)
	}
	return nil
}
