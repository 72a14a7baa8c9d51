package telegram

import (
	"net"
	"net/http"
	"time"

	coreconfig "github.com/AcmeNiles/AcmeTradeBot/core/config"
	"github.com/AcmeNiles/AcmeTradeBot/core/telegram/netutil"
)

const (
	dialTimeout         = 5 * time.Second
	tlsHandshakeTimeout = 5 * time.Second
	idleConnTimeout     = 30 * time.Second
	keepAlive           = 30 * time.Second
	// Long polls hold the response open for the poll timeout.
	clientTimeoutSlack = 20 * time.Second
)

// BuildHTTPClient returns the client used for Bot API calls. Transport errors
// are retried with the outbound remote policy; API errors are not.
func BuildHTTPClient(cfg *coreconfig.Config) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ExpectContinueTimeout: time.Second,
	}
	attempts := cfg.Remote.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	return &http.Client{
		Timeout: longPollTimeout(cfg) + clientTimeoutSlack,
		Transport: &retryTransport{
			base:     transport,
			attempts: attempts,
			backoff:  cfg.Remote.Backoff,
		},
	}
}

type retryTransport struct {
	base     http.RoundTripper
	attempts int
	backoff  time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= t.attempts; attempt++ {
		r := req
		if attempt > 1 {
			// Bodies that cannot be replayed get a single attempt.
			if req.Body != nil && req.GetBody == nil {
				return nil, lastErr
			}
			r = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				r.Body = body
			}
		}

		resp, err := t.base.RoundTrip(r)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !netutil.ShouldRetry(err) || attempt == t.attempts {
			break
		}
		if t.backoff <= 0 {
			continue
		}
		timer := time.NewTimer(t.backoff * time.Duration(attempt))
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}
