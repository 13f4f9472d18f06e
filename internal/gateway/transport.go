package gateway

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-client/internal/api"
)

// TokenSource supplies the current bearer token, or "" when logged out.
// The auth context implements it.
type TokenSource interface {
	Token() string
}

// transport is a RoundTripper that attaches the Authorization header and a
// request id to every outgoing call, mirroring the cross-cutting request
// interceptor of the web client.
type transport struct {
	base   http.RoundTripper
	tokens TokenSource
	log    zerolog.Logger
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if req.Header.Get(api.HeaderRequestID) == "" {
		req.Header.Set(api.HeaderRequestID, uuid.New().String())
	}
	if t.tokens != nil {
		if tok := t.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(req)

	evt := t.log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Dur("elapsed", time.Since(start))
	if err != nil {
		evt.Err(err).Msg("Request failed")
		return nil, err
	}
	evt.Int("status", resp.StatusCode).Msg("Request completed")
	return resp, nil
}

func newHTTPClient(timeout time.Duration, tokens TokenSource, log zerolog.Logger) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &transport{
			base:   http.DefaultTransport,
			tokens: tokens,
			log:    log,
		},
	}
}
