// Package httpcheck implements the URL checker port over net/http.
package httpcheck

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/example/contentgate/internal/core/sourcetrust"
	"github.com/example/contentgate/internal/ports/secondary"
)

// DefaultMaxRedirects is the redirect budget before a URL counts as a loop.
const DefaultMaxRedirects = 5

const userAgent = "contentgate-source-check/1.0"

var errTooManyRedirects = errors.New("too many redirects")

// Checker performs one reachability attempt per call. Retrying is the
// caller's concern.
type Checker struct {
	client       *http.Client
	maxRedirects int
}

// Option configures a Checker.
type Option func(*Checker)

// WithClient replaces the HTTP client. Its CheckRedirect is overwritten.
func WithClient(c *http.Client) Option {
	return func(ch *Checker) { ch.client = c }
}

// WithMaxRedirects sets the redirect budget.
func WithMaxRedirects(n int) Option {
	return func(ch *Checker) {
		if n >= 0 {
			ch.maxRedirects = n
		}
	}
}

// New creates a Checker. Per-attempt deadlines come from the caller's context.
func New(opts ...Option) *Checker {
	c := &Checker{
		client:       &http.Client{},
		maxRedirects: DefaultMaxRedirects,
	}
	for _, opt := range opts {
		opt(c)
	}
	client := *c.client
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) > c.maxRedirects {
			return errTooManyRedirects
		}
		for _, prev := range via {
			if prev.URL.String() == req.URL.String() {
				return errTooManyRedirects
			}
		}
		return nil
	}
	c.client = &client
	return c
}

// Check issues a GET for raw and classifies the outcome.
func (c *Checker) Check(ctx context.Context, raw string) secondary.URLCheckResult {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return secondary.URLCheckResult{
			Status: string(sourcetrust.StatusInvalidURL),
			Detail: fmt.Sprintf("not an absolute http(s) URL: %q", raw),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return secondary.URLCheckResult{Status: string(sourcetrust.StatusInvalidURL), Detail: err.Error()}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	result := secondary.URLCheckResult{
		Status:     string(ClassifyStatus(resp.StatusCode)),
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
	}
	if result.Status != string(sourcetrust.StatusPass) {
		result.Detail = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return result
}

// ClassifyStatus maps an HTTP status code to a URL status.
func ClassifyStatus(code int) sourcetrust.URLStatus {
	switch {
	case code >= 200 && code < 300:
		return sourcetrust.StatusPass
	case code == http.StatusNotFound, code == http.StatusGone:
		return sourcetrust.StatusHTTP404
	case code == http.StatusForbidden, code == http.StatusUnauthorized:
		return sourcetrust.StatusHTTP403
	case code == http.StatusTooManyRequests:
		return sourcetrust.StatusHTTP429
	case code >= 500:
		return sourcetrust.StatusHTTP5XX
	}
	return sourcetrust.StatusHTTPOther
}

func classifyError(err error) secondary.URLCheckResult {
	var (
		unknownAuthority x509.UnknownAuthorityError
		hostnameErr      x509.HostnameError
		invalidCert      x509.CertificateInvalidError
		recordHeaderErr  tls.RecordHeaderError
		certVerifyErr    *tls.CertificateVerificationError
		netErr           net.Error
	)
	switch {
	case errors.Is(err, errTooManyRedirects):
		return secondary.URLCheckResult{Status: string(sourcetrust.StatusRedirectLoop), Detail: err.Error()}
	case errors.As(err, &certVerifyErr), errors.As(err, &unknownAuthority), errors.As(err, &hostnameErr),
		errors.As(err, &invalidCert), errors.As(err, &recordHeaderErr):
		return secondary.URLCheckResult{Status: string(sourcetrust.StatusSSLError), Detail: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return secondary.URLCheckResult{Status: string(sourcetrust.StatusTimeout), Detail: err.Error()}
	case errors.As(err, &netErr) && netErr.Timeout():
		return secondary.URLCheckResult{Status: string(sourcetrust.StatusTimeout), Detail: err.Error()}
	}
	// Connection refused, DNS failures and resets are treated like a server
	// outage: worth another attempt.
	return secondary.URLCheckResult{Status: string(sourcetrust.StatusHTTP5XX), Detail: err.Error()}
}

var _ secondary.URLChecker = (*Checker)(nil)
