package secondary

import "context"

// URLChecker defines the secondary port for source reachability checks.
type URLChecker interface {
	// Check performs a single attempt and classifies the outcome. It does not
	// retry; the caller decides which statuses are worth another attempt.
	Check(ctx context.Context, url string) URLCheckResult
}

// URLCheckResult is the classified outcome of one check attempt.
type URLCheckResult struct {
	Status     string // PASS, HTTP_404, HTTP_403, HTTP_429, HTTP_5XX, HTTP_OTHER, SSL_ERROR, TIMEOUT, REDIRECT_LOOP, INVALID_URL
	StatusCode int    // 0 when no response was received
	FinalURL   string
	Detail     string
}
