package crawler

import "errors"

// Error kinds surfaced by the harvesting pipeline. Callers classify with
// errors.Is; concrete errors wrap one of these with request details.
var (
	// ErrTransport marks network and HTTP failures.
	ErrTransport = errors.New("transport failure")
	// ErrTooManyRedirects marks a redirect chain over the configured limit.
	// Fetchers convert it into an empty Page instead of returning it.
	ErrTooManyRedirects = errors.New("too many redirects")
	// ErrStructure marks an expected field or element missing from a page.
	ErrStructure = errors.New("unexpected page structure")
	// ErrEncoding marks a response that is not valid JSON where JSON is expected.
	ErrEncoding = errors.New("invalid json payload")
	// ErrStalledFeed marks a critic feed that keeps returning empty pages
	// before its advertised total is reached.
	ErrStalledFeed = errors.New("critic feed stalled")
)
