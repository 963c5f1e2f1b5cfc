package irail

import "fmt"

// FetchError is returned by all Client fetchers. Transient errors (network
// failures, timeouts, upstream 5xx, rate limiting) are worth retrying;
// permanent ones (bad request, unknown station) are not.
type FetchError struct {
	Endpoint   string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Temporary tells whether retrying the fetch can succeed
func (e *FetchError) Temporary() bool {
	return e.Transient
}
