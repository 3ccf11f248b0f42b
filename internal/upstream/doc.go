// Package upstream performs the network half of the file cache: a GET against
// the resource URL, optionally carrying authorization headers, with retries
// delegated to go-retryablehttp. Responses are folded into the resource error
// taxonomy (401 → unauthorized, other failures → load failed, empty body →
// no data) so callers never inspect HTTP status codes themselves.
package upstream
