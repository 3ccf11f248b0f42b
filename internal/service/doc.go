// Package service implements the cache decision engine. Obtain applies one of
// the four cache policies to decide between serving a cached file, fetching
// synchronously, or serving a stale file while a detached goroutine refreshes
// it. The engine never retries on its own; retries belong to the Fetcher.
package service
