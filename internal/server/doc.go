// Package server hosts the Fiber HTTP surface in front of the request
// coordinator: obtain requests, cached file streaming, purge and version
// endpoints live under the /-/ prefix, and every request carries an
// X-Request-ID generated by the middleware chain. Keep exports narrow and
// accept explicit dependencies so tests can build an App without a config file.
package server
