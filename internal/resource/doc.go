// Package resource holds the identifiers and error taxonomy shared by every
// layer of the file cache. An Identifier is the cache key for a remote file;
// FileName derives the on-disk name from it. Error carries the closed set of
// load failures (unauthorized, load failed, no data) that the transport and
// decision layers hand back to the coordinator.
package resource
