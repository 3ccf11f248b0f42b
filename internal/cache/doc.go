// Package cache is the durable storage primitive behind the file cache. Files
// live under <StoragePath>/<destination>/<file name>; every write goes through a
// temp file + rename so readers never observe a partial file, and the file's
// modification time is the timestamp staleness is computed from. The store is
// built on afero so tests can run against an in-memory filesystem.
package cache
