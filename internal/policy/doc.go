// Package policy describes how a cached file may be reused. A Policy is one of
// Never, Always, Lazy(cadence) or Required(cadence); the cadence is a calendar
// window such as "3 days" that IsExpired compares against a file's last write
// time. Policies round-trip through a short text form ("lazy:3d",
// "required:12h") so config files and HTTP requests can carry them.
package policy
