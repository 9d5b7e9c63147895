// Package database archives finished analysis reports in SQLite.
//
// The archive is opt-in (--save) and separate from the in-memory history
// cache: it survives restarts and backs the history command, which lists
// earlier analyses of a URL and diffs the two most recent ones.
//
// SQLite is provided by modernc.org/sqlite, a CGO-free driver, so the
// archive is a single file in the XDG data directory.
package database
