// Package session persists booth state in SQLite: the single in-flight
// generation job used to resume polling after a restart, and the history of
// completed rounds.
package session
