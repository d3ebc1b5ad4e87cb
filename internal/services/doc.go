// Package services defines the shared error taxonomy and context carriers used
// by the HTTP clients and wizard stages.
//
// Sentinel errors classify failures the way the UI needs to message them:
// payload-too-large, rate-limited, blocked, server failure, terminal job
// failure, and expiry. NewStatusError maps raw HTTP statuses into the taxonomy
// and UserMessage renders the guest-facing string for any wrapped error.
package services
