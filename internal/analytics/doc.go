// Package analytics posts best-effort usage events to the logging sink.
// Delivery failures are swallowed.
package analytics
