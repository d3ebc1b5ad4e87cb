// Package photo validates, rescales, and re-encodes guest captures so every
// generation submission satisfies the service's byte and dimension limits,
// and prepares art assets for compositing.
package photo
