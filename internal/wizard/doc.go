// Package wizard drives the booth flow: an explicit stage machine that owns
// all round state, renders through a pluggable view, and walks a guest from
// welcome through photo capture to the generated result.
package wizard
