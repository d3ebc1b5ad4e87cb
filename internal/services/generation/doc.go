// Package generation submits normalized photos to the image generation
// backend and polls job results until they reach a terminal status.
package generation
