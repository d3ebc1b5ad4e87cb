// Package capture manages the booth camera lifecycle: acquiring the
// device, grabbing a still frame, and guaranteeing the stream is released
// once a still is confirmed or the guest switches to file upload.
package capture
