// Package survey talks to the remote survey-data services used in event
// mode: the workshop list, the attendee lookup, and the workshop
// registration update.
package survey
