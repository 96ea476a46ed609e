// Package calendar provides the scheduling adapter for the triage engine.
//
// It answers whether a requested meeting slot is free, suggests nearby
// slots when it is not, and inserts confirmed meetings as calendar
// events. Requested times arrive as free-form strings extracted by the
// classifier; a time this package cannot parse yields StatusUnknown rather
// than an error, which routes the message to human review.
package calendar
