// Package sanitizer normalizes free-text input before validation and
// storage. Every function is idempotent and never fails: malformed input is
// returned in its normalized form and left for validation to reject.
package sanitizer
