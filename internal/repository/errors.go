// Package repository implements MySQL persistence for offerings,
// reservations, waitlist entries, promo codes and accounts.  Sentinel
// errors shared by several repositories live here so handlers can
// translate them into HTTP responses.  Store-level outcomes that the
// checkout engine owns (sold out, not found, integrity) are reported
// with the checkout package's sentinels instead.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own, such as a student reading someone else's
// reservation or an instructor listing a roster for an offering they
// do not teach.  Handlers translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an operation cannot proceed because of
// dependent state.  Handlers translate this into HTTP 409.
var ErrConflict = errors.New("conflict")
