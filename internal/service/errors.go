package service

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound covers both a missing listing and a missing conversation. It
	// is also what a non-participant may see instead of ErrForbidden when the
	// caller should not learn that the row exists.
	ErrNotFound = errors.New("not found")
	// ErrSelfConversation rejects a seller contacting their own listing.
	ErrSelfConversation = errors.New("cannot open a conversation with yourself")
	// ErrForbidden rejects any access by a non-participant.
	ErrForbidden = errors.New("forbidden")
	// ErrEmptyContent rejects a message that is blank after trimming.
	ErrEmptyContent = errors.New("message body is required")
	// ErrContentTooLong rejects a message over the configured length bound.
	ErrContentTooLong = errors.New("message body too long")
)

// domainErr reports whether err is part of the caller-facing taxonomy, as
// opposed to a store failure.
func domainErr(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSelfConversation) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrEmptyContent) ||
		errors.Is(err, ErrContentTooLong)
}

// transient reports whether err looks like a transient store failure worth one
// retry. Domain errors and record-not-found are definitive; everything else
// (timeouts, dropped connections) is not.
func transient(err error) bool {
	if err == nil || domainErr(err) {
		return false
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}
