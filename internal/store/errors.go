package store

import "errors"

var (
	ErrConflict      = errors.New("conflict")
	ErrNotFound      = errors.New("not found")
	ErrBusy          = errors.New("calendar busy")
	ErrNotConfigured = errors.New("schedule not configured")
)
