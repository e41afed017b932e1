package domain

import "errors"

var (
	// ErrMentionNotFound is returned when a mention ID has no row.
	ErrMentionNotFound = errors.New("mention not found")

	// ErrStatsNotFound is returned when a user has no stats row yet.
	ErrStatsNotFound = errors.New("ghost stats not found")

	// ErrSettingsOutOfRange is returned when a runtime setting violates its
	// allowed bounds (timeout 10-3600s, min response length 1-100 chars).
	ErrSettingsOutOfRange = errors.New("settings value out of range")
)
