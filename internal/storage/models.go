package storage

import "errors"

// ErrQuotaExceeded is returned when a write would push an origin past its
// storage quota.
var ErrQuotaExceeded = errors.New("quota exceeded")

// DefaultOrigin is the origin the app's own web UI stores items under.
const DefaultOrigin = "app://studybuddy"
