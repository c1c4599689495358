package settings

import "errors"

var (
	// ErrStorageUnavailable means no writable location or backend could be
	// established. Load still returns the defaults alongside it when it can.
	ErrStorageUnavailable = errors.New("settings storage not available")

	// ErrCorruptData marks persisted bytes that do not decode to a document.
	// Load recovers from it by reseeding; it is never returned from Load.
	ErrCorruptData = errors.New("settings data is corrupt")

	// ErrWriteFailure means the write primitive failed. The previously
	// persisted document is left in place.
	ErrWriteFailure = errors.New("settings write failed")

	// ErrInvalidDocument means the document cannot be serialised.
	ErrInvalidDocument = errors.New("settings document is not serializable")
)
