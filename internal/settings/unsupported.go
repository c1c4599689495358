package settings

import (
	"context"
	"fmt"
)

// UnsupportedBackend is selected when the environment has no durable
// storage. Every operation fails with ErrStorageUnavailable so callers never
// mistake a no-op for a successful save.
type UnsupportedBackend struct {
	// Reason is included in every error, e.g. "no filesystem or localStorage".
	Reason string
}

func (UnsupportedBackend) Name() string { return "unsupported" }

func (u UnsupportedBackend) Target(context.Context) (string, error) {
	return "", u.err("resolve target")
}

func (u UnsupportedBackend) Load(context.Context) (Document, error) {
	return nil, u.err("load")
}

func (u UnsupportedBackend) Save(context.Context, Document) error {
	return u.err("save")
}

func (u UnsupportedBackend) err(op string) error {
	if u.Reason == "" {
		return fmt.Errorf("%s: %w", op, ErrStorageUnavailable)
	}
	return fmt.Errorf("%s: %w: %s", op, ErrStorageUnavailable, u.Reason)
}
