package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
)

// medium is the raw byte storage behind a backend. read must return an
// error matching fs.ErrNotExist when nothing has been stored yet.
type medium interface {
	readRaw(ctx context.Context) ([]byte, error)
	writeRaw(ctx context.Context, b []byte) error
}

// policy implements the seed and recovery rules shared by every durable
// backend. One policy guards one medium; mu serialises loads and saves so
// seeding can never overwrite a concurrent Save.
type policy struct {
	name     string
	medium   medium
	defaults DefaultsProvider
	logger   *slog.Logger

	mu sync.Mutex
}

func newPolicy(name string, m medium, defaults DefaultsProvider, logger *slog.Logger) *policy {
	if defaults == nil {
		defaults = EmbeddedDefaults{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &policy{name: name, medium: m, defaults: defaults, logger: logger}
}

func (p *policy) load(ctx context.Context) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	raw, err := p.medium.readRaw(ctx)
	switch {
	case err == nil:
		doc, decodeErr := Decode(raw)
		if decodeErr == nil {
			return doc, nil
		}
		p.logger.Warn("settings: stored document is corrupt, reseeding with defaults",
			"backend", p.name, "error", decodeErr)
		return p.seedLocked(ctx)
	case errors.Is(err, fs.ErrNotExist):
		p.logger.Info("settings: no stored document, seeding defaults", "backend", p.name)
		return p.seedLocked(ctx)
	default:
		// A read error says nothing about the stored bytes, so the stored
		// document is left alone and the caller gets the defaults.
		defaults, defErr := readDefaults(p.defaults)
		if defErr != nil {
			return nil, errors.Join(defErr, err)
		}
		if !errors.Is(err, ErrStorageUnavailable) {
			err = fmt.Errorf("%w: reading %s storage: %w", ErrStorageUnavailable, p.name, err)
		}
		return defaults, err
	}
}

// seedLocked writes the defaults to the medium and returns them. A failed
// seeding write is logged, not returned: the caller still gets a usable
// document and the failure resurfaces on the next Save.
func (p *policy) seedLocked(ctx context.Context) (Document, error) {
	defaults, err := readDefaults(p.defaults)
	if err != nil {
		return nil, err
	}
	b, err := Encode(defaults)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if err := p.medium.writeRaw(ctx, b); err != nil {
		p.logger.Warn("settings: could not persist defaults", "backend", p.name, "error", err)
	}
	return defaults, nil
}

func (p *policy) save(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := Encode(doc)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.medium.writeRaw(ctx, b); err != nil {
		if errors.Is(err, ErrStorageUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}
	return nil
}
