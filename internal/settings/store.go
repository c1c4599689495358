package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Kind names a backend strategy.
type Kind string

const (
	KindAuto        Kind = "auto"
	KindFile        Kind = "file"
	KindBrowser     Kind = "browser"
	KindUnsupported Kind = "unsupported"
)

// ParseKind parses a backend name. The empty string means KindAuto.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindAuto, nil
	case KindAuto, KindFile, KindBrowser, KindUnsupported:
		return k, nil
	default:
		return "", fmt.Errorf("unknown settings backend %q (want auto, file, browser or unsupported)", s)
	}
}

// Capabilities describes the storage primitives the host offers.
type Capabilities struct {
	Filesystem   bool
	LocalStorage LocalStorage
}

// Options configures New.
type Options struct {
	Kind         Kind
	Capabilities Capabilities
	Defaults     DefaultsProvider

	// File backend.
	AppName    string
	FileName   string
	Dir        string // pins the directory; disables the fallback chain
	Candidates []DirCandidate

	// Browser backend.
	StorageKey string

	Logger *slog.Logger
}

// Store is the settings facade. It picks one backend at construction and
// keeps no document between calls.
type Store struct {
	backend  Backend
	defaults DefaultsProvider
	logger   *slog.Logger
}

// New selects a backend from opts.Kind and opts.Capabilities. KindAuto
// prefers localStorage when present (a browser host), then the filesystem.
// A requested backend whose capability is missing becomes an
// UnsupportedBackend naming what was missing.
func New(opts Options) *Store {
	if opts.Defaults == nil {
		opts.Defaults = EmbeddedDefaults{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	b := selectBackend(opts)
	opts.Logger.Debug("settings: backend selected", "backend", b.Name(), "requested", opts.Kind)
	return &Store{backend: b, defaults: opts.Defaults, logger: opts.Logger}
}

// NewWithBackend wraps an already constructed backend.
func NewWithBackend(b Backend, defaults DefaultsProvider) *Store {
	if defaults == nil {
		defaults = EmbeddedDefaults{}
	}
	return &Store{backend: b, defaults: defaults, logger: slog.Default()}
}

func selectBackend(opts Options) Backend {
	caps := opts.Capabilities
	kind := opts.Kind
	if kind == "" {
		kind = KindAuto
	}
	if kind == KindAuto {
		switch {
		case caps.LocalStorage != nil:
			kind = KindBrowser
		case caps.Filesystem:
			kind = KindFile
		default:
			kind = KindUnsupported
		}
	}

	switch kind {
	case KindFile:
		if !caps.Filesystem {
			return UnsupportedBackend{Reason: "no writable filesystem"}
		}
		candidates := opts.Candidates
		if opts.Dir != "" {
			candidates = FixedDir(opts.Dir)
		}
		return NewFileBackend(FileOptions{
			AppName:    opts.AppName,
			FileName:   opts.FileName,
			Candidates: candidates,
			Defaults:   opts.Defaults,
			Logger:     opts.Logger,
		})
	case KindBrowser:
		if caps.LocalStorage == nil {
			return UnsupportedBackend{Reason: "no localStorage"}
		}
		return NewBrowserStorageBackend(caps.LocalStorage, BrowserOptions{
			Key:      opts.StorageKey,
			Defaults: opts.Defaults,
			Logger:   opts.Logger,
		})
	case KindUnsupported:
		return UnsupportedBackend{Reason: "no durable storage in this environment"}
	default:
		return UnsupportedBackend{Reason: fmt.Sprintf("unknown backend %q", kind)}
	}
}

// Backend returns the selected backend.
func (s *Store) Backend() Backend { return s.backend }

// Target returns where the backend persists the document.
func (s *Store) Target(ctx context.Context) (string, error) {
	return s.backend.Target(ctx)
}

// Load returns the stored document. It seeds storage with the defaults on
// first run and reseeds it when the stored bytes are corrupt. When storage
// is unavailable the defaults are still returned together with an error
// wrapping ErrStorageUnavailable; the document is nil only if the defaults
// themselves cannot be read.
func (s *Store) Load(ctx context.Context) (Document, error) {
	doc, err := s.backend.Load(ctx)
	if err == nil || doc != nil || !errors.Is(err, ErrStorageUnavailable) {
		return doc, err
	}
	defaults, defErr := readDefaults(s.defaults)
	if defErr != nil {
		return nil, errors.Join(err, defErr)
	}
	return defaults, err
}

// Save replaces the stored document. Failures wrap ErrWriteFailure,
// ErrStorageUnavailable or ErrInvalidDocument.
func (s *Store) Save(ctx context.Context, doc Document) error {
	return s.backend.Save(ctx, doc)
}

// Defaults returns a fresh copy of the default document.
func (s *Store) Defaults() (Document, error) {
	return readDefaults(s.defaults)
}

// Reset overwrites storage with the defaults and returns them.
func (s *Store) Reset(ctx context.Context) (Document, error) {
	defaults, err := readDefaults(s.defaults)
	if err != nil {
		return nil, err
	}
	if err := s.backend.Save(ctx, defaults); err != nil {
		return nil, err
	}
	s.logger.Info("settings: reset to defaults", "backend", s.backend.Name())
	return defaults, nil
}

// Update loads a snapshot, lets fn edit a copy of it and saves the whole
// copy back. Nothing is saved if Load or fn fails.
func (s *Store) Update(ctx context.Context, fn func(Document) error) (Document, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	next := doc.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := s.Save(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}
