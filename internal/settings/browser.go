package settings

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
)

// DefaultStorageKey is the localStorage key the document is stored under.
const DefaultStorageKey = "studybuddy.settings"

// LocalStorage is a synchronous string key/value store with the semantics
// of the Web Storage API. GetItem reports ok=false for an absent key.
type LocalStorage interface {
	GetItem(key string) (value string, ok bool, err error)
	SetItem(key, value string) error
}

// BrowserOptions configures a BrowserStorageBackend.
type BrowserOptions struct {
	Key      string
	Defaults DefaultsProvider
	Logger   *slog.Logger
}

// BrowserStorageBackend stores the document as one JSON string under a
// fixed key.
type BrowserStorageBackend struct {
	storage LocalStorage
	key     string
	policy  *policy
}

func NewBrowserStorageBackend(storage LocalStorage, opts BrowserOptions) *BrowserStorageBackend {
	if opts.Key == "" {
		opts.Key = DefaultStorageKey
	}
	b := &BrowserStorageBackend{storage: storage, key: opts.Key}
	b.policy = newPolicy("browser", b, opts.Defaults, opts.Logger)
	return b
}

func (b *BrowserStorageBackend) Name() string { return "browser" }

func (b *BrowserStorageBackend) Target(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "localStorage:" + b.key, nil
}

func (b *BrowserStorageBackend) Load(ctx context.Context) (Document, error) {
	return b.policy.load(ctx)
}

func (b *BrowserStorageBackend) Save(ctx context.Context, doc Document) error {
	return b.policy.save(ctx, doc)
}

func (b *BrowserStorageBackend) readRaw(_ context.Context) ([]byte, error) {
	v, ok, err := b.storage.GetItem(b.key)
	if err != nil {
		return nil, fmt.Errorf("getItem %q: %w", b.key, err)
	}
	if !ok {
		return nil, fmt.Errorf("key %q: %w", b.key, fs.ErrNotExist)
	}
	return []byte(v), nil
}

func (b *BrowserStorageBackend) writeRaw(_ context.Context, data []byte) error {
	if err := b.storage.SetItem(b.key, string(data)); err != nil {
		return fmt.Errorf("setItem %q: %w", b.key, err)
	}
	return nil
}
