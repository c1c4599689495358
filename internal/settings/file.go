package settings

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"
)

const (
	defaultAppName  = "studybuddy"
	defaultFileName = "settings.json"
)

// FileOptions configures a FileBackend. Zero values pick the defaults.
type FileOptions struct {
	AppName    string
	FileName   string
	Candidates []DirCandidate
	Defaults   DefaultsProvider
	Logger     *slog.Logger
}

// FileBackend stores the document as a JSON file in the first writable
// candidate directory.
type FileBackend struct {
	fileName   string
	candidates []DirCandidate
	logger     *slog.Logger
	policy     *policy

	group singleflight.Group
	mu    sync.Mutex
	path  string

	// writeFile replaces path with b; swapped in tests to simulate failures.
	writeFile func(path string, b []byte, mode os.FileMode) error
}

// NewFileBackend creates a FileBackend. Nothing touches the filesystem
// until the first Load, Save or Target call.
func NewFileBackend(opts FileOptions) *FileBackend {
	if opts.AppName == "" {
		opts.AppName = defaultAppName
	}
	if opts.FileName == "" {
		opts.FileName = defaultFileName
	}
	if opts.Candidates == nil {
		opts.Candidates = DefaultCandidates(opts.AppName)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	b := &FileBackend{
		fileName:   opts.FileName,
		candidates: opts.Candidates,
		logger:     opts.Logger,
		writeFile:  writeFileAtomic,
	}
	b.policy = newPolicy("file", b, opts.Defaults, opts.Logger)
	return b
}

func (b *FileBackend) Name() string { return "file" }

// Target returns the settings file path, resolving the directory on first
// use. Successful resolutions are cached; failures are retried next call.
func (b *FileBackend) Target(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	b.mu.Lock()
	path := b.path
	b.mu.Unlock()
	if path != "" {
		return path, nil
	}

	v, err, _ := b.group.Do("target", func() (any, error) {
		b.mu.Lock()
		cached := b.path
		b.mu.Unlock()
		if cached != "" {
			return cached, nil
		}

		name, dir, err := resolveDir(b.candidates)
		if err != nil {
			return "", err
		}
		if name != b.candidates[0].Name {
			b.logger.Warn("settings: preferred directory unavailable, using fallback",
				"candidate", name, "dir", dir)
		}
		p := filepath.Join(dir, b.fileName)
		b.mu.Lock()
		b.path = p
		b.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (b *FileBackend) Load(ctx context.Context) (Document, error) {
	return b.policy.load(ctx)
}

func (b *FileBackend) Save(ctx context.Context, doc Document) error {
	return b.policy.save(ctx, doc)
}

func (b *FileBackend) readRaw(ctx context.Context) ([]byte, error) {
	path, err := b.Target(ctx)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func (b *FileBackend) writeRaw(ctx context.Context, data []byte) error {
	path, err := b.Target(ctx)
	if err != nil {
		return err
	}
	return b.writeFile(path, data, 0o600)
}

// writeFileAtomic writes data to a temp file in the target's directory and
// renames it over path, so readers see either the old or the new content.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating settings dir: %w", err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	// Removing after a successful rename is a no-op error we ignore.
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
