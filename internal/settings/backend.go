package settings

import "context"

// Backend abstracts where the settings document lives. The file backend
// serves native platforms, the browser backend a synchronous key/value
// store such as window.localStorage, and the unsupported backend
// environments with neither.
type Backend interface {
	// Name identifies the backend kind ("file", "browser", "unsupported").
	Name() string
	// Target resolves the storage location, e.g. a file path.
	Target(ctx context.Context) (string, error)
	// Load returns the stored document, seeding or recovering with the
	// defaults when storage is empty or corrupt.
	Load(ctx context.Context) (Document, error)
	// Save replaces the stored document as a whole.
	Save(ctx context.Context, doc Document) error
}
