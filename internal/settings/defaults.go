package settings

import (
	_ "embed"
	"errors"
	"fmt"
)

//go:embed defaults.json
var bundledDefaults []byte

// DefaultsProvider supplies the bundled default document as raw JSON.
type DefaultsProvider interface {
	Defaults() ([]byte, error)
}

// EmbeddedDefaults serves the defaults.json asset compiled into the binary.
type EmbeddedDefaults struct{}

func (EmbeddedDefaults) Defaults() ([]byte, error) {
	return bundledDefaults, nil
}

// StaticDefaults serves a fixed blob. Hosts that ship their own asset and
// tests use it.
type StaticDefaults []byte

func (s StaticDefaults) Defaults() ([]byte, error) {
	if s == nil {
		return nil, errors.New("no defaults configured")
	}
	return []byte(s), nil
}

// readDefaults parses a fresh copy of the defaults on every call, so no
// caller can mutate a shared instance.
func readDefaults(p DefaultsProvider) (Document, error) {
	raw, err := p.Defaults()
	if err != nil {
		return nil, fmt.Errorf("%w: reading defaults: %w", ErrStorageUnavailable, err)
	}
	doc, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing defaults: %w", ErrStorageUnavailable, err)
	}
	return doc, nil
}
