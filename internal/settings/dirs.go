package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// DirCandidate is one directory the file backend may store settings in.
type DirCandidate struct {
	Name string
	Dir  func() (string, error)
}

// DefaultCandidates returns the directory fallback chain in priority order:
//
//   - app-data: the platform config dir (os.UserConfigDir), e.g.
//     ~/.config/<app> on Linux or ~/Library/Application Support/<app> on macOS
//   - home: a hidden ~/.<app> directory derived from the home variable
//   - temp: <os.TempDir>/<app>
func DefaultCandidates(appName string) []DirCandidate {
	return []DirCandidate{
		{
			Name: "app-data",
			Dir: func() (string, error) {
				dir, err := os.UserConfigDir()
				if err != nil {
					return "", err
				}
				return filepath.Join(dir, appName), nil
			},
		},
		{
			Name: "home",
			Dir: func() (string, error) {
				env := homeEnvVar()
				home := os.Getenv(env)
				if home == "" {
					return "", fmt.Errorf("$%s is not defined", env)
				}
				return filepath.Join(home, "."+appName), nil
			},
		},
		{
			Name: "temp",
			Dir: func() (string, error) {
				return filepath.Join(os.TempDir(), appName), nil
			},
		},
	}
}

// FixedDir pins the file backend to dir with no fallback.
func FixedDir(dir string) []DirCandidate {
	return []DirCandidate{{
		Name: "fixed",
		Dir:  func() (string, error) { return dir, nil },
	}}
}

func homeEnvVar() string {
	switch runtime.GOOS {
	case "windows":
		return "USERPROFILE"
	case "plan9":
		return "home"
	default:
		return "HOME"
	}
}

// resolveDir returns the first candidate that can be created and written to.
func resolveDir(candidates []DirCandidate) (string, string, error) {
	if len(candidates) == 0 {
		return "", "", fmt.Errorf("%w: no candidate directories", ErrStorageUnavailable)
	}
	var errs []error
	for _, c := range candidates {
		dir, err := c.Dir()
		if err == nil && dir == "" {
			err = errors.New("empty path")
		}
		if err == nil {
			err = ensureWritable(dir)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name, err))
			continue
		}
		return c.Name, dir, nil
	}
	return "", "", fmt.Errorf("%w: %w", ErrStorageUnavailable, errors.Join(errs...))
}

// ensureWritable creates dir if needed and proves it accepts new files.
// MkdirAll treats an existing directory as success, so concurrent callers
// are harmless.
func ensureWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Remove(name)
}
