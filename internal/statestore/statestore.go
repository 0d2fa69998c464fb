// Package statestore maintains the per-component state markers other tooling
// inspects to see which components are pending or were dispatched. One empty
// file per component name in the state directory.
package statestore

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	cerr "git.home.luguber.info/inful/cdispd/internal/errors"
	"git.home.luguber.info/inful/cdispd/internal/foundation"
)

// Store is a filesystem-backed marker store. Mark and Clear are idempotent;
// clearing an absent marker is not an error.
type Store struct {
	dir string
}

// NewStore creates the state directory if needed and returns a Store.
func NewStore(dir string) foundation.Result[*Store] {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return foundation.Err[*Store](
			cerr.Wrap(err, cerr.CategoryState, cerr.SeverityFatal, "cannot create state directory").
				WithContext("state_dir", dir))
	}
	return foundation.Ok(&Store{dir: dir})
}

// Dir returns the state directory.
func (s *Store) Dir() string { return s.dir }

// Mark creates or touches the marker for name.
func (s *Store) Mark(name string) error {
	p, err := s.markerPath(name)
	if err != nil {
		return err
	}
	stamp := time.Now().UTC().Format(time.RFC3339) + "\n"
	if err := os.WriteFile(p, []byte(stamp), 0o640); err != nil {
		return cerr.Wrap(err, cerr.CategoryState, cerr.SeverityWarning, "cannot write state marker").
			WithContext("component", name)
	}
	return nil
}

// Clear removes the marker for name if present.
func (s *Store) Clear(name string) error {
	p, err := s.markerPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return cerr.Wrap(err, cerr.CategoryState, cerr.SeverityWarning, "cannot remove state marker").
			WithContext("component", name)
	}
	return nil
}

// Has reports whether a marker exists for name.
func (s *Store) Has(name string) bool {
	p, err := s.markerPath(name)
	if err != nil {
		return false
	}
	_, statErr := os.Stat(p)
	return statErr == nil
}

// List returns the marked component names, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, cerr.Wrap(err, cerr.CategoryState, cerr.SeverityWarning, "cannot list state directory")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// markerPath validates name before joining it with the directory. Component
// names come from profile tree children and never contain separators; anything
// else is rejected rather than escaping the state dir.
func (s *Store) markerPath(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return "", cerr.Newf(cerr.CategoryValidation, cerr.SeverityError, "invalid component name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}
