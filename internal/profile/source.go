package profile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	cerr "git.home.luguber.info/inful/cdispd/internal/errors"
)

// Source supplies configuration profiles to the dispatch loop. A Source may
// return the same id repeatedly while no new profile exists; the loop is
// responsible for deciding whether anything needs doing.
type Source interface {
	// CurrentID returns the id of the most recent profile available.
	CurrentID(ctx context.Context) (uint64, error)
	// Fetch loads the most recent profile.
	Fetch(ctx context.Context) (*Profile, error)
}

// CacheSource reads profiles from a local cache directory maintained by the
// external fetch tooling:
//
//	<dir>/current.cid          current profile id, decimal text
//	<dir>/profile.<id>.json    one document per profile id
type CacheSource struct {
	dir string
}

// NewCacheSource creates a Source over a cache directory.
func NewCacheSource(dir string) (*CacheSource, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, cerr.Wrap(err, cerr.CategoryProfile, cerr.SeverityFatal, "profile cache directory unavailable")
	}
	if !fi.IsDir() {
		return nil, cerr.Newf(cerr.CategoryProfile, cerr.SeverityFatal, "profile cache path %s is not a directory", dir)
	}
	return &CacheSource{dir: dir}, nil
}

// Dir returns the cache directory, for watchers.
func (s *CacheSource) Dir() string { return s.dir }

// CurrentID implements Source.
func (s *CacheSource) CurrentID(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, "current.cid"))
	if err != nil {
		return 0, cerr.Wrap(err, cerr.CategoryProfile, cerr.SeverityError, "cannot read current profile id")
	}
	id, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, cerr.Wrap(err, cerr.CategoryProfile, cerr.SeverityError, "malformed current profile id")
	}
	return id, nil
}

// Fetch implements Source.
func (s *CacheSource) Fetch(ctx context.Context) (*Profile, error) {
	id, err := s.CurrentID(ctx)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, fmt.Sprintf("profile.%d.json", id)))
	if err != nil {
		return nil, cerr.Wrap(err, cerr.CategoryProfile, cerr.SeverityError, "cannot read profile document").
			WithContext("profile_id", id)
	}
	p, err := ParseJSON(data)
	if err != nil {
		return nil, err
	}
	if p.ID() != id {
		return nil, cerr.Newf(cerr.CategoryProfile, cerr.SeverityError,
			"profile document id %d does not match current id %d", p.ID(), id)
	}
	return p, nil
}
