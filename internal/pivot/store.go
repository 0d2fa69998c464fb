// Package pivot holds the only long-lived core state: the last accepted
// profile and whether the last dispatch run failed.
package pivot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	cerr "git.home.luguber.info/inful/cdispd/internal/errors"
	"git.home.luguber.info/inful/cdispd/internal/foundation"
	"git.home.luguber.info/inful/cdispd/internal/profile"
)

const stateFile = "pivot.json"

// persisted is the on-disk shape of the pivot state.
type persisted struct {
	AcceptedProfile json.RawMessage `json:"accepted_profile,omitempty"`
	LastRunFailed   bool            `json:"last_run_failed"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Store persists the pivot state as a JSON file in the data directory,
// written atomically via a temp file rename.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates the data directory if needed and returns a Store.
func NewStore(dataDir string) foundation.Result[*Store] {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return foundation.Err[*Store](
			cerr.Wrap(err, cerr.CategoryState, cerr.SeverityFatal, "cannot create data directory").
				WithContext("data_dir", dataDir))
	}
	return foundation.Ok(&Store{path: filepath.Join(dataDir, stateFile)})
}

// Load reads the persisted state. A missing file is not an error: it means
// no profile was ever accepted.
func (s *Store) Load() (accepted *profile.Profile, lastRunFailed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, cerr.Wrap(err, cerr.CategoryState, cerr.SeverityError, "cannot read pivot state")
	}

	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, false, cerr.Wrap(err, cerr.CategoryState, cerr.SeverityError, "malformed pivot state")
	}
	if len(p.AcceptedProfile) > 0 {
		accepted, err = profile.ParseJSON(p.AcceptedProfile)
		if err != nil {
			return nil, false, err
		}
	}
	return accepted, p.LastRunFailed, nil
}

// Save writes the state atomically.
func (s *Store) Save(accepted *profile.Profile, lastRunFailed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := persisted{LastRunFailed: lastRunFailed, UpdatedAt: time.Now()}
	if accepted != nil {
		raw, err := profile.EncodeJSON(accepted)
		if err != nil {
			return cerr.Wrap(err, cerr.CategoryState, cerr.SeverityError, "cannot encode accepted profile")
		}
		p.AcceptedProfile = raw
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return cerr.Wrap(err, cerr.CategoryState, cerr.SeverityError, "cannot encode pivot state")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return cerr.Wrap(err, cerr.CategoryState, cerr.SeverityError, "cannot write pivot state")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return cerr.Wrap(err, cerr.CategoryState, cerr.SeverityError, "cannot replace pivot state")
	}
	return nil
}
