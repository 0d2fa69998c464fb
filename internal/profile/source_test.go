package profile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeCache(t *testing.T, dir string, id uint64, doc string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "current.cid"), []byte(fmt.Sprintf("%d\n", id)), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("profile.%d.json", id)), []byte(doc), 0o644))
}

func TestCacheSourceFetch(t *testing.T) {
	dir := t.TempDir()
	writeCache(t, dir, 12, flatDoc)

	src, err := NewCacheSource(dir)
	require.NoError(t, err)

	id, err := src.CurrentID(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(12), id)

	p, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(12), p.ID())
}

func TestCacheSourceMissingID(t *testing.T) {
	src, err := NewCacheSource(t.TempDir())
	require.NoError(t, err)
	_, err = src.CurrentID(context.Background())
	require.Error(t, err)
}

func TestCacheSourceIDMismatch(t *testing.T) {
	dir := t.TempDir()
	// current.cid points at 13 but the document says 12.
	writeCache(t, dir, 12, flatDoc)
	require.NoError(t, os.Rename(filepath.Join(dir, "profile.12.json"), filepath.Join(dir, "profile.13.json")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "current.cid"), []byte("13"), 0o644))

	src, err := NewCacheSource(dir)
	require.NoError(t, err)
	_, err = src.Fetch(context.Background())
	require.Error(t, err)
}

func TestNewCacheSourceRejectsMissingDir(t *testing.T) {
	_, err := NewCacheSource(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}
