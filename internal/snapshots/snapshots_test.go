package snapshots

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seekerworks/jobpilot/internal/logging"
)

func TestSaveAndLoad(t *testing.T) {
	s, err := New(t.TempDir(), time.Hour, logging.NewNop())
	require.NoError(t, err)

	page := []byte("<html><body>" + strings.Repeat("job card ", 500) + "</body></html>")
	path, err := s.Save("indeed", page)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".html.zst"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(len(page)), "repetitive HTML should compress")

	got, err := s.Load(path)
	require.NoError(t, err)
	assert.Equal(t, page, got)
}

func TestSweepRemovesOnlyStale(t *testing.T) {
	s, err := New(t.TempDir(), 24*time.Hour, logging.NewNop())
	require.NoError(t, err)

	stalePath, err := s.Save("linkedin", []byte("<html>old</html>"))
	require.NoError(t, err)
	freshPath, err := s.Save("linkedin", []byte("<html>new</html>"))
	require.NoError(t, err)

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stalePath, old, old))

	removed, err := s.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(stalePath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(freshPath)
	assert.NoError(t, err)
}

func TestSweepDisabled(t *testing.T) {
	s, err := New(t.TempDir(), 0, logging.NewNop())
	require.NoError(t, err)

	path, err := s.Save("remoteok", []byte("<html></html>"))
	require.NoError(t, err)
	old := time.Now().Add(-720 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	removed, err := s.Sweep()
	require.NoError(t, err)
	assert.Zero(t, removed)
}
