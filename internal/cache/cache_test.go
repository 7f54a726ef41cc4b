package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RecordAndLastRun(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.RecordRun("sha-1", "", map[string]int{"abc": 10, "def": 20}, 0, nil))
	require.NoError(t, s.RecordRun("sha-1", "no-output", nil, 2, nil))

	last, err := s.LastRun("sha-1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "no-output", last.Flags)
	assert.Equal(t, 2, last.ErrorCount)
	assert.Equal(t, 0, last.BlobCount)

	missing, err := s.LastRun("sha-unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_BlobRefs(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.RecordRun("sha-2", "", map[string]int{"abc": 10}, 0, nil))

	last, err := s.LastRun("sha-2")
	require.NoError(t, err)
	require.NotNil(t, last)
	require.Len(t, last.Blobs, 1)
	assert.Equal(t, "abc", last.Blobs[0].BlobID)
	assert.Equal(t, 10, last.Blobs[0].Size)
	assert.Equal(t, 1, last.BlobCount)
}

func TestStore_Variations(t *testing.T) {
	s := openTestStore(t)
	variations := []map[string]string{{"flavor": "se"}, {"flavor": "mp"}}
	require.NoError(t, s.RecordRun("sha-3", "", nil, 0, variations))

	last, err := s.LastRun("sha-3")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.JSONEq(t, `[{"flavor":"se"},{"flavor":"mp"}]`, string(last.Variations))
}
