package blob

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeNewlines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lf untouched", in: "a\nb\n", want: "a\nb\n"},
		{name: "crlf", in: "a\r\nb\r\n", want: "a\nb\n"},
		{name: "bare cr", in: "a\rb", want: "a\nb"},
		{name: "mixed", in: "a\r\nb\rc\n", want: "a\nb\nc\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(NormalizeNewlines([]byte(tt.in))))
		})
	}
}

func TestSum_ContentAddressability(t *testing.T) {
	// id == md5(normalizeNewlines(bytes)), lower-hex.
	content := []byte("hello\r\nworld\n")
	want := md5.Sum([]byte("hello\nworld\n"))
	assert.Equal(t, hex.EncodeToString(want[:]), Sum(content))

	// Normalization makes CRLF and LF content address the same blob.
	assert.Equal(t, Sum([]byte("x\ny\n")), Sum([]byte("x\r\ny\r\n")))
}

func TestStore_PutDedup(t *testing.T) {
	s := NewStore()
	id1 := s.Put([]byte("same\n"))
	id2 := s.Put([]byte("same\r\n"))
	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, s.Len())

	got, ok := s.Get(id1)
	require.True(t, ok)
	assert.Equal(t, "same\n", string(got))
}

func TestStore_PutFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("line\r\n"), 0o644))

	s := NewStore()
	id, err := s.PutFile(path)
	require.NoError(t, err)
	got, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, "line\n", string(got))

	_, err = s.PutFile(filepath.Join(dir, "missing.txt"))
	require.Error(t, err)
}
