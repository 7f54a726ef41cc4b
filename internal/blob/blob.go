// Package blob implements the content-addressed byte store backing the
// compiled image. Ids are the MD5 of newline-normalized content, so two
// compilations of byte-identical inputs address the same blobs.
package blob

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"github.com/oxhq/archc/internal/model"
)

// NormalizeNewlines rewrites CRLF and bare CR line endings to LF.
func NormalizeNewlines(data []byte) []byte {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(data, []byte("\r"), []byte("\n"))
}

// Sum returns the lower-hex MD5 of the newline-normalized content.
func Sum(data []byte) string {
	h := md5.Sum(NormalizeNewlines(data))
	return hex.EncodeToString(h[:])
}

// Store maps blob ids to their normalized content.
type Store struct {
	blobs map[string][]byte
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{blobs: map[string][]byte{}}
}

// Put normalizes and stores the content, returning its id. Storing the
// same content twice is a no-op yielding the same id.
func (s *Store) Put(data []byte) string {
	norm := NormalizeNewlines(data)
	id := Sum(norm)
	if _, ok := s.blobs[id]; !ok {
		s.blobs[id] = norm
	}
	return id
}

// PutFile reads, normalizes and stores a file's content. Read failures are
// fatal.
func (s *Store) PutFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", model.ErrIO.New(fmt.Sprintf("read %s: %v", path, err))
	}
	return s.Put(data), nil
}

// Get returns the content for an id.
func (s *Store) Get(id string) ([]byte, bool) {
	b, ok := s.blobs[id]
	return b, ok
}

// Len returns the number of stored blobs.
func (s *Store) Len() int {
	return len(s.blobs)
}

// IDs returns the stored ids, sorted.
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.blobs))
	for id := range s.blobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
