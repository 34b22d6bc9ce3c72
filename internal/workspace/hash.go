package workspace

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// hashShift keeps hashes within 53 bits so they survive a round trip
// through JSON numbers in the UI.
const hashShift = 11

// Hash identifies a file or directory by its absolute path.
type Hash uint64

// HashPath returns the hash for a path.
func HashPath(path string) Hash {
	return Hash(xxhash.Sum64String(filepath.Clean(path)) >> hashShift)
}

// String returns the decimal form of the hash.
func (h Hash) String() string {
	return strconv.FormatUint(uint64(h), 10)
}

// UnmarshalJSON accepts a JSON number or a decimal string.
func (h *Hash) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	data = bytes.Trim(data, `"`)
	v, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid hash %s: %w", data, err)
	}
	*h = Hash(v)
	return nil
}
