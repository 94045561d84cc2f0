package incremental

import (
	"crypto/sha256"
	"encoding/hex"
	"os"

	"github.com/cespare/xxhash/v2"
)

// HashFunc computes the content hash of the file at path.
type HashFunc func(path string) (string, error)

// HashFile reads the whole file and returns the hex SHA-256 of its content.
// Nothing is returned unless the file was read in full.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", ioErr("hash", path, err)
	}
	return HashBytes(data), nil
}

// HashBytes returns the hex SHA-256 of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// fingerprinter accumulates an xxHash64 over length-prefixed fields.
type fingerprinter struct {
	d *xxhash.Digest
}

func newFingerprinter() *fingerprinter {
	return &fingerprinter{d: xxhash.New()}
}

func (f *fingerprinter) str(s string) {
	f.u64(uint64(len(s)))
	_, _ = f.d.WriteString(s)
}

func (f *fingerprinter) u64(v uint64) {
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(v >> (8 * i))
	}
	_, _ = f.d.Write(buf[:])
}

func (f *fingerprinter) sum() string {
	return hex.EncodeToString(f.d.Sum(nil))
}
