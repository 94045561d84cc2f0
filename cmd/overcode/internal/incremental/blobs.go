package incremental

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// BlobStore is a write-once, content-addressed file store. Each blob is a
// file named by its hex hash holding the raw content. Blobs are never
// deleted.
type BlobStore struct {
	dir string
}

// NewBlobStore returns a store rooted at dir. The directory is not created;
// see Layout.EnsureLayout.
func NewBlobStore(dir string) *BlobStore {
	return &BlobStore{dir: dir}
}

// Dir returns the blob directory.
func (b *BlobStore) Dir() string {
	return b.dir
}

// Path returns where the blob for hash lives (or would live).
func (b *BlobStore) Path(hash string) string {
	return filepath.Join(b.dir, hash)
}

// Exists reports whether a blob for hash has been stored.
func (b *BlobStore) Exists(hash string) bool {
	if validHash(hash) != nil {
		return false
	}
	info, err := os.Stat(b.Path(hash))
	return err == nil && info.Mode().IsRegular()
}

// Save stores data under hash unless a blob with that name already exists.
// It reports whether a new file was written. The caller is trusted to pass
// the correct hash for data.
func (b *BlobStore) Save(hash string, data []byte) (bool, error) {
	if err := validHash(hash); err != nil {
		return false, err
	}
	final := b.Path(hash)
	if _, err := os.Stat(final); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, ioErr("stat blob", final, err)
	}

	tmp, err := os.CreateTemp(b.dir, ".blob-*")
	if err != nil {
		return false, ioErr("create blob", final, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return false, ioErr("write blob", final, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return false, ioErr("write blob", final, err)
	}
	if err := os.Rename(tmpPath, final); err != nil {
		_ = os.Remove(tmpPath)
		return false, ioErr("rename blob", final, err)
	}
	return true, nil
}

// Read returns the content stored for hash.
func (b *BlobStore) Read(hash string) ([]byte, error) {
	if err := validHash(hash); err != nil {
		return nil, err
	}
	path := b.Path(hash)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ioErr("read blob", path, err)
	}
	return data, nil
}

// validHash rejects anything that is not a non-empty lowercase hex string,
// which also keeps blob names from escaping the store directory.
func validHash(hash string) error {
	if hash == "" {
		return fmt.Errorf("invalid blob hash: empty")
	}
	for _, c := range hash {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return fmt.Errorf("invalid blob hash %q", hash)
		}
	}
	return nil
}
