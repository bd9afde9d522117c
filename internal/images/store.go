// Package images stores receipt images under a local directory, named by
// their sha256 digest so the same image is never stored twice. The core
// only keeps the returned reference; it never interprets image bytes.
package images

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type Store struct {
	dir string
}

// NewStore creates the image directory if needed and returns a store over it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create image directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save copies the file at src into the store, named <sha256><ext>. If an
// identical image is already stored the existing file is reused. It returns
// the stored path and the content digest.
func (s *Store) Save(src string) (path, digest string, err error) {
	digest, err = hashFile(src)
	if err != nil {
		return "", "", err
	}

	ext := strings.ToLower(filepath.Ext(src))
	if ext == "" {
		ext = ".jpg"
	}
	dst := filepath.Join(s.dir, digest+ext)

	if _, err := os.Stat(dst); err == nil {
		return dst, digest, nil
	} else if !os.IsNotExist(err) {
		return "", "", fmt.Errorf("stat %s: %w", dst, err)
	}

	if err := copyFile(src, dst); err != nil {
		return "", "", err
	}
	return dst, digest, nil
}

// Remove deletes a stored image file. Removing an absent file is not an
// error.
func (s *Store) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove image %s: %w", path, err)
	}
	return nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open image %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash image %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open image %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(dst), ".img-*")
	if err != nil {
		return fmt.Errorf("create image file: %w", err)
	}
	defer os.Remove(out.Name())

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy image: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close image file: %w", err)
	}
	if err := os.Rename(out.Name(), dst); err != nil {
		return fmt.Errorf("store image: %w", err)
	}
	return nil
}
