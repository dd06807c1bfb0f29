// Package fileutil writes files so readers never observe partial content.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteAtomic writes data to a temp file beside path and renames it into
// place.
func WriteAtomic(path string, data []byte, mode os.FileMode) error {
	_, err := writeAtomic(path, data, mode, false)
	return err
}

// WriteAtomicVerified is WriteAtomic plus a read-back of the temp file whose
// SHA-256 must match data before the rename. It returns the hex digest.
// The temp file is removed on mismatch.
func WriteAtomicVerified(path string, data []byte, mode os.FileMode) (string, error) {
	return writeAtomic(path, data, mode, true)
}

func writeAtomic(path string, data []byte, mode os.FileMode, verify bool) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	cleanup := func(err error) (string, error) {
		_ = os.Remove(tmpName)
		return "", err
	}

	_, writeErr := tmp.Write(data)
	syncErr := tmp.Sync()
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, syncErr, closeErr); err != nil {
		return cleanup(err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return cleanup(err)
	}

	want := sha256.Sum256(data)
	if verify {
		got, size, err := hashFile(tmpName)
		if err != nil {
			return cleanup(fmt.Errorf("verify: %w", err))
		}
		if size != int64(len(data)) {
			return cleanup(fmt.Errorf("write size mismatch: expected %d bytes, wrote %d bytes", len(data), size))
		}
		if !bytes.Equal(got, want[:]) {
			return cleanup(errors.New("write hash mismatch: file corrupted on disk"))
		}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return cleanup(err)
	}
	return hex.EncodeToString(want[:]), nil
}

func hashFile(path string) ([]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return nil, 0, err
	}
	return h.Sum(nil), n, nil
}
