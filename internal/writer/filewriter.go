package writer

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultPerm is the mode of manifest files written by FileWriter.
const DefaultPerm os.FileMode = 0o644

// FileWriter writes a manifest to a filesystem path atomically.
type FileWriter struct {
	Path string
	// Perm is the final file mode. Zero means DefaultPerm.
	Perm os.FileMode
}

// WriteManifest writes blob to a temp file next to Path, syncs it and renames
// it into place. A failed write leaves any previous manifest untouched.
func (w *FileWriter) WriteManifest(blob []byte) error {
	dir := filepath.Dir(w.Path)
	tmpFile, err := os.CreateTemp(dir, ".wprkit-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, writeErr := tmpFile.Write(blob); writeErr != nil {
		return fmt.Errorf("write temp file: %w", writeErr)
	}
	perm := w.Perm
	if perm == 0 {
		perm = DefaultPerm
	}
	if chmodErr := tmpFile.Chmod(perm); chmodErr != nil {
		return fmt.Errorf("chmod temp file: %w", chmodErr)
	}
	if syncErr := tmpFile.Sync(); syncErr != nil {
		return fmt.Errorf("sync temp file: %w", syncErr)
	}
	if closeErr := tmpFile.Close(); closeErr != nil {
		return fmt.Errorf("close temp file: %w", closeErr)
	}
	tmpFile = nil

	if renameErr := os.Rename(tmpPath, w.Path); renameErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", renameErr)
	}
	return nil
}
