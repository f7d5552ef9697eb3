package status

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/Veraticus/awakeguard/pkg/interfaces"
	"github.com/Veraticus/awakeguard/pkg/types"
)

// FileWriter keeps the latest runtime status in a JSON file so other
// processes can read it
type FileWriter struct {
	mu   sync.Mutex
	path string
}

// NewFileWriter creates a writer for path
func NewFileWriter(path string) *FileWriter {
	return &FileWriter{path: path}
}

// Path returns the status file location
func (w *FileWriter) Path() string {
	return w.path
}

// Write implements interfaces.StatusSink
func (w *FileWriter) Write(status types.RuntimeStatus) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode status")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.path), 0o750); err != nil {
		return errors.Wrap(err, "failed to create status directory")
	}
	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o600); err != nil {
		return errors.Wrap(err, "failed to write status")
	}
	return errors.Wrap(os.Rename(tmp, w.path), "failed to replace status")
}

// ReadFile loads a status written by FileWriter
func ReadFile(path string) (types.RuntimeStatus, error) {
	var status types.RuntimeStatus
	// #nosec G304 - the status path comes from configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return status, errors.Wrapf(err, "failed to read status %s", path)
	}
	if err := json.Unmarshal(data, &status); err != nil {
		return status, errors.Wrapf(err, "failed to parse status %s", path)
	}
	return status, nil
}

// Ensure FileWriter implements StatusSink
var _ interfaces.StatusSink = (*FileWriter)(nil)
