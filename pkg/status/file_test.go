package status

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/awakeguard/pkg/types"
)

func TestFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "status.json")
	w := NewFileWriter(path)

	want := types.RuntimeStatus{
		Timestamp:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		IsIdle:           true,
		OverlayEnabled:   true,
		OverlayVisible:   true,
		AntiSleepEnabled: true,
		SettingsPath:     "/tmp/settings.yaml",
	}
	if err := w.Write(want); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"isIdle": true`, `"overlayVisible": true`, `"antiSleepActive": false`, `"settingsPath"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("status file missing %s:\n%s", key, data)
		}
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !got.Timestamp.Equal(want.Timestamp) || got.IsIdle != want.IsIdle || got.SettingsPath != want.SettingsPath {
		t.Errorf("ReadFile() = %+v, want %+v", got, want)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}

func TestReadFile_Missing(t *testing.T) {
	if _, err := ReadFile(filepath.Join(t.TempDir(), "none.json")); err == nil {
		t.Error("expected error for a missing status file")
	}
}
