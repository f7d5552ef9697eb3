// Package settings persists RuntimeSettings as YAML or TOML.
package settings

import (
	"bytes"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Veraticus/awakeguard/pkg/types"
)

// FileName is the settings file created in the default directory.
const FileName = "settings.yaml"

// Store reads and writes one settings file. The codec is chosen by
// extension: ".toml" uses TOML, anything else YAML.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore creates a store for path. An empty path selects DefaultPath.
func NewStore(path string, logger *slog.Logger) *Store {
	if path == "" {
		path = DefaultPath()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger.With("component", "settings")}
}

// DefaultPath returns the per-user settings file location.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "awakeguard", FileName)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "awakeguard", FileName)
	}
	return FileName
}

// Path returns the file the store reads and writes.
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored settings with out-of-range fields replaced by
// defaults. A missing file is created with defaults and an unparseable file
// is rewritten with defaults. A read error yields defaults together with the
// error; the file is left untouched.
func (s *Store) Load() (types.RuntimeSettings, error) {
	defaults := types.DefaultSettings()

	// #nosec G304 - the settings path comes from configuration or the user config dir
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("settings file missing, writing defaults", "path", s.path)
		s.saveLogged(defaults)
		return defaults, nil
	}
	if err != nil {
		s.logger.Warn("settings fallback", "reason", "read error", "error", err)
		return defaults, errors.Wrapf(err, "failed to read settings %s", s.path)
	}

	decoded := defaults
	if err := s.unmarshal(data, &decoded); err != nil {
		s.logger.Warn("settings fallback", "reason", "parse error", "error", err)
		s.saveLogged(defaults)
		return defaults, nil
	}

	resolved := ResolveDefaults(decoded)
	if resolved != decoded {
		s.logger.Info("settings fields reset to defaults", "path", s.path)
	}
	s.saveLogged(resolved)
	return resolved, nil
}

// Save validates and atomically replaces the settings file.
func (s *Store) Save(settings types.RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	data, err := s.marshal(settings)
	if err != nil {
		return errors.Wrap(err, "failed to encode settings")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.Wrapf(err, "failed to create settings directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary settings file")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "failed to write settings")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to write settings")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return errors.Wrapf(err, "failed to replace %s", s.path)
	}
	return nil
}

func (s *Store) saveLogged(settings types.RuntimeSettings) {
	if err := s.Save(settings); err != nil {
		s.logger.Warn("failed to write settings", "path", s.path, "error", err)
	}
}

func (s *Store) isTOML() bool {
	return strings.EqualFold(filepath.Ext(s.path), ".toml")
}

func (s *Store) unmarshal(data []byte, out *types.RuntimeSettings) error {
	if s.isTOML() {
		_, err := toml.Decode(string(data), out)
		return err
	}
	return yaml.Unmarshal(data, out)
}

func (s *Store) marshal(settings types.RuntimeSettings) ([]byte, error) {
	if s.isTOML() {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(settings); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return yaml.Marshal(settings)
}

// ResolveDefaults replaces each out-of-range field with its default and
// trims the monitor selector. Fields are resolved independently.
func ResolveDefaults(s types.RuntimeSettings) types.RuntimeSettings {
	defaults := types.DefaultSettings()

	if s.SchemaVersion <= 0 {
		s.SchemaVersion = defaults.SchemaVersion
	}
	if s.IdleThresholdSeconds < 0 || s.IdleThresholdSeconds > types.MaxIdleThresholdSeconds {
		s.IdleThresholdSeconds = defaults.IdleThresholdSeconds
	}
	if !types.ValidOpacity(s.OverlayOpacity) {
		s.OverlayOpacity = defaults.OverlayOpacity
	}
	if s.AntiSleepIntervalSeconds <= 0 || s.AntiSleepIntervalSeconds > types.MaxAntiSleepIntervalSeconds {
		s.AntiSleepIntervalSeconds = defaults.AntiSleepIntervalSeconds
	}
	if !s.SleepProtectionScope.Valid() {
		s.SleepProtectionScope = defaults.SleepProtectionScope
	}
	s.OverlayMonitor = strings.TrimSpace(s.OverlayMonitor)
	return s
}

// Apply sets one field from its settings-file key and text value. The
// value is read as a plain YAML scalar.
func Apply(s types.RuntimeSettings, key, value string) (types.RuntimeSettings, error) {
	if !knownKey(key) {
		return s, errors.Wrapf(types.ErrInvalidConfiguration, "unknown setting %q", key)
	}

	doc := yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: key},
			{Kind: yaml.ScalarNode, Value: strings.TrimSpace(value)},
		},
	}
	next := s
	if err := doc.Decode(&next); err != nil {
		return s, errors.Wrapf(types.ErrInvalidConfiguration, "invalid value %q for %s", value, key)
	}
	if err := next.Validate(); err != nil {
		return s, err
	}
	return next, nil
}

// Keys lists the settings-file keys in declaration order.
func Keys() []string {
	var node yaml.Node
	if err := node.Encode(types.DefaultSettings()); err != nil {
		return nil
	}
	keys := make([]string, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keys = append(keys, node.Content[i].Value)
	}
	return keys
}

func knownKey(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}
