package config

import (
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

// Load reads and validates the configuration from the directory.
func Load(fsys afero.Fs, path string) (*Configuration, error) {
	// If given the path to a tinysh.yaml file, move back up a level.
	if filepath.Base(path) == ConfigurationName {
		path = filepath.Dir(path)
	}

	configContents, err := afero.ReadFile(fsys, filepath.Join(path, ConfigurationName))
	if err != nil {
		return nil, err
	}
	var out Configuration
	if err := yaml.UnmarshalStrict(configContents, &out); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoadOrDefault loads the configuration from the directory, falling back to
// the built-in defaults if no file exists there.
func LoadOrDefault(fsys afero.Fs, path string) (*Configuration, error) {
	out, err := Load(fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return out, err
}

// Write stores the built-in default configuration in the directory so users
// have a file to edit. It refuses to clobber an existing one.
func Write(fsys afero.Fs, path string) (string, error) {
	dest := filepath.Join(path, ConfigurationName)
	if _, err := fsys.Stat(dest); err == nil {
		return dest, fs.ErrExist
	}
	return dest, afero.WriteFile(fsys, dest, defaultConfigData, 0644)
}
