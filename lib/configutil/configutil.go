package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

func splitExt(f string) (string, string) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i] == '.' {
			return f[0:i], f[i+1:]
		}
	}
	return f, ""
}

func parseFile[T any](contents []byte, out *T) error {
	// ${VAR} references are expanded before parsing so credentials
	// never have to live in the config file itself
	expanded := os.ExpandEnv(string(contents))
	return json5.Unmarshal([]byte(expanded), out)
}

// reads a configuration file, `name` should come with a file extension.
// two files are merged, where higher number is more prioritized:
// 1. <name>.<ext>
// 2. <name>.local.<ext>
// the .local file is meant to be gitignored per-deployment overrides.
func ReadConfig[T any](name string) (T, error) {
	var out T
	found := false

	dirname := filepath.Dir(name)
	prefixname, ext := splitExt(filepath.Base(name))

	baseFile, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(baseFile) > 0 {
		if err := parseFile(baseFile, &out); err != nil {
			return out, err
		}
		found = true
	}

	localPath := filepath.Join(dirname, fmt.Sprintf("%s.local.%s", prefixname, ext))
	localFile, err := os.ReadFile(localPath)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(localFile) > 0 {
		var override T
		if err := parseFile(localFile, &override); err != nil {
			return out, err
		}
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return out, err
		}
		slog.Info("merging config with local overrides", "local", localPath)
		found = true
	}

	if !found {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ReadConfig but it walks up the filesystem until the root to find a
// configuration file matching the name.
func ReadRecursively[T any](name string) (T, error) {
	var defaultOut T

	root, err := filepath.Abs("/")
	if err != nil {
		return defaultOut, err
	}
	current, err := os.Getwd()
	if err != nil {
		return defaultOut, err
	}

	for current != root {
		config, err := ReadConfig[T](filepath.Join(current, name))
		if os.IsNotExist(err) {
			current = filepath.Join(current, "..")
			continue
		}
		if err != nil {
			return defaultOut, err
		}
		return config, nil
	}

	return defaultOut, os.ErrNotExist
}
