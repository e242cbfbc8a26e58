// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value. An EVIDENCE_ENGINE_SECRET_<NAME> environment
// variable overrides the file of the same (upper-snake) name, so CI runs need no
// .secrets/ directory.
//
// Supported key files: ncbi-api-key, semantic-scholar-api-key, anthropic-api-key,
// openai-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const envPrefix = "EVIDENCE_ENGINE_SECRET_"

// Load reads all files in dir and returns a map of filename to trimmed contents,
// with environment overrides applied on top.
// A missing directory or missing files are not errors; Load returns the
// environment-derived entries only. Unreadable files produce a warning on
// stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	secrets := make(map[string]string)

	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, envPrefix) {
			continue
		}
		name := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(key, envPrefix), "_", "-"))
		value = strings.TrimSpace(value)
		if name != "" && value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}
