package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a widget catalog file
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// extensions lists the suffixes tried, in order, for a path without one
var extensions = []struct {
	ext    string
	format Format
}{
	{".json", FormatJSON},
	{".yaml", FormatYAML},
	{".yml", FormatYAML},
	{".toml", FormatTOML},
}

// Load reads and validates the catalog at path. A path without an extension
// is resolved against .json, .yaml, .yml and .toml in that order.
func Load(path string) (*Catalog, error) {
	resolved, format, err := resolve(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Problems: []string{err.Error()}, Err: err}
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, &ConfigError{Path: resolved, Problems: []string{"failed to read file"}, Err: err}
	}

	cat, err := Parse(data, format)
	if err != nil {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) {
			cfgErr.Path = resolved
		}
		return nil, err
	}
	return cat, nil
}

// Parse decodes and validates a catalog from raw bytes
func Parse(data []byte, format Format) (*Catalog, error) {
	var cat Catalog
	var err error

	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &cat)
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		err = dec.Decode(&cat)
	case FormatTOML:
		_, err = toml.Decode(string(data), &cat)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, &ConfigError{Problems: []string{fmt.Sprintf("failed to parse %s: %v", format, err)}, Err: err}
	}

	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// FormatFor returns the catalog format implied by a file extension
func FormatFor(path string) (Format, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range extensions {
		if e.ext == ext {
			return e.format, true
		}
	}
	return "", false
}

func resolve(path string) (string, Format, error) {
	if path == "" {
		return "", "", errors.New("no catalog path configured")
	}
	if filepath.Ext(path) != "" {
		format, ok := FormatFor(path)
		if !ok {
			return "", "", fmt.Errorf("unsupported catalog extension %q", filepath.Ext(path))
		}
		return path, format, nil
	}
	for _, e := range extensions {
		candidate := path + e.ext
		if _, err := os.Stat(candidate); err == nil {
			return candidate, e.format, nil
		}
	}
	return "", "", fmt.Errorf("no catalog file found for %s", path)
}
