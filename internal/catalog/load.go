package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a catalog export encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFor picks the encoding from a file extension; YAML is the default.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	default:
		return FormatYAML
	}
}

// Load reads an exported catalog from disk.
func Load(path string) ([]Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Book{}, nil
		}
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return Parse(data, FormatFor(path))
}

// Parse decodes bytes into a book list.
func Parse(data []byte, format Format) ([]Book, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return []Book{}, nil
	}
	var books []Book
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &books); err != nil {
			return nil, fmt.Errorf("parsing catalog JSON: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &books); err != nil {
			return nil, fmt.Errorf("parsing catalog YAML: %w", err)
		}
	}
	if books == nil {
		return []Book{}, nil
	}
	return books, nil
}
