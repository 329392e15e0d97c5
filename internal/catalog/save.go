package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/blackwell-systems/libractl/internal/util"
)

// Marshal encodes a book list.
func Marshal(books []Book, format Format) ([]byte, error) {
	if books == nil {
		books = []Book{}
	}
	if format == FormatJSON {
		data, err := json.MarshalIndent(books, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding catalog: %w", err)
		}
		return append(data, '\n'), nil
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(books); err != nil {
		return nil, fmt.Errorf("encoding catalog: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the book list to a file, encoded by its extension.
func Save(path string, books []Book) error {
	data, err := Marshal(books, FormatFor(path))
	if err != nil {
		return err
	}
	return util.WriteFileAtomic(path, data, 0600)
}

// Append adds a book to the list and returns the updated slice.
// If a book with the same ID already exists it is replaced.
func Append(books []Book, b Book) []Book {
	for i, existing := range books {
		if existing.ID == b.ID {
			books[i] = b
			return books
		}
	}
	return append(books, b)
}

// Remove removes a book by ID. Returns the updated slice and whether a book
// was actually removed.
func Remove(books []Book, id string) ([]Book, bool) {
	for i, b := range books {
		if b.ID == id {
			return append(books[:i], books[i+1:]...), true
		}
	}
	return books, false
}
