package codec

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"topomerge/internal/domain"
)

// Importer interface for importing records from various formats
type Importer interface {
	Parse(r io.Reader) ([]domain.Record, error)
	Format() string
}

// Exporter interface for exporting records to various formats
type Exporter interface {
	Export(records []domain.Record, w io.Writer) error
	Format() string
}

// Codec both imports and exports one format
type Codec interface {
	Importer
	Exporter
}

// ForFormat returns the codec named format ("json", "yaml" or "yml")
func ForFormat(format string) (Codec, error) {
	switch strings.ToLower(format) {
	case "json":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	}
	return nil, fmt.Errorf("unknown format %q", format)
}

// ForPath picks a codec from the file extension, JSON when there is none
func ForPath(path string) (Codec, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return NewJSONCodec(), nil
	}
	return ForFormat(ext)
}

// unwrap accepts a list of records, a single record, or a listing
// envelope whose records sit under "items"
func unwrap(doc any) ([]domain.Record, error) {
	switch v := doc.(type) {
	case nil:
		return []domain.Record{}, nil
	case []any:
		out := make([]domain.Record, 0, len(v))
		for i, item := range v {
			rec, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("item %d is %s, not an object", i, domain.KindOf(item))
			}
			out = append(out, rec)
		}
		return out, nil
	case map[string]any:
		if items, ok := v["items"].([]any); ok {
			return unwrap(items)
		}
		return []domain.Record{v}, nil
	}
	return nil, fmt.Errorf("document is %s, not a record list", domain.KindOf(doc))
}
