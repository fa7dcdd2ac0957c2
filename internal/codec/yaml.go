package codec

import (
	"errors"
	"fmt"
	"io"

	"topomerge/internal/domain"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles generic YAML import/export
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// Parse imports records from YAML. Values are normalized to the shapes
// JSON decoding produces so records from either format compare equal.
func (c *YAMLCodec) Parse(r io.Reader) ([]domain.Record, error) {
	var doc any
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	records, err := unwrap(Normalize(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return records, nil
}

// Export exports records to YAML
func (c *YAMLCodec) Export(records []domain.Record, w io.Writer) error {
	if records == nil {
		records = []domain.Record{}
	}
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(records); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}

// Normalize converts a YAML-decoded tree to JSON shapes: every number
// becomes float64 and every mapping map[string]any.
func Normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = Normalize(child)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[fmt.Sprint(k)] = Normalize(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = Normalize(child)
		}
		return out
	}
	if n, ok := domain.AsNumber(v); ok {
		return n
	}
	return v
}
