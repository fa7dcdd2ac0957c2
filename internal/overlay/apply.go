package overlay

import (
	"encoding/json"
	"errors"
	"fmt"

	"topomerge/internal/domain"
)

// Preview applies an override to a copy of base: objects recurse, absent and
// empty fields are skipped. Text fields are decoded as JSON before being
// stored, so the preview holds typed values where the backend would keep
// the raw text.
func Preview(base domain.Record, ov Override) (domain.Record, error) {
	out := domain.CopyRecord(base)
	if out == nil {
		out = domain.Record{}
	}
	var errs []error
	patch(out, ov, nil, &errs)
	return out, errors.Join(errs...)
}

func patch(dst map[string]any, ov map[string]any, at domain.KeyPath, errs *[]error) {
	for key, value := range ov {
		path := at.Append(domain.Field(key))
		switch v := value.(type) {
		case nil:
		case map[string]any:
			child, ok := dst[key].(map[string]any)
			if !ok {
				child = make(map[string]any)
				dst[key] = child
			}
			patch(child, v, path, errs)
		case string:
			if v == "" {
				continue
			}
			var decoded any
			if err := json.Unmarshal([]byte(v), &decoded); err != nil {
				*errs = append(*errs, FieldError{Path: path, Err: fmt.Errorf("%w: %v", domain.ErrInvalidOverrideJSON, err)})
				continue
			}
			dst[key] = decoded
		default:
			dst[key] = v
		}
	}
}
