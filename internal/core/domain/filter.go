package domain

import (
	"fmt"
	"sort"
	"strings"
)

// MetadataFilter is an equality predicate over chunk metadata fields.
// All pairs must match. An empty filter matches everything.
type MetadataFilter map[string]any

// Matches returns true if every field in the filter equals the metadata value.
// Numbers compare by value regardless of their Go type.
func (f MetadataFilter) Matches(m *ChunkMetadata) bool {
	for key, want := range f {
		got, ok := m.Field(key)
		if !ok {
			return false
		}
		if canonical(got) != canonical(want) {
			return false
		}
	}
	return true
}

// String renders the filter with sorted keys, e.g. "chunk_type=pdf_page,page_number=2".
func (f MetadataFilter) String() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+canonical(f[k]))
	}
	return strings.Join(parts, ",")
}

// ParseMetadataFilter parses "key=value" pairs into a filter.
func ParseMetadataFilter(pairs []string) (MetadataFilter, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	f := make(MetadataFilter, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: filter %q must be key=value", ErrInvalidInput, p)
		}
		f[key] = strings.TrimSpace(value)
	}
	return f, nil
}

func canonical(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case *int:
		if x == nil {
			return ""
		}
		return fmt.Sprint(*x)
	case ChunkType:
		return string(x)
	case float32:
		return canonicalFloat(float64(x))
	case float64:
		return canonicalFloat(x)
	default:
		return fmt.Sprint(x)
	}
}

func canonicalFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprint(int64(f))
	}
	return fmt.Sprint(f)
}
