package core

import (
	"fmt"
	"math"
	"strconv"

	"github.com/oceanbase/trinity-go/pkg/storage"
)

// configString reads a string setting from a provider config map.
// A missing key yields def.
func configString(m map[string]interface{}, key, def string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidConfig, key, v)
	}
	if s == "" {
		return def, nil
	}
	return s, nil
}

// configInt reads an integer setting from a provider config map. JSON decodes
// numbers as float64 and env/YAML may carry strings, so all three are accepted.
func configInt(m map[string]interface{}, key string, def int) (int, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: %s must be an integer, got %v", ErrInvalidConfig, key, n)
		}
		return int(n), nil
	case string:
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("%w: %s must be an integer, got %T", ErrInvalidConfig, key, v)
	}
}

// toUsageEntries converts storage counters to response entries.
func toUsageEntries(counters []*storage.UsageCounter) []UsageEntry {
	out := make([]UsageEntry, 0, len(counters))
	for _, c := range counters {
		out = append(out, UsageEntry{Name: c.Key, Count: c.Count, Genre: c.Genre})
	}
	return out
}
