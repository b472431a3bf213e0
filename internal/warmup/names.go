package warmup

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// MaxFamousNames caps how many names a famous warm-up will look up.
const MaxFamousNames = 10

var (
	// ErrNotNameArray means the model output held no JSON array.
	ErrNotNameArray = errors.New("model output is not a JSON array of names")
	// ErrNoValidNames means the array held nothing usable as a name.
	ErrNoValidNames = errors.New("model output contains no valid Pokémon names")
)

var famousName = regexp.MustCompile(`^[a-z0-9-]+$`)

// ParseNames extracts up to MaxFamousNames normalized names from free-form
// model output. The whole text is parsed as a JSON array first; failing that,
// the span from the first '[' to the last ']' is tried.
func ParseNames(raw string) ([]string, error) {
	items, ok := parseArray(raw)
	if !ok {
		items, ok = parseEmbeddedArray(raw)
	}
	if !ok {
		return nil, ErrNotNameArray
	}

	seen := make(map[string]struct{}, len(items))
	names := make([]string, 0, MaxFamousNames)
	for _, item := range items {
		n := strings.TrimSpace(strings.ToLower(stringify(item)))
		if n == "" {
			continue
		}
		n = strings.TrimPrefix(n, `"`)
		n = strings.TrimSuffix(n, `"`)
		if !famousName.MatchString(n) {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}

	if len(names) == 0 {
		return nil, ErrNoValidNames
	}
	if len(names) > MaxFamousNames {
		names = names[:MaxFamousNames]
	}
	return names, nil
}

func parseArray(raw string) ([]any, bool) {
	var items []any
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, false
	}
	return items, items != nil
}

func parseEmbeddedArray(text string) ([]any, bool) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end == -1 || end <= start {
		return nil, false
	}
	return parseArray(text[start : end+1])
}

// stringify renders a decoded JSON value the way a loose string conversion
// would, so numbers and literals can still be filtered by pattern.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, stringify(e))
		}
		return strings.Join(parts, ",")
	default:
		return "[object]"
	}
}
