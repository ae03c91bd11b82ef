package util

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oliveagle/jsonpath"
)

var tokenPattern = regexp.MustCompile("{(.*?)}")

// ResolveTemplate replaces {$.json.path} tokens in s with values looked up in
// data. Unresolvable tokens are replaced with an empty value.
func ResolveTemplate(data map[string]any, s string) string {
	tokens := tokenPattern.FindAllString(s, -1)
	if len(tokens) == 0 {
		return s
	}
	result := s
	for _, token := range tokens {
		path := strings.TrimSuffix(strings.TrimPrefix(token, "{"), "}")
		if !strings.HasPrefix(path, "$") {
			continue
		}
		value, err := jsonpath.JsonPathLookup(data, path)
		if err != nil {
			value = ""
		}
		result = strings.ReplaceAll(result, token, fmt.Sprintf("%v", value))
	}
	return result
}

// ResolveParams walks a parameter map and resolves every string value as a
// template against data. Nested maps and lists are resolved recursively.
func ResolveParams(data map[string]any, params map[string]any) map[string]any {
	output := make(map[string]any, len(params))
	for k, v := range params {
		output[k] = resolveValue(data, v)
	}
	return output
}

func resolveValue(data map[string]any, v any) any {
	switch val := v.(type) {
	case map[string]any:
		return ResolveParams(data, val)
	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			out = append(out, resolveValue(data, item))
		}
		return out
	case string:
		return ResolveTemplate(data, val)
	default:
		return v
	}
}
