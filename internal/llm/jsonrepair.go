package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	fencePattern         = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	objectPattern        = regexp.MustCompile(`(?s)\{.*\}`)
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// ParseModelJSON parses a JSON object out of raw model output, tolerating
// the common failure modes: markdown code fences, prose around the object,
// and trailing commas. Values are stringified so numeric model output is
// usable as field text.
func ParseModelJSON(raw string) (map[string]string, error) {
	cleaned := strings.TrimSpace(raw)

	if m := fencePattern.FindStringSubmatch(cleaned); m != nil {
		cleaned = m[1]
	}
	if m := objectPattern.FindString(cleaned); m != "" {
		cleaned = m
	}
	cleaned = trailingCommaPattern.ReplaceAllString(cleaned, "$1")

	var parsed map[string]any
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("no valid JSON object in model output: %w", err)
	}

	out := make(map[string]string, len(parsed))
	for k, v := range parsed {
		out[k] = stringify(v)
	}
	return out, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
