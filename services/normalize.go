package services

import (
	"encoding/json"
	"strings"
)

// StringList accepts a missing value, a single string, a comma-separated
// string or an array of strings, and always decodes to an ordered list of
// trimmed, non-empty entries. Any other JSON shape decodes to an empty list.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	*l = NormalizeList(data)
	return nil
}

// NormalizeList coerces a raw JSON value into a list of strings. It never
// fails: unexpected shapes yield an empty list. Order and duplicates are kept.
func NormalizeList(raw json.RawMessage) []string {
	out := []string{}
	if len(raw) == 0 {
		return out
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return appendTrimmed(out, strings.Split(single, ","))
	}

	var many []json.RawMessage
	if err := json.Unmarshal(raw, &many); err != nil {
		return out
	}
	for _, item := range many {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			continue
		}
		out = appendTrimmed(out, []string{s})
	}
	return out
}

func appendTrimmed(out, values []string) []string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// NormalizeStrings trims values and drops empty ones. The result is never nil.
func NormalizeStrings(values []string) []string {
	return appendTrimmed([]string{}, values)
}
