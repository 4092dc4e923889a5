package generate

import (
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)\n(.*?)```")

// ExtractCodeBlock pulls the first fenced code block from an LLM response.
// When lang is non-empty, a block tagged with that language is preferred over
// an untagged one. If the response contains no fences at all it is assumed to
// be bare code and returned trimmed.
func ExtractCodeBlock(response, lang string) string {
	matches := fencePattern.FindAllStringSubmatch(response, -1)
	if len(matches) == 0 {
		return strings.TrimSpace(response)
	}

	var fallback string
	for _, m := range matches {
		tag, body := m[1], strings.TrimSpace(m[2])
		if body == "" {
			continue
		}
		if lang != "" && strings.EqualFold(tag, lang) {
			return body
		}
		if fallback == "" {
			fallback = body
		}
	}
	return fallback
}

// ExtractJSONObject finds the outermost JSON object in an LLM response,
// which often wraps it in prose or fences. Returns false when no object
// delimiters are present.
func ExtractJSONObject(response string) (string, bool) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return response[start : end+1], true
}
