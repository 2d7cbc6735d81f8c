package nl2sql

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/salesbot/salesbot/internal/chart"
)

// modelOutput is the only shape accepted from the model.
type modelOutput struct {
	SQL         string  `json:"sql"`
	ChartType   *string `json:"chartType"`
	Explanation string  `json:"explanation"`
}

type parsedOutput struct {
	SQL         string
	ChartKind   chart.Kind
	Explanation string
}

func parseModelOutput(raw string) (parsedOutput, error) {
	text := stripMarkdownFence(raw)
	object, ok := firstJSONObject(text)
	if !ok {
		return parsedOutput{}, fmt.Errorf("%w: no JSON object in response", ErrMalformedOutput)
	}

	decoder := json.NewDecoder(strings.NewReader(object))
	decoder.DisallowUnknownFields()
	var out modelOutput
	if err := decoder.Decode(&out); err != nil {
		return parsedOutput{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	sql := strings.TrimSpace(out.SQL)
	if sql == "" {
		return parsedOutput{}, fmt.Errorf("%w: sql is required", ErrMalformedOutput)
	}
	kind := chart.KindNone
	if out.ChartType != nil {
		parsed, ok := chart.ParseKind(*out.ChartType)
		if !ok {
			return parsedOutput{}, fmt.Errorf("%w: unsupported chartType %q", ErrMalformedOutput, *out.ChartType)
		}
		kind = parsed
	}
	return parsedOutput{
		SQL:         sql,
		ChartKind:   kind,
		Explanation: strings.TrimSpace(out.Explanation),
	}, nil
}

func stripMarkdownFence(value string) string {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

// firstJSONObject returns the first balanced {...} span, skipping braces
// inside JSON strings.
func firstJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
