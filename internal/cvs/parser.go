package cvs

import (
	"encoding/json"
	"regexp"
	"strings"

	"cvgenius-backend/internal/shared/telemetry"
)

var (
	fencedJSONRe  = regexp.MustCompile("```json\n([\\s\\S]*?)\n```")
	fencedHTMLRe  = regexp.MustCompile("```html\n([\\s\\S]*?)\n```")
	fencedPlainRe = regexp.MustCompile("```\n([\\s\\S]*?)\n```")

	// Quotes bare object keys.
	bareKeyRe = regexp.MustCompile(`([{,]\s*)([a-zA-Z_][a-zA-Z0-9_]*)(\s*:)`)
)

const parseExcerptLen = 200

// repairStrategy is one named textual repair applied to the raw payload.
// Strategies run in declaration order, each more invasive than the last;
// the first whose output parses wins and later ones never run.
type repairStrategy struct {
	name  string
	apply func(string) string
}

var repairStrategies = []repairStrategy{
	{name: "direct", apply: func(s string) string { return s }},
	{name: "repair-quoting", apply: repairQuoting},
	{name: "extract-object", apply: extractObject},
}

// UnwrapResponse strips a markdown code fence from a model reply, returning
// the inner payload. Input without a fence comes back trimmed and otherwise
// untouched; this never fails.
func UnwrapResponse(raw string) string {
	if m := fencedJSONRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	if m := fencedHTMLRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	if m := fencedPlainRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return strings.TrimSpace(raw)
}

// ParseStructured turns a model reply into a normalized StructuredCV. It
// tries progressively more forgiving strategies and, when all of them fail,
// returns the fallback record with degraded=true so the upload still
// completes.
func ParseStructured(raw string) (StructuredCV, bool) {
	payload := UnwrapResponse(raw)

	for _, strat := range repairStrategies {
		candidate := strat.apply(payload)
		if candidate == "" {
			continue
		}
		if cv, ok := tryParse(candidate); ok {
			return cv, false
		}
	}

	telemetry.Error("all JSON parse attempts failed", map[string]any{
		"excerpt": excerpt(payload, parseExcerptLen),
	})
	return FallbackCV(), true
}

// tryParse accepts any syntactically valid JSON object. Decoding goes through
// a loose map so a single wrong-typed field defaults instead of sinking the
// whole document.
func tryParse(payload string) (StructuredCV, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return StructuredCV{}, false
	}
	return NormalizeRaw(raw), true
}

// repairQuoting escapes quotes stuck inside string values and re-quotes bare
// object keys. Already well-formed text passes through unchanged.
func repairQuoting(payload string) string {
	return bareKeyRe.ReplaceAllString(escapeInnerQuotes(payload), `${1}"${2}"${3}`)
}

// escapeInnerQuotes walks the payload tracking string state. A quote inside
// a string only closes it when the next non-space character is structural
// (`,:}]` or end of input); any other quote is taken as part of the value
// and escaped, so `"John "Smith"` becomes `"John \"Smith"`.
func escapeInnerQuotes(payload string) string {
	var b strings.Builder
	b.Grow(len(payload) + 8)
	inString := false
	escaped := false
	for i := 0; i < len(payload); i++ {
		ch := payload[i]
		switch {
		case escaped:
			b.WriteByte(ch)
			escaped = false
		case ch == '\\':
			b.WriteByte(ch)
			escaped = true
		case ch != '"':
			b.WriteByte(ch)
		case !inString:
			inString = true
			b.WriteByte(ch)
		case closesString(payload[i+1:]):
			inString = false
			b.WriteByte(ch)
		default:
			b.WriteString(`\"`)
		}
	}
	return b.String()
}

// closesString reports whether text following a quote looks like the end of
// a JSON string: optional whitespace and then a structural character, or
// nothing at all.
func closesString(rest string) bool {
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case ' ', '\t', '\r', '\n':
			continue
		case ',', ':', '}', ']':
			return true
		default:
			return false
		}
	}
	return true
}

// extractObject cuts the substring between the first '{' and the last '}',
// handling commentary the model emitted around the document. Empty result
// means no object was found.
func extractObject(payload string) string {
	start := strings.Index(payload, "{")
	end := strings.LastIndex(payload, "}")
	if start < 0 || end <= start {
		return ""
	}
	return payload[start : end+1]
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
