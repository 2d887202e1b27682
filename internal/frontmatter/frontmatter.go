package frontmatter

import (
	"encoding/json"
	"fmt"
	"strings"
)

const marker = "---"

// Value is a single decoded frontmatter value. Bracketed values are parsed
// into List, and IsList reports whether that parse succeeded; when it fails,
// the raw text is kept in Str instead. Callers can tell the two outcomes
// apart without the codec ever returning an error.
type Value struct {
	Str    string
	List   []string
	IsList bool
}

type Fields map[string]Value

// Str returns the plain string value for key, or "" when absent.
func (f Fields) Str(key string) string {
	return f[key].Str
}

// List returns the parsed list value for key, or nil when the key is
// absent or its value did not parse as a list.
func (f Fields) List(key string) []string {
	v, ok := f[key]
	if !ok || !v.IsList {
		return nil
	}
	return v.List
}

// Bool normalizes boolean-ish values: the documents carry both bare
// booleans and the literal strings "true"/"false".
func (f Fields) Bool(key string) bool {
	return strings.EqualFold(f[key].Str, "true")
}

// Decode splits a document into its frontmatter fields and body. A document
// without a leading marker pair decodes to empty fields and the full text
// as body. Decode never fails: posts are hand-edited markdown and the codec
// has to tolerate formatting drift.
func Decode(text string) (Fields, string) {
	fields := Fields{}

	lines := strings.Split(text, "\n")
	if lines[0] != marker {
		return fields, text
	}

	closing := -1
	for i := 1; i < len(lines); i++ {
		if lines[i] == marker {
			closing = i
			break
		}
	}
	if closing == -1 {
		return fields, text
	}

	for _, line := range lines[1:closing] {
		key, rawValue, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		fields[key] = parseValue(strings.TrimSpace(rawValue))
	}

	body := strings.Join(lines[closing+1:], "\n")
	// one blank line separates the closing marker from the body
	body = strings.TrimPrefix(body, "\n")

	return fields, body
}

func parseValue(raw string) Value {
	if strings.HasPrefix(raw, "[") {
		normalized := strings.ReplaceAll(raw, "'", `"`)
		var list []string
		if err := json.Unmarshal([]byte(normalized), &list); err == nil {
			return Value{List: list, IsList: true}
		}
		// unparsable list literal, keep the raw text
		return Value{Str: raw}
	}
	return Value{Str: stripQuotes(raw)}
}

// stripQuotes removes one matching pair of surrounding quotes, if present
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// Meta holds the post metadata in the order it is serialized.
type Meta struct {
	Title       string
	Description string
	PubDate     string // ISO calendar date, YYYY-MM-DD
	Category    string
	Tags        []string
	Draft       bool
}

// Encode renders meta and body back into the delimited document format.
// The field order and quoting style are fixed: existing documents must
// survive a decode/encode cycle bit-for-bit.
func Encode(meta Meta, body string) string {
	var sb strings.Builder
	sb.WriteString(marker + "\n")
	// values are wrapped, not escaped, matching the decode side which only
	// ever strips one surrounding quote pair
	fmt.Fprintf(&sb, "title: \"%s\"\n", meta.Title)
	fmt.Fprintf(&sb, "description: \"%s\"\n", meta.Description)
	fmt.Fprintf(&sb, "pubDate: %s\n", meta.PubDate)
	fmt.Fprintf(&sb, "category: %s\n", meta.Category)
	sb.WriteString("tags: " + encodeTags(meta.Tags) + "\n")
	fmt.Fprintf(&sb, "draft: %t\n", meta.Draft)
	sb.WriteString(marker + "\n\n")
	sb.WriteString(body)
	return sb.String()
}

func encodeTags(tags []string) string {
	quoted := make([]string, 0, len(tags))
	for _, t := range tags {
		quoted = append(quoted, `"`+t+`"`)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
