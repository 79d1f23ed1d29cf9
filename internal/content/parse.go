package content

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// maxUnwrapDepth bounds .content unwrapping and double-encoded string
// recursion so a pathological payload cannot loop the parser.
const maxUnwrapDepth = 3

var v4TagRe = regexp.MustCompile(`"version"\s*:\s*"4\.0"`)

// Parse decodes a generated-content payload into a Content variant. It
// never fails and never panics: anything unparseable comes back as a
// RawFallback so the caller always has something to render.
func Parse(raw interface{}) Content {
	return parse(raw, 0)
}

func parse(raw interface{}, depth int) Content {
	if depth > maxUnwrapDepth {
		return RawFallback{Text: fmt.Sprintf("%v", raw)}
	}

	switch v := raw.(type) {
	case nil:
		return RawFallback{}
	case Content:
		return v
	case string:
		return parseString(v, depth)
	case json.RawMessage:
		return parseString(string(v), depth)
	case []byte:
		return parseString(string(v), depth)
	case map[string]interface{}:
		// Unwrap one level of {content: ...} nesting
		if inner, ok := v["content"]; ok {
			if _, hasVersion := v["version"]; !hasVersion {
				return parse(inner, depth+1)
			}
		}
		data, err := json.Marshal(v)
		if err != nil {
			return RawFallback{Text: fmt.Sprintf("%v", v)}
		}
		return decodeVersioned(data, depth)
	default:
		// Structured value of some other shape: round-trip through JSON
		data, err := json.Marshal(v)
		if err != nil {
			return RawFallback{Text: fmt.Sprintf("%v", v)}
		}
		return parseString(string(data), depth+1)
	}
}

func parseString(s string, depth int) Content {
	s = strings.TrimSpace(s)
	if s == "" {
		return RawFallback{}
	}

	// Double-encoded payload: a JSON string holding more JSON
	if s[0] == '"' {
		var inner string
		if err := json.Unmarshal([]byte(s), &inner); err == nil {
			return parse(inner, depth+1)
		}
		return RawFallback{Text: s}
	}

	if s[0] != '{' && s[0] != '[' {
		return RawFallback{Text: s}
	}

	// Strict parse first
	if json.Valid([]byte(s)) {
		return decodeVersioned([]byte(s), depth)
	}

	// Truncated stream output: extract the first balanced {...} and retry
	if extracted, ok := extractBalancedObject(s); ok {
		if json.Valid([]byte(extracted)) {
			return decodeVersioned([]byte(extracted), depth)
		}
	}

	// Last resort for a detectable v4.0 payload: reassemble whatever
	// complete sections survived the truncation
	if v4TagRe.MatchString(s) {
		if doc, ok := recoverV4(s); ok {
			return doc
		}
	}

	return RawFallback{Text: s}
}

// decodeVersioned dispatches on the version tag. Unversioned payloads with a
// nested content field are unwrapped one level; anything unrecognized falls
// back to the raw text.
func decodeVersioned(data []byte, depth int) Content {
	var probe struct {
		Version string          `json:"version"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return RawFallback{Text: string(data)}
	}

	if probe.Version == "" {
		if len(probe.Content) > 0 {
			return parse(probe.Content, depth+1)
		}
		return RawFallback{Text: string(data)}
	}

	switch probe.Version {
	case "1.0":
		var doc V1
		if err := json.Unmarshal(data, &doc); err == nil {
			return doc
		}
	case "2.0":
		var doc V2
		if err := json.Unmarshal(data, &doc); err == nil {
			return doc
		}
	case "3.0":
		var doc V3
		if err := json.Unmarshal(data, &doc); err == nil {
			return doc
		}
	case "4.0":
		var doc V4
		if err := json.Unmarshal(data, &doc); err == nil {
			return doc
		}
	case "guide_v1":
		var doc Guide
		if err := json.Unmarshal(data, &doc); err == nil {
			return doc
		}
	}

	return RawFallback{Text: string(data)}
}

// extractBalancedObject returns the first balanced {...} substring,
// tracking string literals and escapes so braces inside content don't
// confuse the depth count.
func extractBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}

	return "", false
}

// recoverV4 rebuilds a partial v4.0 document from a truncated payload. Only
// sections that are complete, well-formed objects survive; trailing
// fragments are dropped, never guessed at.
func recoverV4(s string) (V4, bool) {
	doc := V4{
		ContentTitle: extractQuotedField(s, "contentTitle"),
		CallToAction: extractQuotedField(s, "callToAction"),
	}

	idx := strings.Index(s, `"sections"`)
	if idx == -1 {
		if doc.ContentTitle == "" {
			return V4{}, false
		}
		return doc, true
	}

	rest := s[idx:]
	arrStart := strings.IndexByte(rest, '[')
	if arrStart == -1 {
		if doc.ContentTitle == "" {
			return V4{}, false
		}
		return doc, true
	}
	rest = rest[arrStart:]

	for {
		objStart := strings.IndexByte(rest, '{')
		if objStart == -1 {
			break
		}
		obj, ok := extractBalancedObject(rest[objStart:])
		if !ok {
			// Truncated mid-object; everything after is incomplete
			break
		}
		if sec, ok := decodeSection(obj); ok {
			doc.Sections = append(doc.Sections, sec)
		}
		rest = rest[objStart+len(obj):]
	}

	if len(doc.Sections) == 0 && doc.ContentTitle == "" {
		return V4{}, false
	}
	return doc, true
}

// decodeSection accepts only objects carrying all four section fields.
func decodeSection(obj string) (Section, bool) {
	var probe struct {
		ID          *string `json:"id"`
		Title       *string `json:"title"`
		Content     *string `json:"content"`
		SectionType *string `json:"sectionType"`
	}
	if err := json.Unmarshal([]byte(obj), &probe); err != nil {
		return Section{}, false
	}
	if probe.ID == nil || probe.Title == nil || probe.Content == nil || probe.SectionType == nil {
		return Section{}, false
	}
	return Section{
		ID:          *probe.ID,
		Title:       *probe.Title,
		Content:     *probe.Content,
		SectionType: *probe.SectionType,
	}, true
}

// extractQuotedField regex-extracts one string field from malformed JSON.
func extractQuotedField(s, field string) string {
	re := regexp.MustCompile(`"` + field + `"\s*:\s*("(?:[^"\\]|\\.)*")`)
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	var out string
	if err := json.Unmarshal([]byte(m[1]), &out); err != nil {
		return ""
	}
	return out
}
