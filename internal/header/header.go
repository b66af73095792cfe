// Package header implements the engine's document header format: a
// line-based `key: value` syntax, not YAML. Two shapes are
// recognized: a `---`-delimited frontmatter block, or a "plain
// header" — consecutive `key: value` lines at the top of the file
// ending at the first blank line. Full-line comments start with `#`;
// an inline `#` is stripped as a comment only when preceded by
// whitespace, so values like a URL fragment or a hex color are left
// alone.
package header

import (
	"strconv"
	"strings"
	"time"

	"stbl2/internal/model"
)

const dateLayout = "2006-01-02 15:04"

// Parse splits raw source text into a Header and the remaining body
// markdown. present reports whether a header block was found at all;
// when false, the returned Header is the zero value and body equals
// raw.
func Parse(raw string) (hdr model.Header, body string, present bool) {
	lines := strings.Split(raw, "\n")

	if len(lines) > 0 && strings.TrimSpace(lines[0]) == "---" {
		end := -1
		for i := 1; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == "---" {
				end = i
				break
			}
		}
		if end >= 0 {
			fields := parseFields(lines[1:end])
			hdr = fieldsToHeader(fields)
			body = strings.Join(lines[end+1:], "\n")
			return hdr, strings.TrimLeft(body, "\n"), true
		}
	}

	// Plain header: consecutive key:value lines (and full-line
	// comments) from the top, ending at the first blank line.
	end := 0
	var headerLines []string
	for end < len(lines) {
		trimmed := strings.TrimSpace(lines[end])
		if trimmed == "" {
			break
		}
		if strings.HasPrefix(trimmed, "#") {
			end++
			continue
		}
		if !isKeyValueLine(trimmed) {
			break
		}
		headerLines = append(headerLines, lines[end])
		end++
	}
	if len(headerLines) == 0 {
		return model.Header{}, raw, false
	}
	fields := parseFields(headerLines)
	hdr = fieldsToHeader(fields)
	body = strings.Join(lines[end:], "\n")
	return hdr, strings.TrimLeft(body, "\n"), true
}

func isKeyValueLine(line string) bool {
	idx := strings.Index(line, ":")
	return idx > 0
}

func parseFields(lines []string) map[string]string {
	fields := make(map[string]string)
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		idx := strings.Index(trimmed, ":")
		if idx < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(trimmed[:idx]))
		value := stripInlineComment(strings.TrimSpace(trimmed[idx+1:]))
		fields[key] = value
	}
	return fields
}

// stripInlineComment removes a trailing `# ...` only when the `#` is
// preceded by whitespace, so values containing `#` without leading
// whitespace (URL fragments, hex colors) are preserved.
func stripInlineComment(value string) string {
	for i := 1; i < len(value); i++ {
		if value[i] == '#' && (value[i-1] == ' ' || value[i-1] == '\t') {
			return strings.TrimSpace(value[:i])
		}
	}
	return value
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func nonEmpty(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}

func parseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if t, err := time.Parse(dateLayout, value); err == nil {
		return &t
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return &t
	}
	return nil
}

func parseBool(value string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "yes", "1":
		return true
	case "false", "no", "0":
		return false
	default:
		return def
	}
}

func fieldsToHeader(fields map[string]string) model.Header {
	hdr := model.Header{
		IsPublished: true, // absent defaults to published, per source behavior
	}
	if v, ok := nonEmpty(fields["title"]); ok {
		hdr.Title = v
	}
	hdr.Tags = splitList(fields["tags"])
	hdr.Authors = splitList(fields["authors"])
	hdr.Published = parseDate(fields["published"])
	hdr.Updated = parseDate(fields["updated"])
	hdr.Expires = parseDate(fields["expires"])
	if raw, present := fields["is_published"]; present {
		hdr.IsPublished = parseBool(raw, true)
	}
	hdr.ExcludeFromBlog = parseBool(fields["exclude_from_blog"], false)
	if v, ok := nonEmpty(fields["template"]); ok {
		hdr.Template = v
	}
	if v, ok := nonEmpty(fields["content_type"]); ok {
		hdr.ContentType = v
	}
	if raw, ok := nonEmpty(fields["part"]); ok {
		if n, err := strconv.Atoi(raw); err == nil {
			hdr.Part = &n
		}
	}
	if v, ok := nonEmpty(fields["uuid"]); ok {
		hdr.UUID = v
	}
	if v, ok := nonEmpty(fields["abstract_text"]); ok {
		hdr.AbstractText = v
	}
	if v, ok := nonEmpty(fields["banner"]); ok {
		hdr.Banner = v
	}
	hdr.Comments = parseBool(fields["comments"], false)
	return hdr
}
