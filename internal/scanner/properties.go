package scanner

import "strings"

// Properties parses tag's attributes into name -> value. If tag is empty,
// the Scanner's current Tag() is used. Duplicate names are joined with
// '|'. Values may be unquoted (terminated by whitespace), single-quoted,
// or double-quoted with balanced same-quote pairs, and a quoted value may
// itself contain '=' (spec 4.2).
func (s *Scanner) Properties(tag string) map[string]string {
	_, out := s.PropertiesOrdered(tag)
	return out
}

// PropertiesOrdered behaves like Properties but also returns the
// attribute names in tag-declaration order, first-occurrence position for
// a repeated name (pymala.py's properties() relies on dict insertion
// order when more than one name matches an alternation pattern).
func (s *Scanner) PropertiesOrdered(tag string) ([]string, map[string]string) {
	if tag == "" {
		tag = s.tag
	}
	body := strings.TrimSuffix(tag, ">")
	body = strings.TrimSuffix(body, "/")
	body = strings.TrimSuffix(body, "?")
	body = strings.TrimPrefix(body, "<")

	i := 0
	for i < len(body) && !isSpace(body[i]) {
		i++
	}
	body = body[i:]
	body += " x" // sentinel: the final value always has a following fragment

	frags := strings.Split(body, "=")
	out := make(map[string]string)
	var order []string
	if len(frags) < 2 {
		return order, out
	}

	name := strings.TrimSpace(frags[0])
	frags = frags[1:]
	last := len(frags) - 1

	var open byte
	var w strings.Builder

	for i, f := range frags {
		if open == 0 {
			f = strings.TrimLeft(f, " \t")
			if f != "" && isQuoteByte(f[0]) && !strings.ContainsRune(f[1:], rune(f[0])) && i < last {
				open = f[0]
				w.Reset()
				w.WriteString(f)
				continue
			}
			w.Reset()
			w.WriteString(strings.TrimRight(f, " \t"))
		} else {
			if !strings.ContainsRune(f, rune(open)) && i < last {
				w.WriteByte('=')
				w.WriteString(f)
				continue
			}
			w.WriteByte('=')
			w.WriteString(strings.TrimRight(f, " \t"))
		}

		content, nextName := splitContentAndName(w.String())
		if name != "" {
			if _, exists := out[name]; !exists {
				order = append(order, name)
			}
			appendProp(out, name, content)
		}
		name = nextName
		open = 0
		w.Reset()
	}
	return order, out
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isQuoteByte(c byte) bool {
	return c == '\'' || c == '"'
}

// splitContentAndName splits an accumulated fragment (a quoted or bare
// value immediately followed by the next attribute's bare name) at the
// last run of non-identifier characters, mirroring pymala.py's
// isidentifier()-based backward scan.
func splitContentAndName(w string) (content, name string) {
	k := 0
	for j := len(w) - 1; j >= 0; j-- {
		if !isIdentifierByte(w[j]) {
			k = j + 1
			break
		}
	}
	content = strings.TrimRight(w[:k], "; ")
	if len(content) > 0 && isQuoteByte(content[0]) && content[len(content)-1] == content[0] {
		content = content[1 : len(content)-1]
	}
	return content, w[k:]
}

func isIdentifierByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func appendProp(out map[string]string, name, value string) {
	if existing, ok := out[name]; ok {
		out[name] = existing + "|" + value
	} else {
		out[name] = value
	}
}
