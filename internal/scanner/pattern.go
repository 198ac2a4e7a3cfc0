package scanner

import (
	"regexp"
	"strings"

	pymalaerrors "github.com/standardbeagle/pymala/internal/errors"
)

// tagAlt is one compiled alternative of a like-pattern: a literal prefix
// used for a fast byte search plus the anchored regex that validates a
// candidate tag in full, including its closing '>'.
type tagAlt struct {
	prefix string
	re     *regexp.Regexp
}

// LikeSet is a compiled tag pattern: one or more alternatives separated by
// '|' in the original like-string.
type LikeSet struct {
	raw  string
	alts []tagAlt
}

// CompileLike compiles a like-pattern (spec.md 4.1) into a LikeSet.
// Patterns use '?' for any one character and '*' for any run of
// characters; '|' separates alternatives. A literal '<' or '>' anywhere
// in the pattern is rejected.
func CompileLike(like string) (*LikeSet, error) {
	parts := strings.Split(like, "|")
	alts := make([]tagAlt, 0, len(parts))
	for _, part := range parts {
		prefix, re, err := compileAlt(part)
		if err != nil {
			return nil, err
		}
		alts = append(alts, tagAlt{prefix: prefix, re: re})
	}
	return &LikeSet{raw: like, alts: alts}, nil
}

// CompilePropertyPattern compiles a property-name like-pattern (no
// surrounding '<'/'>') into matchable regexes, used to match attribute
// names against a path's property leaf pattern. Shares its wildcard
// rules with Scanner.Search's content glob.
func CompilePropertyPattern(like string) ([]*regexp.Regexp, error) {
	return compileContentGlob(like)
}

// compileContentGlob compiles a '?'/'*'/'|' glob against plain text
// content (no surrounding '<'/'>'), used by Scanner.Search.
func compileContentGlob(like string) ([]*regexp.Regexp, error) {
	parts := strings.Split(like, "|")
	res := make([]*regexp.Regexp, 0, len(parts))
	for _, part := range parts {
		var body strings.Builder
		for _, r := range part {
			switch {
			case r == '?' || r == '*':
				body.WriteRune(r)
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == ' ':
				body.WriteRune(r)
			default:
				body.WriteByte('\\')
				body.WriteRune(r)
			}
		}
		escaped := body.String()
		escaped = strings.ReplaceAll(escaped, "*", ".*")
		escaped = strings.ReplaceAll(escaped, "?", ".")
		re, err := regexp.Compile("(?s)^" + escaped + "$")
		if err != nil {
			return nil, pymalaerrors.NewScanError(part)
		}
		res = append(res, re)
	}
	return res, nil
}

func compileAlt(pattern string) (string, *regexp.Regexp, error) {
	if strings.ContainsAny(pattern, "<>") {
		return "", nil, pymalaerrors.NewScanError(pattern)
	}

	prefixEnd := strings.IndexAny(pattern, "?*")
	var prefix string
	if prefixEnd == -1 {
		prefix = pattern
	} else {
		prefix = pattern[:prefixEnd]
	}
	endsWithStar := strings.HasSuffix(pattern, "*")

	var body strings.Builder
	for _, r := range pattern {
		switch {
		case r == '?' || r == '*':
			body.WriteRune(r)
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == ' ':
			body.WriteRune(r)
		default:
			body.WriteByte('\\')
			body.WriteRune(r)
		}
	}

	escaped := body.String()
	escaped = strings.ReplaceAll(escaped, "*", ".*")
	escaped = strings.ReplaceAll(escaped, "?", ".")

	var suffix string
	if endsWithStar {
		suffix = ">"
	} else {
		suffix = `(\s.*)*>`
	}

	full := "^<" + escaped + suffix + "$"
	re, err := regexp.Compile(full)
	if err != nil {
		return "", nil, pymalaerrors.NewScanError(pattern)
	}
	return prefix, re, nil
}
