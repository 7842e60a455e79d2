package rules

import (
	"net/url"
	"strings"
)

// Pattern is a compiled allow/deny pattern: literal segments separated by
// '*' wildcards. Matching is case-insensitive. A pattern starting with '/'
// is matched against the path of a URL value rather than the whole string.
type Pattern struct {
	raw      string
	segments []string
	anchorL  bool
	anchorR  bool
	pathOnly bool
}

func Compile(raw string) Pattern {
	p := Pattern{raw: raw}
	s := strings.ToLower(strings.TrimSpace(raw))
	p.pathOnly = strings.HasPrefix(s, "/")
	p.anchorL = !strings.HasPrefix(s, "*")
	p.anchorR = !strings.HasSuffix(s, "*")

	for _, seg := range strings.Split(s, "*") {
		if seg != "" {
			p.segments = append(p.segments, seg)
		}
	}
	return p
}

func (p Pattern) String() string { return p.raw }

// Match reports whether value satisfies the pattern.
func (p Pattern) Match(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if p.pathOnly {
		if u, err := url.Parse(v); err == nil && u.Path != "" {
			v = u.Path
		}
	}

	if len(p.segments) == 0 {
		// "" matches only empty values, "*" (or "**") matches anything.
		return !p.anchorL || v == ""
	}

	pos := 0
	last := len(p.segments) - 1
	for i, seg := range p.segments {
		switch {
		case i == 0 && p.anchorL:
			if !strings.HasPrefix(v, seg) {
				return false
			}
			pos = len(seg)
		case i == last && p.anchorR:
			if len(v)-len(seg) < pos || !strings.HasSuffix(v, seg) {
				return false
			}
			pos = len(v)
		default:
			idx := strings.Index(v[pos:], seg)
			if idx < 0 {
				return false
			}
			pos += idx + len(seg)
		}
	}

	if p.anchorR && pos != len(v) {
		return false
	}
	return true
}

// PatternSet is a compiled allow or deny list.
type PatternSet []Pattern

func CompileAll(raw []string) PatternSet {
	if len(raw) == 0 {
		return nil
	}
	out := make(PatternSet, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r) == "" {
			continue
		}
		out = append(out, Compile(r))
	}
	return out
}

func (ps PatternSet) MatchAny(value string) bool {
	for _, p := range ps {
		if p.Match(value) {
			return true
		}
	}
	return false
}

// allowDeny applies the shared allow/deny semantics: deny always wins, and a
// non-empty allow list must be matched.
func allowDeny(allow, deny PatternSet, value string) (bool, string) {
	if deny.MatchAny(value) {
		return false, "deny"
	}
	if len(allow) > 0 && !allow.MatchAny(value) {
		return false, "allow"
	}
	return true, ""
}
