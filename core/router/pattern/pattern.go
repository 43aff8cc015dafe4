// Package pattern compiles Express-style path templates into matchers.
//
// Templates without any of the characters * ? + ( ) : { } [ ] are matched
// by plain string comparison. Everything else is converted to a regular
// expression: ":name" captures one path segment, ":name(re)" captures
// with a custom expression, "/:name?" is an optional segment and "*"
// matches any run of characters.
package pattern

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Options control how a template is compiled.
type Options struct {
	// Prefix matches the template against the start of a path, ending at
	// a "/" or at the end of the path. Used for mounts.
	Prefix bool
	// CaseSensitive disables case folding.
	CaseSensitive bool
	// Strict makes a trailing slash significant for full matches.
	Strict bool
}

const prefixGroup = "__prefix"

// Matcher matches request paths against one compiled template.
type Matcher struct {
	source string
	opts   Options

	any       bool
	isLiteral bool
	literal   string

	re      *regexp.Regexp
	keys    []string
	groups  []int
	bounded []int
	prefix  int
	raw     bool
}

// NeedsRegexp reports whether template requires regular expression matching.
func NeedsRegexp(template string) bool {
	return strings.ContainsAny(template, "*?+():{}[]")
}

// MustCompile is like Compile but panics on error.
func MustCompile(template string, opts Options) *Matcher {
	m, err := Compile(template, opts)
	if err != nil {
		panic(err)
	}
	return m
}

// Compile converts template into a Matcher.
func Compile(template string, opts Options) (*Matcher, error) {
	m := &Matcher{source: template, opts: opts}

	if opts.Prefix {
		template = strings.TrimRight(template, "/")
		if template == "" {
			m.any = true
			return m, nil
		}
	} else if !opts.Strict && len(template) > 1 {
		template = strings.TrimSuffix(template, "/")
	}

	if !NeedsRegexp(template) {
		m.isLiteral = true
		m.literal = template
		return m, nil
	}

	body, bounded, err := convert(template)
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", m.source, err)
	}

	var expr strings.Builder
	if !opts.CaseSensitive {
		expr.WriteString("(?i)")
	}
	expr.WriteByte('^')
	if opts.Prefix {
		expr.WriteString("(?P<" + prefixGroup + ">" + body + ")(?:/|$)")
	} else {
		expr.WriteString("(?:" + body + ")")
		if !opts.Strict {
			expr.WriteString("/?")
		}
		expr.WriteByte('$')
	}

	re, err := regexp.Compile(expr.String())
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", m.source, err)
	}
	m.re = re
	m.indexGroups()
	for _, name := range bounded {
		if i := re.SubexpIndex(name); i > 0 {
			m.bounded = append(m.bounded, i)
		}
	}
	return m, nil
}

// FromRegexp wraps a caller-supplied expression. Full matches may occur
// anywhere in the path; prefix matches must start at its beginning.
func FromRegexp(re *regexp.Regexp, prefix bool) *Matcher {
	m := &Matcher{source: re.String(), opts: Options{Prefix: prefix, CaseSensitive: true}, re: re, raw: true}
	m.indexGroups()
	return m
}

func (m *Matcher) indexGroups() {
	ordinal := 0
	for i, name := range m.re.SubexpNames() {
		switch {
		case i == 0:
			continue
		case name == prefixGroup:
			m.prefix = i
			continue
		case name == "":
			name = strconv.Itoa(ordinal)
			ordinal++
		}
		m.keys = append(m.keys, name)
		m.groups = append(m.groups, i)
	}
}

// convert rewrites a template into a regular expression body and returns
// the parameters whose custom constraint needs a segment boundary check.
func convert(t string) (string, []string, error) {
	out := make([]byte, 0, len(t)*2)
	var bounded []string

	for i := 0; i < len(t); i++ {
		c := t[i]
		switch c {
		case '.', '-':
			out = append(out, '\\', c)
		case '*':
			out = append(out, "(.*)"...)
		case ':':
			j := i + 1
			for j < len(t) && isWordChar(t[j]) {
				j++
			}
			name := t[i+1 : j]
			if name == "" {
				out = append(out, c)
				continue
			}

			switch {
			case j < len(t) && t[j] == '(':
				end, err := closingParen(t, j)
				if err != nil {
					return "", nil, err
				}
				constraint := t[j+1 : end]
				if constraint == "" {
					return "", nil, fmt.Errorf("empty constraint for :%s", name)
				}
				out = append(out, "(?P<"+name+">"+constraint+")"...)
				if end+1 < len(t) && t[end+1] != '/' {
					bounded = append(bounded, name)
				}
				i = end
			case j < len(t) && t[j] == '?' && len(out) > 0 && out[len(out)-1] == '/':
				out = append(out[:len(out)-1], "(?:/(?P<"+name+">[^/]+))?"...)
				i = j
			default:
				out = append(out, "(?P<"+name+">[^/]+)"...)
				i = j - 1
			}
		default:
			out = append(out, c)
		}
	}
	return string(out), bounded, nil
}

func closingParen(t string, open int) (int, error) {
	depth := 0
	for i := open; i < len(t); i++ {
		switch t[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("unbalanced parenthesis at offset %d", open)
}

func isWordChar(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// Match tests path. It returns the captured parameters (nil when there
// are none) and, for prefix matchers, the part of path that was consumed.
func (m *Matcher) Match(path string) (map[string]string, string, bool) {
	switch {
	case m.any:
		return nil, "", true
	case m.isLiteral:
		return m.matchLiteral(path)
	}

	loc := m.re.FindStringSubmatchIndex(path)
	if loc == nil {
		return nil, "", false
	}
	if m.raw && m.opts.Prefix && loc[0] != 0 {
		return nil, "", false
	}
	for _, g := range m.bounded {
		if end := loc[2*g+1]; end >= 0 && end < len(path) && path[end] != '/' {
			return nil, "", false
		}
	}

	matched := path
	switch {
	case m.raw && m.opts.Prefix:
		matched = path[:loc[1]]
	case m.opts.Prefix:
		matched = path[loc[2*m.prefix]:loc[2*m.prefix+1]]
	}

	var params map[string]string
	for k, key := range m.keys {
		g := m.groups[k]
		start, end := loc[2*g], loc[2*g+1]
		if start < 0 {
			continue
		}
		if params == nil {
			params = make(map[string]string, len(m.keys))
		}
		params[key] = decode(path[start:end])
	}
	return params, matched, true
}

func (m *Matcher) matchLiteral(path string) (map[string]string, string, bool) {
	lit := m.literal
	if m.equal(path, lit) {
		return nil, path, true
	}
	if len(path) <= len(lit) {
		return nil, "", false
	}
	head := path[:len(lit)]
	if !m.equal(head, lit) {
		return nil, "", false
	}
	switch {
	case m.opts.Prefix && path[len(lit)] == '/':
		return nil, head, true
	case !m.opts.Prefix && !m.opts.Strict && len(path) == len(lit)+1 && path[len(lit)] == '/':
		return nil, path, true
	}
	return nil, "", false
}

func (m *Matcher) equal(a, b string) bool {
	if m.opts.CaseSensitive {
		return a == b
	}
	return strings.EqualFold(a, b)
}

func decode(s string) string {
	if v, err := url.PathUnescape(s); err == nil {
		return v
	}
	return s
}

// Literal returns the literal path when the matcher compares strings.
func (m *Matcher) Literal() (string, bool) {
	return m.literal, m.isLiteral
}

// MatchesAll reports whether the matcher accepts every path.
func (m *Matcher) MatchesAll() bool { return m.any }

// Keys returns parameter names in capture order.
func (m *Matcher) Keys() []string { return m.keys }

// Options returns the options the matcher was compiled with.
func (m *Matcher) Options() Options { return m.opts }

// String returns the source template.
func (m *Matcher) String() string { return m.source }
