package pattern

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var exact = Options{CaseSensitive: true}

func TestNeedsRegexp(t *testing.T) {
	t.Parallel()

	assert.False(t, NeedsRegexp("/users/list"))
	assert.False(t, NeedsRegexp("/file.json"))
	for _, tpl := range []string{"/:id", "/a*", "/ab?c", "/a+", "/(a)", "/{a}", "/[ab]"} {
		assert.True(t, NeedsRegexp(tpl), tpl)
	}
}

func TestLiteral(t *testing.T) {
	t.Parallel()

	m := MustCompile("/users", exact)
	lit, ok := m.Literal()
	require.True(t, ok)
	assert.Equal(t, "/users", lit)

	_, _, ok = m.Match("/users")
	assert.True(t, ok)
	_, _, ok = m.Match("/users/")
	assert.True(t, ok, "trailing slash tolerated when not strict")
	_, _, ok = m.Match("/Users")
	assert.False(t, ok)
	_, _, ok = m.Match("/users/1")
	assert.False(t, ok)

	strict := MustCompile("/users", Options{CaseSensitive: true, Strict: true})
	_, _, ok = strict.Match("/users/")
	assert.False(t, ok)

	fold := MustCompile("/users", Options{})
	_, _, ok = fold.Match("/USERS")
	assert.True(t, ok)
}

func TestParams(t *testing.T) {
	t.Parallel()

	m := MustCompile("/:a/:b", exact)
	assert.Equal(t, []string{"a", "b"}, m.Keys())

	params, _, ok := m.Match("/x/y")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"a": "x", "b": "y"}, params)

	_, _, ok = m.Match("/x")
	assert.False(t, ok)
	_, _, ok = m.Match("/x/y/z")
	assert.False(t, ok)
}

func TestParamDecoding(t *testing.T) {
	t.Parallel()

	params, _, ok := MustCompile("/files/:name", exact).Match("/files/a%20b")
	require.True(t, ok)
	assert.Equal(t, "a b", params["name"])
}

func TestConstraint(t *testing.T) {
	t.Parallel()

	m := MustCompile(`/users/:id(\d+)`, exact)

	params, _, ok := m.Match("/users/42")
	require.True(t, ok)
	assert.Equal(t, "42", params["id"])

	_, _, ok = m.Match("/users/abc")
	assert.False(t, ok)
}

func TestConstraintBoundary(t *testing.T) {
	t.Parallel()

	m := MustCompile(`/v/:n(\d+)*`, exact)

	params, _, ok := m.Match("/v/12/rest")
	require.True(t, ok)
	assert.Equal(t, "12", params["n"])
	assert.Equal(t, "/rest", params["0"])

	_, _, ok = m.Match("/v/12abc")
	assert.False(t, ok, "constraint must end at a segment boundary")
}

func TestOptionalSegment(t *testing.T) {
	t.Parallel()

	m := MustCompile("/users/:id?", exact)

	params, _, ok := m.Match("/users")
	require.True(t, ok)
	assert.Empty(t, params)

	params, _, ok = m.Match("/users/7")
	require.True(t, ok)
	assert.Equal(t, "7", params["id"])
}

func TestWildcardAndEscapes(t *testing.T) {
	t.Parallel()

	m := MustCompile("/static/*", exact)
	params, _, ok := m.Match("/static/css/site.css")
	require.True(t, ok)
	assert.Equal(t, "css/site.css", params["0"])

	dotted := MustCompile("/:file.json", exact)
	params, _, ok = dotted.Match("/data.json")
	require.True(t, ok)
	assert.Equal(t, "data", params["file"])
	_, _, ok = dotted.Match("/dataXjson")
	assert.False(t, ok, "dot is literal")

	dashed := MustCompile("/:from-:to", exact)
	params, _, ok = dashed.Match("/a-b")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"from": "a", "to": "b"}, params)
}

func TestRegexPassthrough(t *testing.T) {
	t.Parallel()

	m := MustCompile("/ab?cd", exact)
	for _, p := range []string{"/acd", "/abcd"} {
		_, _, ok := m.Match(p)
		assert.True(t, ok, p)
	}
	_, _, ok := m.Match("/abbcd")
	assert.False(t, ok)
}

func TestCaseInsensitiveRegex(t *testing.T) {
	t.Parallel()

	params, _, ok := MustCompile("/Users/:id", Options{}).Match("/users/Bob")
	require.True(t, ok)
	assert.Equal(t, "Bob", params["id"])
}

func TestPrefix(t *testing.T) {
	t.Parallel()

	m := MustCompile("/api", Options{Prefix: true, CaseSensitive: true})

	_, matched, ok := m.Match("/api/users")
	require.True(t, ok)
	assert.Equal(t, "/api", matched)

	_, matched, ok = m.Match("/api")
	require.True(t, ok)
	assert.Equal(t, "/api", matched)

	_, _, ok = m.Match("/apiary")
	assert.False(t, ok)
}

func TestPrefixWithParams(t *testing.T) {
	t.Parallel()

	m := MustCompile("/orgs/:org/", Options{Prefix: true, CaseSensitive: true})

	params, matched, ok := m.Match("/orgs/acme/repos")
	require.True(t, ok)
	assert.Equal(t, "/orgs/acme", matched)
	assert.Equal(t, "acme", params["org"])

	_, _, ok = m.Match("/orgs")
	assert.False(t, ok)
}

func TestPrefixEmptyMatchesAll(t *testing.T) {
	t.Parallel()

	for _, tpl := range []string{"", "/"} {
		m := MustCompile(tpl, Options{Prefix: true})
		assert.True(t, m.MatchesAll())
		_, matched, ok := m.Match("/anything/at/all")
		assert.True(t, ok)
		assert.Empty(t, matched)
	}
}

func TestCompileErrors(t *testing.T) {
	t.Parallel()

	for _, tpl := range []string{"/:id(", `/:id()`, "/:id([)"} {
		_, err := Compile(tpl, exact)
		assert.Error(t, err, tpl)
	}
	assert.Panics(t, func() { MustCompile("/:id(", exact) })
}

func TestFromRegexp(t *testing.T) {
	t.Parallel()

	m := FromRegexp(regexp.MustCompile(`^/items/(\d+)$`), false)
	params, _, ok := m.Match("/items/5")
	require.True(t, ok)
	assert.Equal(t, "5", params["0"])

	prefix := FromRegexp(regexp.MustCompile(`/v\d`), true)
	_, matched, ok := prefix.Match("/v2/users")
	require.True(t, ok)
	assert.Equal(t, "/v2", matched)

	_, _, ok = prefix.Match("/x/v2")
	assert.False(t, ok)
}
