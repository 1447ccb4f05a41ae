package template

import (
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, tmpl string, ctx *Context) string {
	t.Helper()
	out, err := New().Render(tmpl, ctx)
	require.NoError(t, err)
	return out
}

func TestLength(t *testing.T) {
	ctx := testContext(t)

	assert.Equal(t, "2", render(t, `{{length(fixtures.users)}}`, ctx))
	assert.Equal(t, "5", render(t, `{{length("hello")}}`, ctx))

	_, err := New().Render(`{{length(12)}}`, ctx)
	assert.Error(t, err)
}

func TestUpperLower(t *testing.T) {
	ctx := testContext(t)

	assert.Equal(t, "GET", render(t, `{{upper(request.method)}}`, ctx))
	assert.Equal(t, "alice", render(t, `{{lower("Alice")}}`, ctx))
}

func TestDefault(t *testing.T) {
	ctx := testContext(t)

	// Resolvable value wins.
	assert.Equal(t, "2", render(t, `{{default(request.query.page, "1")}}`, ctx))
	// Unresolved reference falls back instead of failing.
	assert.Equal(t, "1", render(t, `{{default(request.query.offset, "1")}}`, ctx))
	// Empty string falls back.
	assert.Equal(t, "x", render(t, `{{default("", "x")}}`, ctx))
}

func TestConcat(t *testing.T) {
	ctx := testContext(t)

	out := render(t, `{{concat("user-", params.id)}}`, ctx)
	assert.Equal(t, "user-1", out)
}

func TestJSONPath(t *testing.T) {
	ctx := testContext(t)

	out := render(t, `{{jsonpath("$[0].name", fixtures.users)}}`, ctx)
	assert.Equal(t, "Alice", out)

	out = render(t, `{{jsonpath("$[*].name", fixtures.users)}}`, ctx)
	assert.JSONEq(t, `["Alice","Bob"]`, out)

	_, err := New().Render(`{{jsonpath("$.missing", fixtures.users)}}`, ctx)
	require.Error(t, err)
	var rErr *RenderError
	require.ErrorAs(t, err, &rErr)
	assert.Contains(t, rErr.Detail, "matched nothing")
}

func TestSequence(t *testing.T) {
	e := New()
	ctx := testContext(t)

	first, err := e.Render(`{{sequence("order")}}`, ctx)
	require.NoError(t, err)
	second, err := e.Render(`{{sequence("order")}}`, ctx)
	require.NoError(t, err)

	assert.Equal(t, "1", first)
	assert.Equal(t, "2", second)

	custom, err := e.Render(`{{sequence("invoice", 100)}}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, "100", custom)
}

func TestSequenceSharedStore(t *testing.T) {
	store := NewSequenceStore()
	ctx := testContext(t)

	a := NewWithSequences(store)
	b := NewWithSequences(store)

	out, err := a.Render(`{{sequence("n")}}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", out)

	out, err = b.Render(`{{sequence("n")}}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, "2", out)
}

func TestUUIDGenerator(t *testing.T) {
	out := render(t, `{{uuid()}}`, testContext(t))
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`), out)
}

func TestNowAndTimestamp(t *testing.T) {
	ctx := testContext(t)

	now := render(t, `{{now()}}`, ctx)
	assert.Contains(t, now, "T")

	ts := render(t, `{{timestamp()}}`, ctx)
	n, err := strconv.ParseInt(ts, 10, 64)
	require.NoError(t, err)
	assert.Greater(t, n, int64(0))
}

func TestRandomInt(t *testing.T) {
	ctx := testContext(t)
	for i := 0; i < 50; i++ {
		out := render(t, `{{random.int(5, 10)}}`, ctx)
		n, err := strconv.ParseInt(out, 10, 64)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(5))
		assert.LessOrEqual(t, n, int64(10))
	}

	_, err := New().Render(`{{random.int(10, 5)}}`, ctx)
	assert.Error(t, err)
}

func TestRandomFloat(t *testing.T) {
	out := render(t, `{{random.float(0, 1)}}`, testContext(t))
	f, err := strconv.ParseFloat(out, 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, f, 0.0)
	assert.Less(t, f, 1.0)
}

func TestRandomString(t *testing.T) {
	out := render(t, `{{random.string(16)}}`, testContext(t))
	assert.Len(t, out, 16)

	out = render(t, `{{random.string()}}`, testContext(t))
	assert.Len(t, out, 10)
}

func TestFakerKinds(t *testing.T) {
	ctx := testContext(t)

	email := render(t, `{{faker.email}}`, ctx)
	assert.Contains(t, email, "@")

	name := render(t, `{{faker.name}}`, ctx)
	assert.True(t, strings.Contains(name, " "))

	boolean := render(t, `{{faker.boolean}}`, ctx)
	assert.Contains(t, []string{"true", "false"}, boolean)

	_, err := New().Render(`{{faker.quantum}}`, ctx)
	require.Error(t, err)
	var rErr *RenderError
	require.ErrorAs(t, err, &rErr)
	assert.Contains(t, rErr.Detail, "unknown faker kind")
}

func TestUnknownFunction(t *testing.T) {
	_, err := New().Render(`{{exec("rm")}}`, testContext(t))
	require.Error(t, err)
	var rErr *RenderError
	require.ErrorAs(t, err, &rErr)
	assert.Contains(t, rErr.Detail, "unknown function")
}
