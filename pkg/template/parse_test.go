package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpr(t *testing.T) {
	tests := []struct {
		src  string
		kind nodeKind
	}{
		{`"hello"`, nodeLiteral},
		{`'hello'`, nodeLiteral},
		{`42`, nodeLiteral},
		{`3.14`, nodeLiteral},
		{`true`, nodeLiteral},
		{`null`, nodeLiteral},
		{`fixtures.users`, nodeRef},
		{`request.header.X-Request-Id`, nodeRef},
		{`uuid()`, nodeCall},
		{`random.int(1, 100)`, nodeCall},
		{`find(fixtures.users, "id", params.id)`, nodeCall},
		{`default(request.query.page, "1")`, nodeCall},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			node, err := parseExpr(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, node.kind)
		})
	}
}

func TestParseExprNestedCall(t *testing.T) {
	node, err := parseExpr(`concat(upper(params.id), "-", lower("X"))`)
	require.NoError(t, err)
	require.Len(t, node.args, 3)
	assert.Equal(t, nodeCall, node.args[0].kind)
	assert.Equal(t, "upper", node.args[0].name)
}

func TestParseExprRejects(t *testing.T) {
	for _, src := range []string{
		``,
		`   `,
		`"unterminated`,
		`find(a, b`,
		`foo..bar`,
		`bad name`,
		`1 + 2`,
	} {
		_, err := parseExpr(src)
		assert.Error(t, err, "source %q", src)
	}
}
