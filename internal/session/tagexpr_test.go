package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTagExpressionBareTag(t *testing.T) {
	expr, err := ParseTagExpression("frontend")
	require.NoError(t, err)
	assert.True(t, expr.Evaluate(map[string]bool{"frontend": true}))
	assert.False(t, expr.Evaluate(map[string]bool{"backend": true}))
}

func TestParseTagExpressionAndOrNotPrecedence(t *testing.T) {
	expr, err := ParseTagExpression("a AND b OR c")
	require.NoError(t, err)
	// OR binds loosest: (a AND b) OR c
	assert.True(t, expr.Evaluate(map[string]bool{"c": true}))
	assert.True(t, expr.Evaluate(map[string]bool{"a": true, "b": true}))
	assert.False(t, expr.Evaluate(map[string]bool{"a": true}))
}

func TestParseTagExpressionNot(t *testing.T) {
	expr, err := ParseTagExpression("NOT deprecated")
	require.NoError(t, err)
	assert.True(t, expr.Evaluate(map[string]bool{}))
	assert.False(t, expr.Evaluate(map[string]bool{"deprecated": true}))
}

func TestParseTagExpressionParens(t *testing.T) {
	expr, err := ParseTagExpression("(a OR b) AND NOT c")
	require.NoError(t, err)
	assert.True(t, expr.Evaluate(map[string]bool{"a": true}))
	assert.False(t, expr.Evaluate(map[string]bool{"a": true, "c": true}))
}

func TestParseTagExpressionCaseInsensitiveOperators(t *testing.T) {
	expr, err := ParseTagExpression("a and not b")
	require.NoError(t, err)
	assert.True(t, expr.Evaluate(map[string]bool{"a": true}))
	assert.False(t, expr.Evaluate(map[string]bool{"a": true, "b": true}))
}

func TestParseTagExpressionErrors(t *testing.T) {
	cases := []string{
		"",
		"(a",
		"a)",
		"AND a",
		"a AND",
	}
	for _, c := range cases {
		_, err := ParseTagExpression(c)
		assert.Error(t, err, "expected error for %q", c)
	}
}
