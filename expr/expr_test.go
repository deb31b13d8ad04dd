package expr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	env := Environment{"foo": 4, "bar": 2, "baz": 3}

	tests := []struct {
		name       string
		expression string
		want       float64
	}{
		{"multiply chain", "foo*bar*baz", 24},
		{"multiply and divide", "foo*bar/baz", 8.0 / 3.0},
		{"parens then multiply", "(foo-1)*10", 30},
		{"power", "foo**2", 16},
		{"min call", "min([foo,bar])", 2},
		{"max call", "max([foo,bar])", 4},
		{"whitespace tolerant", "  foo  *  bar  ", 8},
		{"unary minus", "-foo", -4},
		{"nested parens", "((foo+bar))", 6},
		{"right associative power", "2**2**3", 256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.expression, env)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEvaluateAbsentAlias(t *testing.T) {
	_, err := Evaluate("missing*2", Environment{"foo": 1})

	var absent *AbsentAliasError
	require.True(t, errors.As(err, &absent))
	assert.Equal(t, "missing", absent.Alias)
}

func TestEvaluateDivisionByZero(t *testing.T) {
	_, err := Evaluate("foo/bar", Environment{"foo": 1, "bar": 0})
	require.Error(t, err)

	var absent *AbsentAliasError
	assert.False(t, errors.As(err, &absent))
}

func TestEvaluateMalformedExpression(t *testing.T) {
	_, err := Evaluate("foo * * bar", Environment{"foo": 1, "bar": 1})
	assert.Error(t, err)
}

func TestEvaluateCallRequiresArgs(t *testing.T) {
	_, err := Evaluate("min([])", Environment{})
	assert.Error(t, err)
}
