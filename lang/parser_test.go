package lang_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tinylisp/tlc/lang"
)

func TestParseSimpleCall(t *testing.T) {
	assert := assert.New(t)

	forest, err := lang.Parse(strings.NewReader(`(set x 1)`))
	assert.NoError(err)
	assert.Len(forest.Exprs, 1)

	call := forest.Exprs[0]
	assert.Equal(lang.NodeCall, call.Kind)
	assert.Len(call.Children, 3)
	assert.Equal("set", call.Children[0].Ident)
	assert.Equal("x", call.Children[1].Ident)
	assert.Equal(int32(1), call.Children[2].Int)
}

func TestParseNestedCalls(t *testing.T) {
	assert := assert.New(t)

	forest, err := lang.Parse(strings.NewReader(`(write-mem 3 (+ 1 2))`))
	assert.NoError(err)
	assert.Len(forest.Exprs, 1)

	inner := forest.Exprs[0].Children[2]
	assert.Equal(lang.NodeCall, inner.Kind)
	assert.Equal("+", inner.Children[0].Ident)
}

func TestParseMultipleTopLevelExprs(t *testing.T) {
	assert := assert.New(t)

	forest, err := lang.Parse(strings.NewReader(`(set x 1) (set y 2)`))
	assert.NoError(err)
	assert.Len(forest.Exprs, 2)
}

func TestParseStringLiteral(t *testing.T) {
	assert := assert.New(t)

	forest, err := lang.Parse(strings.NewReader(`(print-str "hi")`))
	assert.NoError(err)

	lit := forest.Exprs[0].Children[1]
	assert.Equal(lang.NodeStr, lit.Kind)
	assert.Equal("hi", string(lit.Str))
}

func TestParseUnbalancedParensFails(t *testing.T) {
	assert := assert.New(t)

	_, err := lang.Parse(strings.NewReader(`(set x 1`))
	assert.ErrorIs(err, lang.ErrUnbalancedParens)
}

func TestParseNonCallAtRootFails(t *testing.T) {
	assert := assert.New(t)

	_, err := lang.Parse(strings.NewReader(`x`))
	assert.Error(err)

	var lineErr *lang.ErrLine
	assert.ErrorAs(err, &lineErr)
	assert.ErrorIs(lineErr, lang.ErrNonCallAtRoot)
}

func TestParseEmptyParensFails(t *testing.T) {
	assert := assert.New(t)

	_, err := lang.Parse(strings.NewReader(`()`))
	assert.Error(err)

	var lineErr *lang.ErrLine
	assert.ErrorAs(err, &lineErr)
	assert.ErrorIs(lineErr, lang.ErrEmptyParens)
}
