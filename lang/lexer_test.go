package lang_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tinylisp/tlc/lang"
)

func lexAll(t *testing.T, src string) []lang.Token {
	t.Helper()
	lx := lang.NewLexer(strings.NewReader(src))
	var toks []lang.Token
	for {
		tok, err := lx.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if tok == nil {
			return toks
		}
		toks = append(toks, *tok)
	}
}

func TestLexerParensAndIdent(t *testing.T) {
	assert := assert.New(t)

	toks := lexAll(t, `(foo)`)
	assert.Len(toks, 3)
	assert.Equal(lang.TokenOpen, toks[0].Kind)
	assert.Equal(lang.TokenIdent, toks[1].Kind)
	assert.Equal("foo", toks[1].Ident)
	assert.Equal(lang.TokenClose, toks[2].Kind)
}

func TestLexerNegativeInteger(t *testing.T) {
	assert := assert.New(t)

	toks := lexAll(t, `-3`)
	assert.Len(toks, 1)
	assert.Equal(lang.TokenInt, toks[0].Kind)
	assert.Equal(int32(-3), toks[0].Int)
}

func TestLexerBareMinusIsIdent(t *testing.T) {
	assert := assert.New(t)

	toks := lexAll(t, `(- 1 2)`)
	assert.Equal(lang.TokenIdent, toks[1].Kind)
	assert.Equal("-", toks[1].Ident)
}

func TestLexerStringLiteral(t *testing.T) {
	assert := assert.New(t)

	toks := lexAll(t, `"hi there"`)
	assert.Len(toks, 1)
	assert.Equal(lang.TokenStr, toks[0].Kind)
	assert.Equal("hi there", string(toks[0].Str))
}

func TestLexerSkipsCommentsAndTracksLines(t *testing.T) {
	assert := assert.New(t)

	lx := lang.NewLexer(strings.NewReader("; a comment\n(foo)"))
	tok, err := lx.Next()
	assert.NoError(err)
	assert.Equal(lang.TokenOpen, tok.Kind)
	assert.Equal(2, tok.Line)
}

func TestLexerUnterminatedStringFails(t *testing.T) {
	assert := assert.New(t)

	lx := lang.NewLexer(strings.NewReader(`"unterminated`))
	_, err := lx.Next()
	assert.ErrorIs(err, lang.ErrUnterminatedString)
}

func TestLexerBadIntegerFails(t *testing.T) {
	assert := assert.New(t)

	lx := lang.NewLexer(strings.NewReader(`99999999999999999999`))
	_, err := lx.Next()
	assert.Error(err)
	assert.ErrorAs(err, new(lang.ErrBadInteger))
}
