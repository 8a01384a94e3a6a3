// Package lang implements the lexer and parser for the tinylisp source
// language: a small S-expression syntax of identifiers, integers, strings,
// and parenthesized calls.
package lang

import (
	"errors"

	"github.com/tinylisp/tlc/translate"
)

var f = translate.From

var (
	// ErrUnterminatedString is returned when a string literal is not
	// closed before the input stream ends.
	ErrUnterminatedString = errors.New(f("unterminated string literal"))

	// ErrNonCallAtRoot is returned when a token other than '(' appears
	// at the top level.
	ErrNonCallAtRoot = errors.New(f("only calls are allowed at the top level"))

	// ErrEmptyParens is returned when ')' closes a call with no children.
	ErrEmptyParens = errors.New(f("empty parens make no sense"))

	// ErrUnbalancedParens is returned when parens don't balance by EOF.
	ErrUnbalancedParens = errors.New(f("unbalanced parens"))
)

// ErrBadInteger indicates a word that looked like an integer literal but
// failed to parse.
type ErrBadInteger struct {
	Text   string
	Reason string
}

func (err ErrBadInteger) Error() string {
	return f("bad integer literal '%v': %v", err.Text, err.Reason)
}

// ErrLine wraps an error with the source line it occurred on.
type ErrLine struct {
	Line int
	Err  error
}

func (err *ErrLine) Error() string {
	return f("line %d: %v", err.Line, err.Err)
}

func (err *ErrLine) Unwrap() error {
	return err.Err
}
