// Package ir lowers a lang.Forest into a linear three-address IR: an
// unbounded-register instruction stream plus a static-data blob, ready
// for register allocation and codegen.
package ir

import (
	"errors"

	"github.com/tinylisp/tlc/translate"
)

var f = translate.From

var (
	// ErrIndirectCall is returned when a call's head is not an identifier.
	ErrIndirectCall = errors.New(f("function name must be an identifier"))

	// ErrEmptyProgn is returned by (progn) with no arguments.
	ErrEmptyProgn = errors.New(f("progn needs at least one argument"))
)

// ErrUndeclaredVariable names a variable referenced before being set.
type ErrUndeclaredVariable string

func (err ErrUndeclaredVariable) Error() string {
	return f("no variable named '%v' was declared", string(err))
}

// ErrUnknownFunction names an unrecognized call head.
type ErrUnknownFunction string

func (err ErrUnknownFunction) Error() string {
	return f("'%v' is not a known function", string(err))
}

// ErrBadIntrinsicSyntax describes a malformed intrinsic form.
type ErrBadIntrinsicSyntax struct {
	Intrinsic string
	Syntax    string
}

func (err ErrBadIntrinsicSyntax) Error() string {
	return f("syntax: %v", err.Syntax)
}

// ErrArity is returned when a builtin is called with the wrong number of
// arguments.
type ErrArity struct {
	Func string
	Want string
	Got  int
}

func (err ErrArity) Error() string {
	return f("'%v' needs %v arguments, got %v", err.Func, err.Want, err.Got)
}
