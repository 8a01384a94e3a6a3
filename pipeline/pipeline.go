// Package pipeline wires the compiler stages end to end: source text in,
// a runnable hardware image out, following the same Reset/Tick-style
// orchestration the reference emulator uses to drive its CPU.
package pipeline

import (
	"io"

	"github.com/tinylisp/tlc/codegen"
	"github.com/tinylisp/tlc/image"
	"github.com/tinylisp/tlc/ir"
	"github.com/tinylisp/tlc/lang"
	"github.com/tinylisp/tlc/sim"
)

// Compile runs the full front half of the toolchain — lex, parse,
// compile to three-address IR, allocate registers, and lower to
// hardware words — and returns the assembled image.
func Compile(src io.Reader) (*image.Image, error) {
	forest, err := lang.Parse(src)
	if err != nil {
		return nil, &ErrStage{Stage: "parse", Err: err}
	}

	prog, err := ir.Compile(forest)
	if err != nil {
		return nil, &ErrStage{Stage: "compile", Err: err}
	}

	data, code, err := codegen.Generate(prog)
	if err != nil {
		return nil, &ErrStage{Stage: "codegen", Err: err}
	}

	return image.Assemble(data, code), nil
}

// Machine bundles an assembled image with a processor ready to run it,
// so callers that want tick-by-tick control don't have to know how the
// two are wired together.
type Machine struct {
	Image *image.Image
	Proc  *sim.Processor
}

// NewMachine assembles src and primes a processor over the result, with
// in/out bridged to the processor's memory-mapped I/O port.
func NewMachine(src io.Reader, in io.Reader, out io.Writer) (*Machine, error) {
	img, err := Compile(src)
	if err != nil {
		return nil, err
	}

	return &Machine{
		Image: img,
		Proc:  sim.NewProcessor(img.Words, in, out),
	}, nil
}

// Run compiles src and runs it to completion, writing its output to out
// and reading MMIO input from in.
func Run(src io.Reader, in io.Reader, out io.Writer) error {
	m, err := NewMachine(src, in, out)
	if err != nil {
		return err
	}
	if err := m.Proc.Run(); err != nil {
		return &ErrStage{Stage: "run", Err: err}
	}
	return nil
}
