package sim_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tinylisp/tlc/codegen"
	"github.com/tinylisp/tlc/image"
	"github.com/tinylisp/tlc/ir"
	"github.com/tinylisp/tlc/sim"
)

func assemble(t *testing.T, prog *ir.Program) *image.Image {
	t.Helper()
	data, code, err := codegen.Generate(prog)
	if err != nil {
		t.Fatalf("codegen.Generate: %v", err)
	}
	return image.Assemble(data, code)
}

func TestWriteMemArithmetic(t *testing.T) {
	assert := assert.New(t)

	// (set x 3) (set y 4) (write-mem 3 (+ x y)) -> byte 7
	prog := &ir.Program{
		Data:         make([]uint32, 4),
		NumVariables: 3,
		Code: []ir.Insn{
			{Op: ir.OpMov, Dest: 0, Src1: ir.Const(3)},
			{Op: ir.OpMov, Dest: 1, Src1: ir.Const(4)},
			{Op: ir.OpAdd, Dest: 2, Src1: ir.Var(0), Src2: ir.Var(1)},
			{Op: ir.OpStore, Src1: ir.Const(3), Src2: ir.Var(2)},
			{Op: ir.OpHalt},
		},
	}

	img := assemble(t, prog)

	var out bytes.Buffer
	proc := sim.NewProcessor(img.Words, nil, &out)
	assert.NoError(proc.Run())
	assert.Equal([]byte{7}, out.Bytes())
}

func TestWhileLoopFactorial(t *testing.T) {
	assert := assert.New(t)

	// (set n 5) (set f 1)
	// (while (> n 0) (progn (set f (* f n)) (set n (- n 1))))
	// (write-mem 3 f) -> byte 120
	prog := &ir.Program{
		Data:         make([]uint32, 4),
		NumVariables: 6,
		Code: []ir.Insn{
			{Op: ir.OpMov, Dest: 0, Src1: ir.Const(5)},                        // 0: n = 5
			{Op: ir.OpMov, Dest: 1, Src1: ir.Const(1)},                        // 1: f = 1
			{Op: ir.OpCmpGt, Dest: 2, Src1: ir.Var(0), Src2: ir.Const(0)},     // 2: cond = n > 0
			{Op: ir.OpCmpEqu, Dest: 3, Src1: ir.Var(2), Src2: ir.Const(0)},    // 3: inverse
			{Op: ir.OpJump, Src1: ir.Var(3), Src2: ir.Const(10)},              // 4: if !cond, goto 10
			{Op: ir.OpMul, Dest: 4, Src1: ir.Var(1), Src2: ir.Var(0)},         // 5: tmp = f * n
			{Op: ir.OpMov, Dest: 1, Src1: ir.Var(4)},                          // 6: f = tmp
			{Op: ir.OpSub, Dest: 5, Src1: ir.Var(0), Src2: ir.Const(1)},       // 7: tmp2 = n - 1
			{Op: ir.OpMov, Dest: 0, Src1: ir.Var(5)},                          // 8: n = tmp2
			{Op: ir.OpJump, Src1: ir.Const(1), Src2: ir.Const(2)},             // 9: goto 2
			{Op: ir.OpStore, Src1: ir.Const(3), Src2: ir.Var(1)},              // 10: write-mem 3 f
			{Op: ir.OpHalt},                                                   // 11
		},
	}

	img := assemble(t, prog)

	var out bytes.Buffer
	proc := sim.NewProcessor(img.Words, nil, &out)
	assert.NoError(proc.Run())
	assert.Equal([]byte{120}, out.Bytes())
}

func TestIfModSelectsBranch(t *testing.T) {
	assert := assert.New(t)

	// (if (= (% 10 3) 1) (write-mem 3 65) (write-mem 3 66)) -> 'A'
	prog := &ir.Program{
		Data:         make([]uint32, 4),
		NumVariables: 2,
		Code: []ir.Insn{
			{Op: ir.OpMod, Dest: 0, Src1: ir.Const(10), Src2: ir.Const(3)},  // 0
			{Op: ir.OpCmpEqu, Dest: 1, Src1: ir.Var(0), Src2: ir.Const(1)}, // 1
			{Op: ir.OpJump, Src1: ir.Var(1), Src2: ir.Const(5)},           // 2: if cond, goto then@5
			{Op: ir.OpStore, Src1: ir.Const(3), Src2: ir.Const(66)},       // 3: else branch
			{Op: ir.OpJump, Src1: ir.Const(1), Src2: ir.Const(6)},         // 4: goto end@6
			{Op: ir.OpStore, Src1: ir.Const(3), Src2: ir.Const(65)},       // 5: then branch
			{Op: ir.OpHalt},                                              // 6
		},
	}

	img := assemble(t, prog)

	var out bytes.Buffer
	proc := sim.NewProcessor(img.Words, nil, &out)
	assert.NoError(proc.Run())
	assert.Equal([]byte("A"), out.Bytes())
}

func TestConsecutiveWritesPreserveOrder(t *testing.T) {
	assert := assert.New(t)

	prog := &ir.Program{
		Data:         make([]uint32, 4),
		NumVariables: 0,
		Code: []ir.Insn{
			{Op: ir.OpStore, Src1: ir.Const(3), Src2: ir.Const('x')},
			{Op: ir.OpStore, Src1: ir.Const(3), Src2: ir.Const('y')},
			{Op: ir.OpHalt},
		},
	}

	img := assemble(t, prog)

	var out bytes.Buffer
	proc := sim.NewProcessor(img.Words, nil, &out)
	assert.NoError(proc.Run())
	assert.Equal([]byte("xy"), out.Bytes())
}

func TestUnconditionalJumpLetsSuccessorCorruptARegister(t *testing.T) {
	assert := assert.New(t)

	// (if false (set r 99) (write-mem 3 66)) (write-mem 3 r)
	//
	// cond is false, so the "then" branch (insn 4) is never supposed to
	// run: the else branch (insn 2) writes 66, then an unconditional
	// jmp (insn 3) skips straight past "then" to the final write (insn
	// 6). "then" lowers to a single binop with no nop padding, landing
	// right after the jmp's word in the instruction stream.
	//
	// BUG: Tick sets no stall after an unconditional jmp (see the BUG
	// comment ahead of its decode switch), so that binop — fetched and
	// decoded one tick early as a side effect of the pipeline lag — runs
	// anyway and clobbers r's register before the real target is ever
	// reached. The final write observes the corrupted value, even
	// though "then" never executes through the program's real control
	// flow.
	prog := &ir.Program{
		Data:         make([]uint32, 4),
		NumVariables: 2,
		Code: []ir.Insn{
			{Op: ir.OpMov, Dest: 0, Src1: ir.Const(0)},                 // 0: cond = false
			{Op: ir.OpJump, Src1: ir.Var(0), Src2: ir.Const(4)},        // 1: if cond, goto then@4
			{Op: ir.OpStore, Src1: ir.Const(3), Src2: ir.Const(66)},    // 2: else: write-mem 3 66
			{Op: ir.OpJump, Src1: ir.Const(1), Src2: ir.Const(6)},      // 3: goto end@6
			{Op: ir.OpAdd, Dest: 1, Src1: ir.Const(99), Src2: ir.Const(0)}, // 4: then: r = 99
			{Op: ir.OpStore, Src1: ir.Const(3), Src2: ir.Var(1)},       // 5: then: write-mem 3 r
			{Op: ir.OpStore, Src1: ir.Const(3), Src2: ir.Var(1)},       // 6: end: write-mem 3 r
			{Op: ir.OpHalt},                                           // 7
		},
	}

	img := assemble(t, prog)

	var out bytes.Buffer
	proc := sim.NewProcessor(img.Words, nil, &out)
	assert.NoError(proc.Run())
	// A bug-free pipeline would observe r untouched (still 0) at insn 6,
	// producing {66, 0}. The pipeline actually produces {66, 99}: r was
	// clobbered by "then"'s spurious early decode before insn 6 ran.
	assert.Equal([]byte{66, 99}, out.Bytes())
}

func TestMMIOReadPullsFromInputAndZeroOnEOF(t *testing.T) {
	assert := assert.New(t)

	prog := &ir.Program{
		Data:         make([]uint32, 4),
		NumVariables: 1,
		Code: []ir.Insn{
			{Op: ir.OpLoad, Dest: 0, Src1: ir.Const(3)},
			{Op: ir.OpStore, Src1: ir.Const(3), Src2: ir.Var(0)},
			// The input holds one byte, so this second read hits EOF.
			{Op: ir.OpLoad, Dest: 0, Src1: ir.Const(3)},
			{Op: ir.OpStore, Src1: ir.Const(3), Src2: ir.Var(0)},
			{Op: ir.OpHalt},
		},
	}

	img := assemble(t, prog)

	in := bytes.NewBufferString("Z")
	var out bytes.Buffer
	proc := sim.NewProcessor(img.Words, in, &out)
	assert.NoError(proc.Run())
	assert.Equal([]byte{'Z', 0}, out.Bytes())
}
