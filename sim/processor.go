package sim

import (
	"io"

	"github.com/tinylisp/tlc/codegen"
)

// encodedNop is "add r0, r0, 0" — the processor's reset primer, and the
// guard word codegen installs after the entry jump to keep the one-tick
// post-jump fetch bubble from decoding into something harmful. See
// (*Processor).Tick for why that bubble exists.
const encodedNop = uint32(codegen.OpAdd) | (1 << 10)

// ctrlLatch is everything decode computes about one fetched word, valid
// for exactly the tick after it is promoted from next to current.
type ctrlLatch struct {
	op codegen.Op

	memRead, memWrite bool
	memAddr, memWdata uint32

	destReg      uint8
	destRegWrite bool

	halt bool

	doingJif     bool
	selFetchHead bool
	imm1         uint32

	src1Reg, src2Reg     uint8
	src1IsImm, src2IsImm bool
	src1Imm, src2Imm     uint32

	stall          int
	forceIncrement bool
}

// Processor is the four-stage pipelined simulator: one call to Tick
// advances fetch, decode, execute, and memory access by exactly one
// step, in the order the hardware ISA's pipelining depends on.
type Processor struct {
	Memory    []uint32
	Registers [64]uint32

	fetchHead int64

	ctrl     ctrlLatch
	nextCtrl ctrlLatch

	pendingFetchedWord uint32

	src1, src2 uint32

	port port
}

// NewProcessor builds a Processor over memory, with in/out bridged to
// the memory-mapped I/O port at MMIOAddr. Fetch starts at -1 (wraps to
// 0 on the first increment) and both pipeline stages are primed with
// the no-op, per the reset sequence the first two ticks execute.
func NewProcessor(memory []uint32, in io.Reader, out io.Writer) *Processor {
	p := &Processor{
		Memory:    memory,
		fetchHead: -1,
		port:      port{input: in, output: out},
	}

	primer, err := decodeWord(encodedNop, &p.Registers)
	if err != nil {
		panic("sim: the reset primer failed to decode — this is a bug in encodedNop")
	}
	p.ctrl = primer
	p.nextCtrl = primer
	p.pendingFetchedWord = encodedNop

	return p
}

func decodeWord(word uint32, registers *[64]uint32) (ctrlLatch, error) {
	var c ctrlLatch
	c.op = codegen.Op(word & 0xF)

	switch c.op {
	case codegen.OpHalt:
		c.halt = true

	case codegen.OpLoad, codegen.OpStore:
		reg := uint8((word >> 4) & 0x3F)
		regMode := (word>>10)&1 == 1
		if regMode {
			srcReg := uint8((word >> 11) & 0x3F)
			c.memAddr = registers[srcReg]
		} else {
			c.memAddr = (word >> 11) & 0x1FFFFF
		}
		if c.op == codegen.OpLoad {
			c.memRead = true
			c.destReg = reg
			c.destRegWrite = true
		} else {
			c.memWrite = true
			c.memWdata = registers[reg]
		}

	case codegen.OpJmp:
		c.selFetchHead = true
		c.imm1 = (word >> 4) & 0xFFFFFFF

	case codegen.OpJif:
		c.doingJif = true
		c.src1Reg = uint8((word >> 4) & 0x3F)
		c.imm1 = (word >> 10) & 0x3FFFFF

	case codegen.OpAdd, codegen.OpSub, codegen.OpMul, codegen.OpDiv, codegen.OpMod,
		codegen.OpCmpEqu, codegen.OpCmpGt, codegen.OpCmpLt:
		c.destReg = uint8((word >> 4) & 0x3F)
		c.destRegWrite = true
		src1 := (word >> 10) & 0x7FF
		src2 := (word >> 21) & 0x7FF
		if src1&1 == 0 {
			c.src1IsImm = true
			c.src1Imm = src1 >> 1
		} else {
			c.src1Reg = uint8((src1 >> 1) & 0x3F)
		}
		if src2&1 == 0 {
			c.src2IsImm = true
			c.src2Imm = src2 >> 1
		} else {
			c.src2Reg = uint8((src2 >> 1) & 0x3F)
		}

	default:
		return ctrlLatch{}, ErrBadOpcode{Word: word}
	}

	return c, nil
}

func resolveOperand(isImm bool, imm uint32, reg uint8, registers *[64]uint32) uint32 {
	if isImm {
		return imm
	}
	return registers[reg]
}

func runALU(op codegen.Op, src1, src2 uint32) uint32 {
	switch op {
	case codegen.OpAdd:
		return src1 + src2
	case codegen.OpSub:
		return src1 - src2
	case codegen.OpMul:
		return src1 * src2
	case codegen.OpDiv:
		if src2 == 0 {
			return 0
		}
		return src1 / src2
	case codegen.OpMod:
		if src2 == 0 {
			return 0
		}
		return src1 % src2
	case codegen.OpCmpEqu:
		if src1 == src2 {
			return 1
		}
		return 0
	case codegen.OpCmpGt:
		if src1 > src2 {
			return 1
		}
		return 0
	case codegen.OpCmpLt:
		if src1 < src2 {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// Tick advances the processor by one logical step, in this order:
//
//  1. Promote next_ctrl to ctrl. If stalled, mask effectful bits (memory
//     write, register write, halt) and force fetch to increment.
//  2. Perform the memory operation ctrl asked for, bridging MMIOAddr to
//     the I/O port.
//  3. Read ctrl's source registers.
//  4. Decode the word fetched last tick into next_ctrl. A taken jif
//     sets next_ctrl.stall = 2 (flushing the one already-fetched
//     wrong-path word); an already-stalled ctrl decrements the count.
//  5. Advance fetch: forced increment, else ctrl's jmp target, else
//     (if ctrl is a jif) branch per the register just read, else
//     increment.
//  6. Run the ALU.
//  7. Write back, if ctrl asked for it.
//
// Because step 4's decode always runs one tick before its ctrl is
// acted on in step 5, a jump's redirection lags fetch by one tick: the
// word physically following any jmp/jif gets fetched and decoded
// before the redirect lands. For a jmp or a taken jif, that word is the
// one the stall flushes: its memory write, register write and halt are
// masked. The decode itself still runs, which is why codegen puts a nop
// guard at Memory[1] and Memory[2] after the bootstrap entry jump
// rather than leave static data there.
func (p *Processor) Tick() (halted bool, err error) {
	p.ctrl = p.nextCtrl
	if p.ctrl.stall > 0 {
		p.ctrl.memWrite = false
		p.ctrl.destRegWrite = false
		p.ctrl.halt = false
		p.ctrl.forceIncrement = true
	}

	var memRdata uint32
	if p.ctrl.memRead {
		if p.ctrl.memAddr == MMIOAddr {
			memRdata = uint32(p.port.readByte())
		} else if int(p.ctrl.memAddr) < len(p.Memory) {
			memRdata = p.Memory[p.ctrl.memAddr]
		}
	}
	if p.ctrl.memWrite {
		if p.ctrl.memAddr == MMIOAddr {
			p.port.writeByte(byte(p.ctrl.memWdata))
		} else if int(p.ctrl.memAddr) < len(p.Memory) {
			p.Memory[p.ctrl.memAddr] = p.ctrl.memWdata
		}
	}

	p.src1 = resolveOperand(p.ctrl.src1IsImm, p.ctrl.src1Imm, p.ctrl.src1Reg, &p.Registers)
	p.src2 = resolveOperand(p.ctrl.src2IsImm, p.ctrl.src2Imm, p.ctrl.src2Reg, &p.Registers)

	// BUG: only a taken jif flushes the word it speculatively decoded.
	// An unconditional jmp (selFetchHead) sets no stall at all, so
	// whatever word physically follows it in memory — already decoded
	// into next one tick early, per Tick's doc comment above — goes on
	// to execute normally on the following tick. codegen's two-nop pad
	// before every memop happens to make that word a harmless no-op
	// whenever a jmp is immediately followed by a memop, but any other
	// instruction sitting there (a binop or mov with no such padding)
	// still runs once before the jump's real target is ever reached.
	// This mirrors a known defect in the reference pipeline and is
	// preserved rather than fully eliminated.
	next, decodeErr := decodeWord(p.pendingFetchedWord, &p.Registers)
	if decodeErr != nil {
		return false, decodeErr
	}
	switch {
	case p.ctrl.doingJif && p.src1 != 0:
		next.stall = 2
	case p.ctrl.stall > 0:
		next.stall = p.ctrl.stall - 1
	}
	p.nextCtrl = next

	var newHead int64
	switch {
	case p.ctrl.forceIncrement:
		newHead = p.fetchHead + 1
	case p.ctrl.selFetchHead:
		newHead = int64(p.ctrl.imm1)
	case p.ctrl.doingJif:
		if p.src1 != 0 {
			newHead = int64(p.ctrl.imm1)
		} else {
			newHead = p.fetchHead + 1
		}
	default:
		newHead = p.fetchHead + 1
	}
	p.fetchHead = newHead
	if newHead >= 0 && int(newHead) < len(p.Memory) {
		p.pendingFetchedWord = p.Memory[newHead]
	} else {
		p.pendingFetchedWord = encodedNop
	}

	aluResult := runALU(p.ctrl.op, p.src1, p.src2)

	if p.ctrl.destRegWrite {
		if p.ctrl.op == codegen.OpLoad {
			p.Registers[p.ctrl.destReg] = memRdata
		} else {
			p.Registers[p.ctrl.destReg] = aluResult
		}
	}

	return p.ctrl.halt, nil
}

// Run ticks the processor until it halts or an error occurs.
func (p *Processor) Run() error {
	for {
		halted, err := p.Tick()
		if err != nil {
			return err
		}
		if halted {
			return nil
		}
	}
}
