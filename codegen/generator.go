package codegen

import (
	"github.com/tinylisp/tlc/ir"
	"github.com/tinylisp/tlc/regalloc"
)

// largeForBinopThreshold is the point past which a constant no longer
// fits a binop's 10-bit immediate field and must instead be spilled to
// static data and loaded.
const largeForBinopThreshold = 1 << 10

func isLargeForBinop(v int32) bool {
	return uint32(v) >= largeForBinopThreshold
}

// Generator lowers colored IR into hardware words. Call UseColoring once
// before any Handle* call, run HandleInsn over every IR instruction, then
// PostFixupJumps once at the end.
type Generator struct {
	Data []uint32
	Code []uint32

	varLocs []regalloc.Location

	irToHwPos  []uint32
	jumpsHwPos []uint32
}

// UseColoring admits a coloring produced by regalloc.Color. Spilled
// variables are given space at the end of Data.
func (g *Generator) UseColoring(coloring regalloc.ColoringResult) {
	g.varLocs = coloring.Locs
	g.Data = append(g.Data, make([]uint32, coloring.NumSpilledVariables)...)
}

func (g *Generator) isSpilled(varID int) bool {
	return !g.varLocs[varID].IsRegister()
}

func (g *Generator) regOf(varID int) uint8 {
	return g.varLocs[varID].RegisterID()
}

func (g *Generator) addrOf(varID int) uint32 {
	return g.varLocs[varID].AddressValue()
}

func (g *Generator) spillConstant(v int32) uint32 {
	addr := uint32(len(g.Data))
	g.Data = append(g.Data, uint32(v))
	return addr
}

// =============================================================================
// Jump fixup.
//
// IR jump targets are indices into the IR instruction stream, but an IR
// instruction can expand into zero, one, or several hardware words, and
// hardware code sits after static data whose final length isn't known
// until codegen completes. So every jump is first emitted pointing at an
// IR index, and PostFixupJumps rewrites it to the true hardware address
// once irToHwPos is complete.

func (g *Generator) rememberJump() {
	g.jumpsHwPos = append(g.jumpsHwPos, uint32(len(g.Code)))
}

// PostFixupJumps rewrites every jump's encoded target from an IR index
// to its corresponding hardware address, and installs the entry jump at
// Data[0]. Must be called exactly once, after all codegen.
func (g *Generator) PostFixupJumps() {
	codeOffset := uint32(len(g.Data))

	for _, jumpPos := range g.jumpsHwPos {
		insn := g.Code[jumpPos]
		opcode := Op(insn & 0xF)

		var immBitPos uint32
		switch opcode {
		case OpJmp:
			immBitPos = 4
		case OpJif:
			immBitPos = 10
		default:
			panic("codegen: remembered jump position is not a jmp/jif")
		}

		irOffset := insn >> immBitPos
		hwOffset := g.irToHwPos[irOffset] + codeOffset
		insn &= (1 << immBitPos) - 1
		insn |= hwOffset << immBitPos
		g.Code[jumpPos] = insn
	}

	g.Data[0] = uint32(OpJmp) | (codeOffset << 4)

	// The bootstrap entry jump suffers the same one-tick fetch-redirect
	// lag as any other jump: the word physically after it gets fetched
	// and decoded before the redirect lands. Unlike a jump inside
	// compiled code, whatever follows the entry jump is a reserved
	// static-data slot the compiler controls, so guard it with the same
	// no-op used to pad memops rather than leave it at its data value
	// (which would often decode as a bogus, effectful instruction).
	for _, i := range []int{1, 2} {
		if i < len(g.Data) {
			g.Data[i] = encodedNop
		}
	}
}

// =============================================================================
// Raw hardware-instruction emission.

// EmitBinop, EmitJmp and EmitJif panic with an ErrImmediateOverflow on
// an out-of-range immediate or jump target; Generate recovers it into a
// returned error, since the alternative is threading an error return
// through every Handle* call in this file. EmitLoad and EmitStore do not
// check their address (see emitMemop).

func (g *Generator) EmitLoad(dest uint8, addr regalloc.Location) {
	g.emitMemop(OpLoad, dest, addr)
}

func (g *Generator) EmitStore(addr regalloc.Location, src uint8) {
	g.emitMemop(OpStore, src, addr)
}

// BUG: an absolute address that does not fit the 21-bit immediate field
// is not rejected here. makeMemopHighBitsImm shifts it into place with a
// plain uint32 shift, so the bits above the 21-bit field are silently
// dropped and the word encodes the address modulo 1<<21 instead of
// erroring — a pointer just large
// enough to overflow produces a malformed instruction rather than a
// diagnosable failure. This mirrors a known defect in the reference
// assembler and is preserved rather than fixed.
func (g *Generator) emitMemop(op Op, reg uint8, addr regalloc.Location) {
	var highBits uint32
	if addr.IsRegister() {
		highBits = makeMemopHighBitsReg(addr.RegisterID())
	} else {
		highBits = makeMemopHighBitsImm(addr.AddressValue())
	}

	// Two nops pad every memop. The processor reads a memop's address
	// and data registers when it decodes the memop, before the
	// instruction ahead of it has written back, so without the padding a
	// memop would miss a value computed just before it (such as
	// HandleStore's scratch registers).
	g.Code = append(g.Code, encodedNop, encodedNop)
	g.Code = append(g.Code, makeMemop(op, reg, highBits))
}

// binopSrc is a resolved operand for EmitBinop: either a register or an
// immediate, already fitted to the 10-bit immediate field.
type binopSrc struct {
	isReg bool
	reg   uint8
	imm   uint32
}

func binopReg(reg uint8) binopSrc  { return binopSrc{isReg: true, reg: reg} }
func binopImm(imm uint32) binopSrc { return binopSrc{isReg: false, imm: imm} }

func (s binopSrc) encode() uint32 {
	if s.isReg {
		return encodeRegOperand(s.reg)
	}
	if s.imm >= (1 << 10) {
		panic(ErrImmediateOverflow{What: "binop immediate", Value: s.imm, Bits: 10})
	}
	return encodeImmOperand(s.imm)
}

func (g *Generator) EmitBinop(op Op, dest uint8, src1, src2 binopSrc) {
	g.Code = append(g.Code, makeBinop(op, dest, src1.encode(), src2.encode()))
}

func (g *Generator) EmitJmp(irTarget int32) {
	if uint32(irTarget) >= (1 << 28) {
		panic(ErrImmediateOverflow{What: "jmp target", Value: uint32(irTarget), Bits: 28})
	}
	g.rememberJump()
	g.Code = append(g.Code, makeJmp(uint32(irTarget)))
}

func (g *Generator) EmitJif(condition uint8, irTarget int32) {
	if uint32(irTarget) >= (1 << 22) {
		panic(ErrImmediateOverflow{What: "jif target", Value: uint32(irTarget), Bits: 22})
	}
	g.rememberJump()
	g.Code = append(g.Code, makeJif(condition, uint32(irTarget)))
}

// =============================================================================
// Handling IR instructions.

func (g *Generator) handleFetchConst(dest uint8, v int32) {
	if isLargeForBinop(v) {
		g.EmitLoad(dest, regalloc.Address(g.spillConstant(v)))
	} else {
		g.EmitBinop(OpAdd, dest, binopImm(uint32(v)), binopImm(0))
	}
}

// HandleMov lowers an IR mov, choosing among register, memory, and
// constant source/destination combinations.
func (g *Generator) HandleMov(dest int, src ir.Value) {
	destSpilled := g.isSpilled(dest)

	switch {
	case !destSpilled && src.IsVar() && !g.isSpilled(src.VarID()):
		g.EmitBinop(OpAdd, g.regOf(dest), binopReg(g.regOf(src.VarID())), binopImm(0))
	case !destSpilled && src.IsVar() && g.isSpilled(src.VarID()):
		g.EmitLoad(g.regOf(dest), regalloc.Address(g.addrOf(src.VarID())))
	case !destSpilled && !src.IsVar():
		g.handleFetchConst(g.regOf(dest), src.ConstValue())
	case destSpilled && src.IsVar() && !g.isSpilled(src.VarID()):
		g.EmitStore(regalloc.Address(g.addrOf(dest)), g.regOf(src.VarID()))
	case destSpilled && src.IsVar() && g.isSpilled(src.VarID()):
		g.EmitLoad(regalloc.ScratchReg1, regalloc.Address(g.addrOf(src.VarID())))
		g.EmitStore(regalloc.Address(g.addrOf(dest)), regalloc.ScratchReg1)
	case destSpilled && !src.IsVar():
		g.handleFetchConst(regalloc.ScratchReg1, src.ConstValue())
		g.EmitStore(regalloc.Address(g.addrOf(dest)), regalloc.ScratchReg1)
	}
}

// HandleLoad lowers an IR load (dest <- mem[addr]).
func (g *Generator) HandleLoad(dest int, addr ir.Value) {
	destSpilled := g.isSpilled(dest)

	switch {
	case !destSpilled && !addr.IsVar():
		g.EmitLoad(g.regOf(dest), regalloc.Address(uint32(addr.ConstValue())))
	case !destSpilled && addr.IsVar() && !g.isSpilled(addr.VarID()):
		g.EmitLoad(g.regOf(dest), regalloc.Register(g.regOf(addr.VarID())))
	case !destSpilled && addr.IsVar() && g.isSpilled(addr.VarID()):
		g.EmitLoad(regalloc.ScratchReg1, regalloc.Address(g.addrOf(addr.VarID())))
		g.EmitLoad(g.regOf(dest), regalloc.Register(regalloc.ScratchReg1))
	case destSpilled && !addr.IsVar():
		g.EmitLoad(regalloc.ScratchReg1, regalloc.Address(uint32(addr.ConstValue())))
		g.EmitStore(regalloc.Address(g.addrOf(dest)), regalloc.ScratchReg1)
	case destSpilled && addr.IsVar() && !g.isSpilled(addr.VarID()):
		g.EmitLoad(regalloc.ScratchReg1, regalloc.Register(g.regOf(addr.VarID())))
		g.EmitStore(regalloc.Address(g.addrOf(dest)), regalloc.ScratchReg1)
	case destSpilled && addr.IsVar() && g.isSpilled(addr.VarID()):
		g.EmitLoad(regalloc.ScratchReg1, regalloc.Address(g.addrOf(addr.VarID())))
		g.EmitLoad(regalloc.ScratchReg1, regalloc.Register(regalloc.ScratchReg1))
		g.EmitStore(regalloc.Address(g.addrOf(dest)), regalloc.ScratchReg1)
	}
}

// HandleStore lowers an IR store (mem[addr] <- src). It never emits a
// store-immediate, even when addr is a small constant.
func (g *Generator) HandleStore(addr, src ir.Value) {
	if src.IsVar() {
		if g.isSpilled(src.VarID()) {
			g.EmitLoad(regalloc.ScratchReg1, regalloc.Address(g.addrOf(src.VarID())))
		} else {
			g.EmitBinop(OpAdd, regalloc.ScratchReg1, binopReg(g.regOf(src.VarID())), binopImm(0))
		}
	} else {
		g.handleFetchConst(regalloc.ScratchReg1, src.ConstValue())
	}

	var addrReg uint8
	if addr.IsVar() {
		if g.isSpilled(addr.VarID()) {
			g.EmitLoad(regalloc.ScratchReg2, regalloc.Address(g.addrOf(addr.VarID())))
			addrReg = regalloc.ScratchReg2
		} else {
			addrReg = g.regOf(addr.VarID())
		}
	} else {
		g.handleFetchConst(regalloc.ScratchReg2, addr.ConstValue())
		addrReg = regalloc.ScratchReg2
	}

	g.EmitStore(regalloc.Register(addrReg), regalloc.ScratchReg1)
}

var binopOpcodes = map[ir.Op]Op{
	ir.OpAdd:    OpAdd,
	ir.OpSub:    OpSub,
	ir.OpMul:    OpMul,
	ir.OpDiv:    OpDiv,
	ir.OpMod:    OpMod,
	ir.OpCmpEqu: OpCmpEqu,
	ir.OpCmpGt:  OpCmpGt,
	ir.OpCmpLt:  OpCmpLt,
}

func (g *Generator) convertBinopOperand(scratch uint8, v ir.Value) binopSrc {
	if v.IsVar() {
		if !g.isSpilled(v.VarID()) {
			return binopReg(g.regOf(v.VarID()))
		}
		g.EmitLoad(scratch, regalloc.Address(g.addrOf(v.VarID())))
		return binopReg(scratch)
	}
	if !isLargeForBinop(v.ConstValue()) {
		return binopImm(uint32(v.ConstValue()))
	}
	g.EmitLoad(scratch, regalloc.Address(g.spillConstant(v.ConstValue())))
	return binopReg(scratch)
}

// HandleBinop lowers any arithmetic or comparison IR instruction.
func (g *Generator) HandleBinop(insn ir.Insn) {
	op, ok := binopOpcodes[insn.Op]
	if !ok {
		panic("codegen: HandleBinop called with a non-binop instruction")
	}

	src1 := g.convertBinopOperand(regalloc.ScratchReg1, insn.Src1)
	src2 := g.convertBinopOperand(regalloc.ScratchReg2, insn.Src2)

	if g.isSpilled(insn.Dest) {
		g.EmitBinop(op, regalloc.ScratchReg1, src1, src2)
		g.EmitStore(regalloc.Address(g.addrOf(insn.Dest)), regalloc.ScratchReg1)
	} else {
		g.EmitBinop(op, g.regOf(insn.Dest), src1, src2)
	}
}

// HandleJump lowers an IR conditional (or unconditional-constant) jump
// to an IR instruction index, recorded for PostFixupJumps to resolve.
func (g *Generator) HandleJump(condition ir.Value, irTarget int32) {
	if !condition.IsVar() {
		if condition.ConstValue() != 0 {
			g.EmitJmp(irTarget)
		}
		return
	}

	if g.isSpilled(condition.VarID()) {
		g.EmitLoad(regalloc.ScratchReg1, regalloc.Address(g.addrOf(condition.VarID())))
		g.EmitJif(regalloc.ScratchReg1, irTarget)
	} else {
		g.EmitJif(g.regOf(condition.VarID()), irTarget)
	}
}

// HandleInsn lowers a single IR instruction, recording its IR-to-HW
// position mapping first so backward jumps into it resolve correctly.
func (g *Generator) HandleInsn(insn ir.Insn) {
	g.irToHwPos = append(g.irToHwPos, uint32(len(g.Code)))

	switch insn.Op {
	case ir.OpHalt:
		g.Code = append(g.Code, uint32(OpHalt))
	case ir.OpMov:
		g.HandleMov(insn.Dest, insn.Src1)
	case ir.OpJump:
		g.HandleJump(insn.Src1, insn.Src2.ConstValue())
	case ir.OpLoad:
		g.HandleLoad(insn.Dest, insn.Src1)
	case ir.OpStore:
		g.HandleStore(insn.Src1, insn.Src2)
	default:
		g.HandleBinop(insn)
	}
}

// Generate runs the full colored-IR-to-hardware-words pipeline over
// prog: register allocation, instruction lowering, and jump fixup.
func Generate(prog *ir.Program) (data, code []uint32, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				data, code, err = nil, nil, e
				return
			}
			panic(r)
		}
	}()

	lives := regalloc.BuildLifetimes(prog.NumVariables, prog.Code)

	g := &Generator{Data: append([]uint32(nil), prog.Data...)}
	g.UseColoring(regalloc.Color(lives, uint32(len(g.Data))))

	for _, insn := range prog.Code {
		g.HandleInsn(insn)
	}
	g.PostFixupJumps()

	return g.Data, g.Code, nil
}
