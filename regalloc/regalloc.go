package regalloc

import (
	"math"
	"sort"

	"github.com/tinylisp/tlc/ir"
)

// Lifetime is the span of instruction indices a variable is alive
// across: from its first mention to its last, inclusive. This is a
// coarser approximation than true liveness — see Color.
type Lifetime struct {
	Start int
	End   int
}

// BuildLifetimes scans code and returns, for each of the numVariables
// abstract variables, the instruction-index range it is mentioned in as
// a dest, src1, or src2 operand.
func BuildLifetimes(numVariables int, code []ir.Insn) []Lifetime {
	result := make([]Lifetime, numVariables)
	for i := range result {
		result[i] = Lifetime{Start: math.MaxInt32, End: math.MinInt32}
	}

	update := func(v ir.Value, insnID int) {
		if !v.IsVar() {
			return
		}
		life := &result[v.VarID()]
		if insnID < life.Start {
			life.Start = insnID
		}
		if insnID > life.End {
			life.End = insnID
		}
	}

	for insnID, insn := range code {
		if insn.HasValidDest() {
			update(ir.Var(insn.Dest), insnID)
		}
		if insn.HasValidSrc1() {
			update(insn.Src1, insnID)
		}
		if insn.HasValidSrc2() {
			update(insn.Src2, insnID)
		}
	}

	return result
}

// ColoringResult is the output of Color: each variable's assigned home,
// and how many ended up spilled.
type ColoringResult struct {
	Locs                []Location
	NumSpilledVariables int
}

// Color greedily assigns a register, or a static-data spill slot
// starting at memBase, to each variable in lives.
//
// BUG: this allocator treats a variable's lifetime as a single
// contiguous interval between its first and last mention, rather than
// tracking the actual live ranges across control flow. A variable whose
// true liveness has a gap spanning a loop back-edge can be judged
// non-conflicting with one that is live only inside the loop body, and
// the two can be colored to the same register — miscompiling the
// program. This mirrors a known defect in the reference allocator and
// is preserved rather than fixed.
func Color(lives []Lifetime, memBase uint32) ColoringResult {
	order := make([]int, len(lives))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		la, lb := lives[order[a]], lives[order[b]]
		return (la.End - la.Start) < (lb.End - lb.Start)
	})

	result := ColoringResult{Locs: make([]Location, len(lives))}

	for i, ourID := range order {
		ourLife := lives[ourID]

		var taken [NumGPRegisters]bool
		for j := 0; j < i; j++ {
			theirID := order[j]
			theirLife := lives[theirID]
			theirLoc := result.Locs[theirID]
			if theirLoc.IsRegister() &&
				ourLife.End >= theirLife.Start &&
				ourLife.Start <= theirLife.End {
				taken[theirLoc.RegisterID()] = true
			}
		}

		assigned := false
		for reg, busy := range taken {
			if !busy {
				result.Locs[ourID] = Register(uint8(reg))
				assigned = true
				break
			}
		}
		if !assigned {
			result.Locs[ourID] = Address(memBase)
			memBase++
			result.NumSpilledVariables++
		}
	}

	return result
}
