package lang

// NodeKind distinguishes the four AST node shapes.
type NodeKind int

const (
	NodeIdent NodeKind = iota
	NodeInt
	NodeStr
	NodeCall
)

// Node is an S-expression AST node: an atom (Ident/Int/Str) or a Call
// with one or more children. Only the field matching Kind is meaningful.
type Node struct {
	Kind     NodeKind
	Line     int
	Ident    string
	Int      int32
	Str      []byte
	Children []Node
}

// Forest is the top-level result of parsing: a sequence of top-level
// Call nodes.
type Forest struct {
	Exprs []Node
}
