package engine

// Node is a statement in the template tree.
type Node interface {
	node()
}

// Expr is an expression inside a tag or output marker.
type Expr interface {
	expr()
}

// TextNode is a run of literal output.
type TextNode struct {
	Text string
}

// OutputNode renders a filtered expression: {{ expr | f1 | f2: arg }}.
type OutputNode struct {
	Pos  int
	Expr *FilteredExpr
}

// AssignNode binds a name in the outermost scope, so the binding survives
// the enclosing block.
type AssignNode struct {
	Pos  int
	Name string
	Expr *FilteredExpr
}

// CaptureNode renders its body into a variable instead of the output.
type CaptureNode struct {
	Pos  int
	Name string
	Body []Node
}

// CondBranch is one condition/body pair of an if chain.
type CondBranch struct {
	Cond Expr
	Body []Node
}

// IfNode holds an if/elsif chain with an optional else body. An unless tag
// parses to the same node with its condition negated.
type IfNode struct {
	Pos      int
	Branches []CondBranch
	Else     []Node
}

// WhenBranch is one arm of a case tag; several values may share a body.
type WhenBranch struct {
	Values []Expr
	Body   []Node
}

// CaseNode compares a subject against when branches.
type CaseNode struct {
	Pos     int
	Subject Expr
	Whens   []WhenBranch
	Else    []Node
}

// ForNode iterates a collection. Else renders when the collection is
// empty.
type ForNode struct {
	Pos        int
	Var        string
	Collection Expr
	Limit      Expr
	Offset     Expr
	Reversed   bool
	Body       []Node
	Else       []Node
}

// BreakNode exits the innermost loop.
type BreakNode struct {
	Pos int
}

// ContinueNode skips to the next loop iteration.
type ContinueNode struct {
	Pos int
}

// Literal is a constant value: string, number, boolean, nil, or the empty
// marker.
type Literal struct {
	Value any
}

// PathExpr resolves a variable, then applies lookups: a.b[c].d has base
// "a" and three lookups.
type PathExpr struct {
	Pos     int
	Base    string
	Lookups []Expr
}

// RangeExpr is an inclusive integer range: (from..to).
type RangeExpr struct {
	From Expr
	To   Expr
}

// BinaryExpr applies a comparison or logical operator.
type BinaryExpr struct {
	Pos   int
	Op    TokenType
	Left  Expr
	Right Expr
}

// NotExpr negates template truth; the parser emits it for unless tags.
type NotExpr struct {
	Expr Expr
}

// FilterCall is one pipeline stage: a filter name with its arguments.
type FilterCall struct {
	Pos  int
	Name string
	Args []Expr
}

// FilteredExpr is an expression followed by zero or more pipeline stages.
type FilteredExpr struct {
	Expr    Expr
	Filters []FilterCall
}

// emptyMarker is the value of the "empty" keyword; comparisons treat it
// specially.
type emptyMarker struct{}

func (*TextNode) node()     {}
func (*OutputNode) node()   {}
func (*AssignNode) node()   {}
func (*CaptureNode) node()  {}
func (*IfNode) node()       {}
func (*CaseNode) node()     {}
func (*ForNode) node()      {}
func (*BreakNode) node()    {}
func (*ContinueNode) node() {}

func (*Literal) expr()      {}
func (*PathExpr) expr()     {}
func (*RangeExpr) expr()    {}
func (*BinaryExpr) expr()   {}
func (*NotExpr) expr()      {}
func (*FilteredExpr) expr() {}
