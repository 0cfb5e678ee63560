// ast.go — the Runix syntax tree.
//
// Nodes form two sealed families, Stmt and Expr. Each node has an Accept
// method that calls the matching method of a StmtVisitor or ExprVisitor, so
// a consumer that implements the visitor interfaces is checked by the
// compiler: a node kind added here does not build until every visitor
// handles it.
//
// Nodes are produced by the parser and never mutated afterwards; a *Program
// may be shared by several interpreters (see cache.go).
package runix

// Node is implemented by every syntax tree node.
type Node interface {
	Position() Pos
}

// Stmt is a statement or declaration.
type Stmt interface {
	Node
	Accept(v StmtVisitor) (Completion, error)
}

// Expr is an expression.
type Expr interface {
	Node
	Accept(v ExprVisitor) (Value, error)
}

// StmtVisitor has one method per statement kind.
type StmtVisitor interface {
	VisitFunctionDecl(s *FunctionDecl) (Completion, error)
	VisitVarDecl(s *VarDecl) (Completion, error)
	VisitPrintStmt(s *PrintStmt) (Completion, error)
	VisitIfStmt(s *IfStmt) (Completion, error)
	VisitWhileStmt(s *WhileStmt) (Completion, error)
	VisitForStmt(s *ForStmt) (Completion, error)
	VisitReturnStmt(s *ReturnStmt) (Completion, error)
	VisitExpressionStmt(s *ExpressionStmt) (Completion, error)
	VisitBlock(s *Block) (Completion, error)
}

// ExprVisitor has one method per expression kind.
type ExprVisitor interface {
	VisitBinaryExpr(e *BinaryExpr) (Value, error)
	VisitUnaryExpr(e *UnaryExpr) (Value, error)
	VisitAssignExpr(e *AssignExpr) (Value, error)
	VisitLiteralExpr(e *LiteralExpr) (Value, error)
	VisitVariableExpr(e *VariableExpr) (Value, error)
	VisitCallExpr(e *CallExpr) (Value, error)
}

// Signal tells an enclosing construct how a statement finished.
type Signal int

const (
	Normal Signal = iota
	Return
)

// Completion is the result of executing a statement: its value and whether a
// return is unwinding to the enclosing function.
type Completion struct {
	Signal Signal
	Value  Value
}

// Program is the root of a parsed source text.
type Program struct {
	Statements []Stmt
}

// ─────────────────────────────── statements ────────────────────────────────

// FunctionDecl declares a named function.
type FunctionDecl struct {
	Pos
	Name   string
	Params []string
	Body   *Block
}

// VarDecl is a let or const declaration. Initializer may be nil.
type VarDecl struct {
	Pos
	Name        string
	Const       bool
	Initializer Expr
}

type PrintStmt struct {
	Pos
	Expr Expr
}

// IfStmt is a conditional. Else is nil when absent; an "else if" chain is an
// Else block holding a single IfStmt.
type IfStmt struct {
	Pos
	Condition Expr
	Then      *Block
	Else      *Block
}

type WhileStmt struct {
	Pos
	Condition Expr
	Body      *Block
}

// ForStmt is a C-style loop. Init, Condition and Increment may each be nil;
// a nil Condition loops until a return.
type ForStmt struct {
	Pos
	Init      Stmt
	Condition Expr
	Increment Expr
	Body      *Block
}

// ReturnStmt leaves the enclosing function. Value may be nil.
type ReturnStmt struct {
	Pos
	Value Expr
}

type ExpressionStmt struct {
	Pos
	Expr Expr
}

// Block is a braced statement list with its own scope.
type Block struct {
	Pos
	Statements []Stmt
}

// ─────────────────────────────── expressions ───────────────────────────────

// BinaryExpr applies a binary operator ("+", "==", "<=", ...).
type BinaryExpr struct {
	Pos
	Left     Expr
	Operator string
	Right    Expr
}

// UnaryExpr is "-" or "!" applied to an operand.
type UnaryExpr struct {
	Pos
	Operator string
	Operand  Expr
}

// AssignExpr writes Value to the nearest scope defining Name.
type AssignExpr struct {
	Pos
	Name  string
	Value Expr
}

// LiteralExpr is a constant: number, string, boolean or null.
type LiteralExpr struct {
	Pos
	Value Value
}

type VariableExpr struct {
	Pos
	Name string
}

// CallExpr calls the function bound to Callee.
type CallExpr struct {
	Pos
	Callee string
	Args   []Expr
}

// ───────────────────────────────── plumbing ────────────────────────────────

func (p Pos) Position() Pos { return p }

func (s *FunctionDecl) Accept(v StmtVisitor) (Completion, error)   { return v.VisitFunctionDecl(s) }
func (s *VarDecl) Accept(v StmtVisitor) (Completion, error)        { return v.VisitVarDecl(s) }
func (s *PrintStmt) Accept(v StmtVisitor) (Completion, error)      { return v.VisitPrintStmt(s) }
func (s *IfStmt) Accept(v StmtVisitor) (Completion, error)         { return v.VisitIfStmt(s) }
func (s *WhileStmt) Accept(v StmtVisitor) (Completion, error)      { return v.VisitWhileStmt(s) }
func (s *ForStmt) Accept(v StmtVisitor) (Completion, error)        { return v.VisitForStmt(s) }
func (s *ReturnStmt) Accept(v StmtVisitor) (Completion, error)     { return v.VisitReturnStmt(s) }
func (s *ExpressionStmt) Accept(v StmtVisitor) (Completion, error) { return v.VisitExpressionStmt(s) }
func (s *Block) Accept(v StmtVisitor) (Completion, error)          { return v.VisitBlock(s) }

func (e *BinaryExpr) Accept(v ExprVisitor) (Value, error)   { return v.VisitBinaryExpr(e) }
func (e *UnaryExpr) Accept(v ExprVisitor) (Value, error)    { return v.VisitUnaryExpr(e) }
func (e *AssignExpr) Accept(v ExprVisitor) (Value, error)   { return v.VisitAssignExpr(e) }
func (e *LiteralExpr) Accept(v ExprVisitor) (Value, error)  { return v.VisitLiteralExpr(e) }
func (e *VariableExpr) Accept(v ExprVisitor) (Value, error) { return v.VisitVariableExpr(e) }
func (e *CallExpr) Accept(v ExprVisitor) (Value, error)     { return v.VisitCallExpr(e) }
