package runix

import (
	"strconv"
	"strings"
)

/* ---------- values ---------- */

// FormatValue returns the text `print` writes for v: numbers without
// padding or exponent, strings unquoted, true/false, null.
func FormatValue(v Value) string {
	switch v.Tag {
	case VTNull:
		return "null"
	case VTBool:
		if v.Data.(bool) {
			return "true"
		}
		return "false"
	case VTNum:
		f := v.Data.(float64)
		if f == 0 {
			return "0" // no "-0"
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	case VTStr:
		return v.Data.(string)
	case VTFun:
		f := v.Data.(*Fun)
		if f.IsNative() {
			return "<native " + f.Name + ">"
		}
		return "<func " + f.Name + ">"
	}
	return "<unknown>"
}

func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func formatLiteral(v Value) string {
	if v.Tag == VTStr {
		return quoteString(v.Data.(string))
	}
	return FormatValue(v)
}

/* ---------- small writer with indentation ---------- */

type out struct {
	b     *strings.Builder
	depth int
}

func (o *out) write(s string) { o.b.WriteString(s) }
func (o *out) nl()            { o.b.WriteByte('\n') }
func (o *out) pad() {
	for i := 0; i < o.depth; i++ {
		o.b.WriteString("    ")
	}
}
func (o *out) withIndent(fn func()) { o.depth++; fn(); o.depth-- }

/* ---------- source -> canonical source ---------- */

// Pretty parses src and returns it in canonical layout: one statement per
// line, four-space indentation, minimal parentheses. Comments are dropped.
// Pretty refuses sources with syntax errors.
func Pretty(src string) (string, error) {
	prog, err := ParseSource(src)
	if err != nil {
		return "", WrapErrorWithSource(err, src)
	}
	return FormatProgram(prog), nil
}

// FormatProgram prints a parsed program as source text. Parsing the result
// yields an equivalent program.
func FormatProgram(prog *Program) string {
	var b strings.Builder
	p := pp{out: out{b: &b}}
	for _, s := range prog.Statements {
		p.pad()
		p.printStmt(s)
		p.nl()
	}
	return b.String()
}

type pp struct {
	out
}

func (p *pp) printStmt(s Stmt) {
	switch s := s.(type) {
	case *FunctionDecl:
		p.write("func " + s.Name + "(" + strings.Join(s.Params, ", ") + ") ")
		p.printBlock(s.Body)
	case *VarDecl:
		p.printVarDecl(s)
	case *PrintStmt:
		p.write("print ")
		p.printExpr(s.Expr, 0)
		p.write(";")
	case *IfStmt:
		p.printIf(s)
	case *WhileStmt:
		p.write("while ")
		p.printExpr(s.Condition, 0)
		p.write(" ")
		p.printBlock(s.Body)
	case *ForStmt:
		p.write("for ")
		switch init := s.Init.(type) {
		case nil:
			p.write(";")
		case *VarDecl:
			p.printVarDecl(init)
		default:
			p.printStmt(init)
		}
		if s.Condition != nil {
			p.write(" ")
			p.printExpr(s.Condition, 0)
		}
		p.write(";")
		if s.Increment != nil {
			p.write(" ")
			p.printExpr(s.Increment, 0)
		}
		p.write(" ")
		p.printBlock(s.Body)
	case *ReturnStmt:
		p.write("return")
		if s.Value != nil {
			p.write(" ")
			p.printExpr(s.Value, 0)
		}
		p.write(";")
	case *ExpressionStmt:
		p.printExpr(s.Expr, 0)
		p.write(";")
	case *Block:
		p.printBlock(s)
	}
}

func (p *pp) printVarDecl(s *VarDecl) {
	if s.Const {
		p.write("const ")
	} else {
		p.write("let ")
	}
	p.write(s.Name)
	if s.Initializer != nil {
		p.write(" = ")
		p.printExpr(s.Initializer, 0)
	}
	p.write(";")
}

func (p *pp) printIf(s *IfStmt) {
	p.write("if ")
	p.printExpr(s.Condition, 0)
	p.write(" ")
	p.printBlock(s.Then)
	if s.Else == nil {
		return
	}
	p.write(" else ")
	if elif, ok := elseIf(s.Else); ok {
		p.printIf(elif)
		return
	}
	p.printBlock(s.Else)
}

// elseIf recognises the block the parser builds for "else if".
func elseIf(b *Block) (*IfStmt, bool) {
	if len(b.Statements) != 1 {
		return nil, false
	}
	s, ok := b.Statements[0].(*IfStmt)
	return s, ok && s.Pos == b.Pos
}

func (p *pp) printBlock(b *Block) {
	if len(b.Statements) == 0 {
		p.write("{}")
		return
	}
	p.write("{")
	p.nl()
	p.withIndent(func() {
		for _, s := range b.Statements {
			p.pad()
			p.printStmt(s)
			p.nl()
		}
	})
	p.pad()
	p.write("}")
}

// printExpr writes e, parenthesised when its precedence is below ctx.
func (p *pp) printExpr(e Expr, ctx int) {
	if prec(e) < ctx {
		p.write("(")
		defer p.write(")")
	}
	switch e := e.(type) {
	case *LiteralExpr:
		p.write(formatLiteral(e.Value))
	case *VariableExpr:
		p.write(e.Name)
	case *AssignExpr:
		p.write(e.Name + " = ")
		p.printExpr(e.Value, precAssign)
	case *UnaryExpr:
		p.write(e.Operator)
		p.printExpr(e.Operand, precUnary)
	case *BinaryExpr:
		my := binopPrec(e.Operator)
		p.printExpr(e.Left, my)
		p.write(" " + e.Operator + " ")
		p.printExpr(e.Right, my+1) // left-associative
	case *CallExpr:
		p.write(e.Callee + "(")
		for i, a := range e.Args {
			if i > 0 {
				p.write(", ")
			}
			p.printExpr(a, 0)
		}
		p.write(")")
	}
}

const (
	precAssign  = 10
	precUnary   = 80
	precPrimary = 100
)

func prec(e Expr) int {
	switch e := e.(type) {
	case *AssignExpr:
		return precAssign
	case *BinaryExpr:
		return binopPrec(e.Operator)
	case *UnaryExpr:
		return precUnary
	default:
		return precPrimary
	}
}

func binopPrec(op string) int {
	switch op {
	case "*", "/":
		return 70
	case "+", "-":
		return 60
	case "<", "<=", ">", ">=":
		return 50
	case "==", "!=":
		return 40
	default:
		return 60
	}
}

/* ---------- AST -> s-expression dump ---------- */

// DumpAST renders prog as S-expressions, one top-level statement per line:
//
//	(let x (+ 1 (* 2 3)))
//	(func f (n) (block (return (- n 1))))
//
// Absent optional parts of a for loop are written as _.
func DumpAST(prog *Program) string {
	var b strings.Builder
	for _, s := range prog.Statements {
		dumpStmt(&b, s)
		b.WriteByte('\n')
	}
	return b.String()
}

// DumpExpr renders a single expression the way DumpAST does.
func DumpExpr(e Expr) string {
	var b strings.Builder
	dumpExpr(&b, e)
	return b.String()
}

func dumpStmt(b *strings.Builder, s Stmt) {
	switch s := s.(type) {
	case nil:
		b.WriteString("_")
	case *FunctionDecl:
		b.WriteString("(func " + s.Name + " (" + strings.Join(s.Params, " ") + ") ")
		dumpStmt(b, s.Body)
		b.WriteString(")")
	case *VarDecl:
		kw := "let"
		if s.Const {
			kw = "const"
		}
		b.WriteString("(" + kw + " " + s.Name)
		if s.Initializer != nil {
			b.WriteString(" ")
			dumpExpr(b, s.Initializer)
		}
		b.WriteString(")")
	case *PrintStmt:
		b.WriteString("(print ")
		dumpExpr(b, s.Expr)
		b.WriteString(")")
	case *IfStmt:
		b.WriteString("(if ")
		dumpExpr(b, s.Condition)
		b.WriteString(" ")
		dumpStmt(b, s.Then)
		if s.Else != nil {
			b.WriteString(" ")
			dumpStmt(b, s.Else)
		}
		b.WriteString(")")
	case *WhileStmt:
		b.WriteString("(while ")
		dumpExpr(b, s.Condition)
		b.WriteString(" ")
		dumpStmt(b, s.Body)
		b.WriteString(")")
	case *ForStmt:
		b.WriteString("(for ")
		dumpStmt(b, s.Init)
		b.WriteString(" ")
		dumpExpr(b, s.Condition)
		b.WriteString(" ")
		dumpExpr(b, s.Increment)
		b.WriteString(" ")
		dumpStmt(b, s.Body)
		b.WriteString(")")
	case *ReturnStmt:
		b.WriteString("(return")
		if s.Value != nil {
			b.WriteString(" ")
			dumpExpr(b, s.Value)
		}
		b.WriteString(")")
	case *ExpressionStmt:
		b.WriteString("(expr ")
		dumpExpr(b, s.Expr)
		b.WriteString(")")
	case *Block:
		b.WriteString("(block")
		for _, st := range s.Statements {
			b.WriteString(" ")
			dumpStmt(b, st)
		}
		b.WriteString(")")
	}
}

func dumpExpr(b *strings.Builder, e Expr) {
	switch e := e.(type) {
	case nil:
		b.WriteString("_")
	case *LiteralExpr:
		b.WriteString(formatLiteral(e.Value))
	case *VariableExpr:
		b.WriteString(e.Name)
	case *AssignExpr:
		b.WriteString("(= " + e.Name + " ")
		dumpExpr(b, e.Value)
		b.WriteString(")")
	case *UnaryExpr:
		b.WriteString("(" + e.Operator + " ")
		dumpExpr(b, e.Operand)
		b.WriteString(")")
	case *BinaryExpr:
		b.WriteString("(" + e.Operator + " ")
		dumpExpr(b, e.Left)
		b.WriteString(" ")
		dumpExpr(b, e.Right)
		b.WriteString(")")
	case *CallExpr:
		b.WriteString("(call " + e.Callee)
		for _, a := range e.Args {
			b.WriteString(" ")
			dumpExpr(b, a)
		}
		b.WriteString(")")
	}
}
