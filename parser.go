// parser.go — recursive-descent parser for Runix.
//
// OVERVIEW
// --------
// The parser consumes the token stream produced by lexer.go and builds the
// typed syntax tree declared in ast.go. Statements are parsed by one method
// per production; binary expressions use precedence climbing, one method per
// level, each folding its operands to the left:
//
//	expression     := assignment
//	assignment     := equality ("=" assignment)?          right-assoc
//	equality       := comparison (("==" | "!=") comparison)*
//	comparison     := addition ((">" | ">=" | "<" | "<=") addition)*
//	addition       := multiplication (("+" | "-") multiplication)*
//	multiplication := unary (("*" | "/") unary)*
//	unary          := ("-" | "!") unary | primary
//	primary        := NUMBER | STRING | "true" | "false" | "null"
//	                | IDENT ("(" args? ")")? | "(" expression ")"
//
// Errors & recovery
// -----------------
// Every method returns an error instead of panicking. declaration() is the
// recovery point: when a declaration fails, the error is recorded and the
// parser skips ahead (panic mode) until
//
//   - just past a ';', or
//   - a token that starts a statement (func, let, const, print, if, while,
//     for, return), or
//   - a closing '}' while inside a block,
//
// then resumes. One run therefore reports every recoverable syntax error and
// still returns a *Program holding each well-formed statement.
//
// An error whose offending token is the end of input is reported with kind
// UnexpectedEndOfInput, which is what IsIncomplete (errors.go) looks for.
//
// Nesting of parenthesised expressions, operator chains, unary operators,
// assignments, else-if chains and blocks is limited to MaxNesting levels. Going deeper fails the
// declaration with NestingTooDeep and recovery proceeds as usual, so hostile
// input cannot exhaust the goroutine stack.
//
// Dependencies
// ------------
//   - lexer.go, token.go
//   - ast.go
//   - errors.go (ParseError, Diagnostics)
package runix

import (
	"fmt"
	"sort"
)

////////////////////////////////////////////////////////////////////////////////
//                                  PUBLIC API
////////////////////////////////////////////////////////////////////////////////

// MaxNesting is the deepest syntactic nesting the parser accepts.
const MaxNesting = 1000

// Parse builds a Program from tokens. The returned program is never nil; when
// err is non-nil it is a Diagnostics holding every *ParseError found, and the
// program contains the statements that parsed cleanly.
func Parse(tokens []Token) (*Program, error) {
	if n := len(tokens); n == 0 || tokens[n-1].Kind != EndOfInput {
		var end Pos
		if n > 0 {
			end = tokens[n-1].Pos
		}
		tokens = append(tokens[:n:n], Token{Kind: EndOfInput, Pos: end})
	}
	p := &parser{toks: tokens}
	prog := p.program()
	return prog, p.errs.Err()
}

// ParseSource lexes and parses src. Lexical and syntax diagnostics are merged
// and ordered by source position.
func ParseSource(src string) (*Program, error) {
	toks, lexErr := Tokenize(src)
	prog, parseErr := Parse(toks)
	if lexErr == nil {
		return prog, parseErr
	}
	all := append(Flatten(lexErr), Flatten(parseErr)...)
	sort.SliceStable(all, func(i, j int) bool {
		return errorPos(all[i]).Offset < errorPos(all[j]).Offset
	})
	return prog, Diagnostics(all)
}

//// END_OF_PUBLIC

////////////////////////////////////////////////////////////////////////////////
///////////////////////////// PRIVATE IMPLEMENTATION ///////////////////////////
////////////////////////////////////////////////////////////////////////////////

type parser struct {
	toks       []Token
	i          int
	blockDepth int
	depth      int
	errs       Diagnostics
}

// ─────────────────────────── token basics & helpers ─────────────────────────

func (p *parser) atEnd() bool { return p.peek().Kind == EndOfInput }

func (p *parser) peek() Token {
	if p.i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i]
}

func (p *parser) prev() Token { return p.toks[p.i-1] }

func (p *parser) advance() Token {
	if !p.atEnd() {
		p.i++
	}
	return p.prev()
}

func (p *parser) check(lexeme string) bool { return p.peek().Is(lexeme) }

// match consumes the next token if its lexeme is one of lexemes.
func (p *parser) match(lexemes ...string) bool {
	for _, lx := range lexemes {
		if p.check(lx) {
			p.i++
			return true
		}
	}
	return false
}

// need consumes the given operator or keyword or fails with msg.
func (p *parser) need(lexeme, msg string) (Token, error) {
	if p.match(lexeme) {
		return p.prev(), nil
	}
	return Token{}, p.errorAt(p.peek(), ExpectedToken, msg)
}

// ident consumes a non-reserved identifier.
func (p *parser) ident(msg string) (Token, error) {
	t := p.peek()
	if t.Kind != Identifier || t.isKeyword() {
		return Token{}, p.errorAt(t, ExpectedToken, msg)
	}
	p.i++
	return t, nil
}

func (p *parser) errorAt(t Token, kind ErrorKind, msg string) *ParseError {
	if t.Kind == EndOfInput {
		return &ParseError{Kind: UnexpectedEndOfInput, Msg: msg + ", got end of input", Pos: t.Pos}
	}
	return &ParseError{Kind: kind, Msg: fmt.Sprintf("%s, got '%s'", msg, t.Lexeme), Pos: t.Pos}
}

// enter descends one nesting level; every successful enter is paired with
// a deferred leave.
func (p *parser) enter() error {
	if p.depth >= MaxNesting {
		return &ParseError{
			Kind: NestingTooDeep,
			Msg:  fmt.Sprintf("nesting deeper than %d levels", MaxNesting),
			Pos:  p.peek().Pos,
		}
	}
	p.depth++
	return nil
}

func (p *parser) leave() { p.depth-- }

// synchronize discards tokens after a failed declaration that began at
// token index start. It always makes progress unless it is already sitting
// on a '}' that closes the current block.
func (p *parser) synchronize(start int) {
	if p.i == start && !p.atEnd() {
		if t := p.advance(); t.Is(";") {
			return
		}
	}
	for !p.atEnd() {
		t := p.peek()
		if t.startsStatement() || (p.blockDepth > 0 && t.Is("}")) {
			return
		}
		p.i++
		if t.Is(";") {
			return
		}
	}
}

// ───────────────────────────────── statements ───────────────────────────────

func (p *parser) program() *Program {
	prog := &Program{}
	for !p.atEnd() {
		if s := p.declaration(); s != nil {
			prog.Statements = append(prog.Statements, s)
		}
	}
	return prog
}

// declaration parses one declaration or statement. On failure it records the
// error, resynchronizes, and returns nil.
func (p *parser) declaration() Stmt {
	start := p.i
	var (
		s   Stmt
		err error
	)
	switch {
	case p.check("func"):
		s, err = p.funcDecl()
	case p.check("let"), p.check("const"):
		s, err = p.varDecl()
	default:
		s, err = p.statement()
	}
	if err != nil {
		p.errs = append(p.errs, err)
		p.synchronize(start)
		return nil
	}
	return s
}

func (p *parser) funcDecl() (Stmt, error) {
	kw := p.advance()
	name, err := p.ident("expected function name after 'func'")
	if err != nil {
		return nil, err
	}
	if _, err := p.need("(", "expected '(' after function name"); err != nil {
		return nil, err
	}
	var params []string
	if !p.check(")") {
		for {
			t, err := p.ident("expected parameter name")
			if err != nil {
				return nil, err
			}
			params = append(params, t.Lexeme)
			if !p.match(",") {
				break
			}
		}
	}
	if _, err := p.need(")", "expected ')' after parameters"); err != nil {
		return nil, err
	}
	body, err := p.block("expected '{' before function body")
	if err != nil {
		return nil, err
	}
	return &FunctionDecl{Pos: kw.Pos, Name: name.Lexeme, Params: params, Body: body}, nil
}

func (p *parser) varDecl() (Stmt, error) {
	kw := p.advance()
	name, err := p.ident(fmt.Sprintf("expected variable name after '%s'", kw.Lexeme))
	if err != nil {
		return nil, err
	}
	var init Expr
	if p.match("=") {
		if init, err = p.expression(); err != nil {
			return nil, err
		}
	}
	if _, err := p.need(";", "expected ';' after variable declaration"); err != nil {
		return nil, err
	}
	return &VarDecl{Pos: kw.Pos, Name: name.Lexeme, Const: kw.Lexeme == "const", Initializer: init}, nil
}

func (p *parser) statement() (Stmt, error) {
	switch {
	case p.check("print"):
		return p.printStmt()
	case p.check("if"):
		return p.ifStmt()
	case p.check("while"):
		return p.whileStmt()
	case p.check("for"):
		return p.forStmt()
	case p.check("return"):
		return p.returnStmt()
	case p.check("{"):
		b, err := p.block("expected '{'")
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return p.exprStmt()
}

func (p *parser) printStmt() (Stmt, error) {
	kw := p.advance()
	e, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.need(";", "expected ';' after value"); err != nil {
		return nil, err
	}
	return &PrintStmt{Pos: kw.Pos, Expr: e}, nil
}

func (p *parser) ifStmt() (Stmt, error) {
	kw := p.advance()
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	then, err := p.block("expected '{' after if condition")
	if err != nil {
		return nil, err
	}
	s := &IfStmt{Pos: kw.Pos, Condition: cond, Then: then}
	if !p.match("else") {
		return s, nil
	}
	if p.check("if") {
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		at := p.peek().Pos
		nested, err := p.ifStmt()
		if err != nil {
			return nil, err
		}
		s.Else = &Block{Pos: at, Statements: []Stmt{nested}}
		return s, nil
	}
	if s.Else, err = p.block("expected '{' or 'if' after 'else'"); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *parser) whileStmt() (Stmt, error) {
	kw := p.advance()
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	body, err := p.block("expected '{' after while condition")
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Pos: kw.Pos, Condition: cond, Body: body}, nil
}

// forStmt parses: "for" (varDecl | exprStmt | ";") expression? ";" expression? block
func (p *parser) forStmt() (Stmt, error) {
	kw := p.advance()
	s := &ForStmt{Pos: kw.Pos}
	var err error
	switch {
	case p.match(";"):
	case p.check("let"), p.check("const"):
		if s.Init, err = p.varDecl(); err != nil {
			return nil, err
		}
	default:
		if s.Init, err = p.exprStmt(); err != nil {
			return nil, err
		}
	}
	if !p.check(";") {
		if s.Condition, err = p.expression(); err != nil {
			return nil, err
		}
	}
	if _, err := p.need(";", "expected ';' after loop condition"); err != nil {
		return nil, err
	}
	if !p.check("{") {
		if s.Increment, err = p.expression(); err != nil {
			return nil, err
		}
	}
	if s.Body, err = p.block("expected '{' before loop body"); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *parser) returnStmt() (Stmt, error) {
	kw := p.advance()
	s := &ReturnStmt{Pos: kw.Pos}
	if !p.check(";") {
		v, err := p.expression()
		if err != nil {
			return nil, err
		}
		s.Value = v
	}
	if _, err := p.need(";", "expected ';' after return value"); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *parser) exprStmt() (Stmt, error) {
	at := p.peek().Pos
	e, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.need(";", "expected ';' after expression"); err != nil {
		return nil, err
	}
	return &ExpressionStmt{Pos: at, Expr: e}, nil
}

// block parses "{" declaration* "}". Errors inside the braces are recovered
// by declaration(); only a missing brace fails the block itself.
func (p *parser) block(msg string) (*Block, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	open, err := p.need("{", msg)
	if err != nil {
		return nil, err
	}
	p.blockDepth++
	defer func() { p.blockDepth-- }()

	b := &Block{Pos: open.Pos}
	for !p.check("}") && !p.atEnd() {
		if s := p.declaration(); s != nil {
			b.Statements = append(b.Statements, s)
		}
	}
	if _, err := p.need("}", "expected '}' after block"); err != nil {
		return nil, err
	}
	return b, nil
}

// ──────────────────────────────── expressions ───────────────────────────────

func (p *parser) expression() (Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	return p.assignment()
}

func (p *parser) assignment() (Expr, error) {
	target, err := p.equality()
	if err != nil {
		return nil, err
	}
	if !p.match("=") {
		return target, nil
	}
	eq := p.prev()
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	value, err := p.assignment()
	if err != nil {
		return nil, err
	}
	v, ok := target.(*VariableExpr)
	if !ok {
		return nil, &ParseError{Kind: InvalidAssignmentTarget, Msg: "invalid assignment target", Pos: eq.Pos}
	}
	return &AssignExpr{Pos: v.Pos, Name: v.Name, Value: value}, nil
}

// binary parses one left-associative precedence level. Every operator folded
// deepens the tree by one, so each counts as a nesting level.
func (p *parser) binary(operand func() (Expr, error), ops ...string) (Expr, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	folds := 0
	defer func() { p.depth -= folds }()
	for p.match(ops...) {
		if err := p.enter(); err != nil {
			return nil, err
		}
		folds++
		op := p.prev()
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Pos: op.Pos, Left: left, Operator: op.Lexeme, Right: right}
	}
	return left, nil
}

func (p *parser) equality() (Expr, error) {
	return p.binary(p.comparison, "==", "!=")
}

func (p *parser) comparison() (Expr, error) {
	return p.binary(p.addition, ">", ">=", "<", "<=")
}

func (p *parser) addition() (Expr, error) {
	return p.binary(p.multiplication, "+", "-")
}

func (p *parser) multiplication() (Expr, error) {
	return p.binary(p.unary, "*", "/")
}

func (p *parser) unary() (Expr, error) {
	if p.match("-", "!") {
		op := p.prev()
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Pos: op.Pos, Operator: op.Lexeme, Operand: operand}, nil
	}
	return p.primary()
}

func (p *parser) primary() (Expr, error) {
	t := p.peek()
	switch t.Kind {
	case Number:
		p.i++
		return &LiteralExpr{Pos: t.Pos, Value: Num(t.Literal.(float64))}, nil
	case String:
		p.i++
		return &LiteralExpr{Pos: t.Pos, Value: Str(t.Literal.(string))}, nil
	case Identifier:
		switch t.Lexeme {
		case "true", "false":
			p.i++
			return &LiteralExpr{Pos: t.Pos, Value: Bool(t.Lexeme == "true")}, nil
		case "null":
			p.i++
			return &LiteralExpr{Pos: t.Pos, Value: Null}, nil
		}
		if t.isKeyword() {
			break
		}
		p.i++
		if p.match("(") {
			return p.finishCall(t)
		}
		return &VariableExpr{Pos: t.Pos, Name: t.Lexeme}, nil
	case Operator:
		if t.Lexeme == "(" {
			p.i++
			e, err := p.expression()
			if err != nil {
				return nil, err
			}
			if _, err := p.need(")", "expected ')' after expression"); err != nil {
				return nil, err
			}
			return e, nil
		}
	}
	return nil, p.errorAt(t, ExpectedToken, "expected expression")
}

// finishCall parses the argument list; the callee and '(' are consumed.
func (p *parser) finishCall(callee Token) (Expr, error) {
	var args []Expr
	if !p.check(")") {
		for {
			a, err := p.expression()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if !p.match(",") {
				break
			}
		}
	}
	if _, err := p.need(")", "expected ')' after arguments"); err != nil {
		return nil, err
	}
	return &CallExpr{Pos: callee.Pos, Callee: callee.Lexeme, Args: args}, nil
}

// errorPos returns the source position recorded in a diagnostic.
func errorPos(err error) Pos {
	switch e := err.(type) {
	case *LexError:
		return e.Pos
	case *ParseError:
		return e.Pos
	case *RuntimeError:
		return e.Pos
	}
	return Pos{}
}
