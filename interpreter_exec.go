// interpreter_exec.go — statement execution, calls and the evaluation budget.
//
// The evaluator implements StmtVisitor and ExprVisitor (ast.go), so every node
// kind has exactly one handler here or in interpreter_ops.go and the compiler
// rejects a missing one.
//
// Control flow is explicit: statements return a Completion whose Signal is
// Normal or Return, and blocks, ifs and loops hand a Return straight up to the
// enclosing call (or to the top level, which ends the program). Runtime errors
// are ordinary error returns; the first one unwinds the whole evaluation.
//
// Budget: every executed statement, loop iteration and call costs one step.
// Config.MaxSteps, Config.Timeout and Config.MaxCallDepth are checked as steps
// are spent and fail the run with ResourceExhausted. Call depth never exceeds
// CallDepthCeiling, whatever the configuration says.
package runix

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

////////////////////////////////////////////////////////////////////////////////
//                      CORE EXECUTION PLUMBING (PRIVATE)
////////////////////////////////////////////////////////////////////////////////

type evaluator struct {
	ip  *Interpreter
	env *Env
	log log.Logger

	steps    int64
	depth    int
	nest     int
	deadline time.Time
}

// clockCheckMask sets how often (in steps) the wall clock is consulted.
const clockCheckMask = 0xff

// maxEvalNesting bounds how deeply eval and execList may recurse in total,
// across calls, so that trees built by hosts stay within the Go stack.
const maxEvalNesting = 100000

func (ip *Interpreter) evalSource(src, name string, env *Env) (Value, error) {
	prog, perr := ip.parse(src)
	if perr != nil && ip.cfg.HaltOnSyntaxError {
		return Null, WrapErrorWithName(perr, name, src)
	}
	v, rerr := ip.runTop(prog, env)
	switch {
	case perr == nil && rerr == nil:
		return v, nil
	case perr == nil:
		return v, WrapErrorWithName(rerr, name, src)
	case rerr == nil:
		return v, WrapErrorWithName(perr, name, src)
	}
	all := append(Flatten(perr), rerr)
	return v, WrapErrorWithName(Diagnostics(all), name, src)
}

func (ip *Interpreter) parse(src string) (*Program, error) {
	if ip.cache != nil {
		return ip.cache.Parse(src)
	}
	return ParseSource(src)
}

func (ip *Interpreter) runTop(prog *Program, env *Env) (Value, error) {
	return ip.guard(env, func(ev *evaluator) (Value, error) {
		c, err := ev.execList(prog.Statements)
		if err != nil {
			return Null, err
		}
		return c.Value, nil
	})
}

// guard runs fn with a fresh evaluator while holding the busy flag, and turns
// panics into InternalError runtime errors.
func (ip *Interpreter) guard(env *Env, fn func(ev *evaluator) (Value, error)) (out Value, err error) {
	if !ip.busy.CompareAndSwap(false, true) {
		return Null, ErrBusy
	}
	defer ip.busy.Store(false)

	logger, _ := newRunLogger(ip.log)
	ev := &evaluator{ip: ip, env: env, log: logger}
	start := time.Now()
	if ip.cfg.Timeout > 0 {
		ev.deadline = start.Add(time.Duration(ip.cfg.Timeout))
	}
	logger.Debug("Evaluation started")

	defer func() {
		if r := recover(); r != nil {
			out, err = Null, &RuntimeError{Kind: InternalError, Msg: fmt.Sprintf("internal error: %v", r)}
		}
		if err != nil {
			logger.Debug("Evaluation failed", "steps", ev.steps, "elapsed", time.Since(start), "err", err)
			return
		}
		logger.Debug("Evaluation finished", "steps", ev.steps, "elapsed", time.Since(start))
	}()
	return fn(ev)
}

func rtErrorf(at Pos, kind ErrorKind, format string, args ...interface{}) error {
	return &RuntimeError{Kind: kind, Msg: fmt.Sprintf(format, args...), Pos: at}
}

// tick spends one step of the budget.
func (ev *evaluator) tick(at Pos) error {
	ev.steps++
	cfg := &ev.ip.cfg
	if cfg.MaxSteps > 0 && ev.steps > cfg.MaxSteps {
		return rtErrorf(at, ResourceExhausted, "step limit of %d exceeded", cfg.MaxSteps)
	}
	if !ev.deadline.IsZero() && ev.steps&clockCheckMask == 0 && time.Now().After(ev.deadline) {
		return rtErrorf(at, ResourceExhausted, "time limit of %s exceeded", cfg.Timeout)
	}
	return nil
}

// execList runs statements in order in the current scope. The completion is
// that of the last statement, or the first Return.
func (ev *evaluator) execList(stmts []Stmt) (Completion, error) {
	c := Completion{Value: Null}
	if len(stmts) > 0 {
		if err := ev.descend(stmts[0]); err != nil {
			return c, err
		}
		defer ev.ascend()
	}
	for _, s := range stmts {
		if err := ev.tick(s.Position()); err != nil {
			return Completion{Value: Null}, err
		}
		r, err := s.Accept(ev)
		if err != nil {
			return Completion{Value: Null}, err
		}
		c = r
		if c.Signal == Return {
			break
		}
	}
	return c, nil
}

// execIn runs statements in env, restoring the current scope afterwards.
func (ev *evaluator) execIn(stmts []Stmt, env *Env) (Completion, error) {
	prev := ev.env
	ev.env = env
	defer func() { ev.env = prev }()
	return ev.execList(stmts)
}

func (ev *evaluator) eval(e Expr) (Value, error) {
	if err := ev.descend(e); err != nil {
		return Null, err
	}
	defer ev.ascend()
	return e.Accept(ev)
}

func (ev *evaluator) descend(n Node) error {
	if ev.nest >= maxEvalNesting {
		return rtErrorf(n.Position(), ResourceExhausted, "evaluation nested deeper than %d levels", maxEvalNesting)
	}
	ev.nest++
	return nil
}

func (ev *evaluator) ascend() { ev.nest-- }

// condition evaluates a loop or if condition, which must be a boolean.
func (ev *evaluator) condition(e Expr, what string) (bool, error) {
	v, err := ev.eval(e)
	if err != nil {
		return false, err
	}
	if v.Tag != VTBool {
		return false, rtErrorf(e.Position(), TypeError, "%s condition must be a boolean, got %s", what, typeName(v))
	}
	return v.Data.(bool), nil
}

////////////////////////////////////////////////////////////////////////////////
//                                 STATEMENTS
////////////////////////////////////////////////////////////////////////////////

func (ev *evaluator) VisitFunctionDecl(s *FunctionDecl) (Completion, error) {
	fn := FunVal(&Fun{Name: s.Name, Params: s.Params, Body: s.Body, Env: ev.env})
	ev.env.Define(s.Name, fn)
	return Completion{Value: fn}, nil
}

func (ev *evaluator) VisitVarDecl(s *VarDecl) (Completion, error) {
	v := Null
	if s.Initializer != nil {
		var err error
		if v, err = ev.eval(s.Initializer); err != nil {
			return Completion{}, err
		}
	}
	if s.Const {
		ev.env.DefineConst(s.Name, v)
	} else {
		ev.env.Define(s.Name, v)
	}
	return Completion{Value: v}, nil
}

func (ev *evaluator) VisitPrintStmt(s *PrintStmt) (Completion, error) {
	v, err := ev.eval(s.Expr)
	if err != nil {
		return Completion{}, err
	}
	if _, err := fmt.Fprintln(ev.ip.out, FormatValue(v)); err != nil {
		return Completion{}, fmt.Errorf("print: %w", err)
	}
	return Completion{Value: v}, nil
}

func (ev *evaluator) VisitIfStmt(s *IfStmt) (Completion, error) {
	ok, err := ev.condition(s.Condition, "if")
	if err != nil {
		return Completion{}, err
	}
	switch {
	case ok:
		return ev.VisitBlock(s.Then)
	case s.Else != nil:
		return ev.VisitBlock(s.Else)
	}
	return Completion{Value: Null}, nil
}

func (ev *evaluator) VisitWhileStmt(s *WhileStmt) (Completion, error) {
	for {
		if err := ev.tick(s.Pos); err != nil {
			return Completion{}, err
		}
		ok, err := ev.condition(s.Condition, "while")
		if err != nil {
			return Completion{}, err
		}
		if !ok {
			return Completion{Value: Null}, nil
		}
		c, err := ev.VisitBlock(s.Body)
		if err != nil || c.Signal == Return {
			return c, err
		}
	}
}

// VisitForStmt runs Init once in a scope of its own, so a `let` in the
// header is visible to the loop but not after it.
func (ev *evaluator) VisitForStmt(s *ForStmt) (Completion, error) {
	prev := ev.env
	ev.env = NewEnv(prev)
	defer func() { ev.env = prev }()

	if s.Init != nil {
		if _, err := s.Init.Accept(ev); err != nil {
			return Completion{}, err
		}
	}
	for {
		if err := ev.tick(s.Pos); err != nil {
			return Completion{}, err
		}
		if s.Condition != nil {
			ok, err := ev.condition(s.Condition, "for")
			if err != nil {
				return Completion{}, err
			}
			if !ok {
				return Completion{Value: Null}, nil
			}
		}
		c, err := ev.VisitBlock(s.Body)
		if err != nil || c.Signal == Return {
			return c, err
		}
		if s.Increment != nil {
			if _, err := ev.eval(s.Increment); err != nil {
				return Completion{}, err
			}
		}
	}
}

func (ev *evaluator) VisitReturnStmt(s *ReturnStmt) (Completion, error) {
	if s.Value == nil {
		return Completion{Signal: Return, Value: Null}, nil
	}
	v, err := ev.eval(s.Value)
	if err != nil {
		return Completion{}, err
	}
	return Completion{Signal: Return, Value: v}, nil
}

func (ev *evaluator) VisitExpressionStmt(s *ExpressionStmt) (Completion, error) {
	v, err := ev.eval(s.Expr)
	if err != nil {
		return Completion{}, err
	}
	return Completion{Value: v}, nil
}

func (ev *evaluator) VisitBlock(s *Block) (Completion, error) {
	return ev.execIn(s.Statements, NewEnv(ev.env))
}

////////////////////////////////////////////////////////////////////////////////
//                                   CALLS
////////////////////////////////////////////////////////////////////////////////

func (ev *evaluator) VisitCallExpr(e *CallExpr) (Value, error) {
	callee, ok := ev.env.Get(e.Callee)
	if !ok {
		return Null, rtErrorf(e.Pos, UndefinedFunction, "undefined function '%s'", e.Callee)
	}
	if callee.Tag != VTFun {
		return Null, rtErrorf(e.Pos, NotCallable, "'%s' is a %s, not a function", e.Callee, typeName(callee))
	}
	args := make([]Value, len(e.Args))
	for i, a := range e.Args {
		v, err := ev.eval(a)
		if err != nil {
			return Null, err
		}
		args[i] = v
	}
	if err := ev.tick(e.Pos); err != nil {
		return Null, err
	}
	return ev.call(e.Pos, callee.Data.(*Fun), args)
}

// call binds args in a fresh scope whose parent is the function's defining
// scope and runs the body there.
func (ev *evaluator) call(at Pos, f *Fun, args []Value) (Value, error) {
	if want := f.Arity(); want >= 0 && len(args) != want {
		return Null, rtErrorf(at, ArityMismatch, "function '%s' expects %d argument(s), got %d", f.Name, want, len(args))
	}
	if f.native != nil {
		v, err := f.native(ev.ip, args)
		if err != nil {
			return Null, nativeError(at, f.Name, err)
		}
		return v, nil
	}

	limit := ev.ip.cfg.MaxCallDepth
	if limit <= 0 || limit > CallDepthCeiling {
		limit = CallDepthCeiling
	}
	if ev.depth >= limit {
		return Null, rtErrorf(at, ResourceExhausted, "call depth limit of %d exceeded in '%s'", limit, f.Name)
	}
	ev.depth++
	defer func() { ev.depth-- }()
	ev.log.Trace("Calling function", "name", f.Name, "args", len(args), "depth", ev.depth)

	scope := NewEnv(f.Env)
	for i, p := range f.Params {
		scope.Define(p, args[i])
	}
	c, err := ev.execIn(f.Body.Statements, scope)
	if err != nil {
		return Null, err
	}
	if c.Signal == Return {
		return c.Value, nil
	}
	return Null, nil
}

// nativeError gives a native's error the call site when it has none.
func nativeError(at Pos, name string, err error) error {
	var re *RuntimeError
	if errors.As(err, &re) {
		if re.Line == 0 {
			cp := *re
			cp.Pos = at
			return &cp
		}
		return re
	}
	if errors.Is(err, ErrBusy) {
		return err
	}
	return fmt.Errorf("%s: %w", name, err)
}
