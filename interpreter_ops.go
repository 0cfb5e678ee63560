// interpreter_ops.go — PRIVATE: expression handlers other than calls.
//
// Operator rules:
//
//   - "+" concatenates when either side is a string (the other side in its
//     printed form, null as ""), adds two numbers, and is a TypeError
//     otherwise.
//   - "-", "*", "/" and the comparisons take numbers only. "/" is floating
//     point; a zero divisor is a DivisionByZero error.
//   - "==" and "!=" compare null, booleans, numbers and strings by value;
//     values of different kinds are unequal; functions are equal only to
//     themselves.
//   - unary "-" takes a number, unary "!" a boolean.
//
// Public API is in interpreter.go. Statements and calls are in
// interpreter_exec.go.
package runix

import "strings"

func (ev *evaluator) VisitLiteralExpr(e *LiteralExpr) (Value, error) { return e.Value, nil }

func (ev *evaluator) VisitVariableExpr(e *VariableExpr) (Value, error) {
	v, ok := ev.env.Get(e.Name)
	if !ok {
		return Null, rtErrorf(e.Pos, UndefinedVariable, "undefined variable '%s'", e.Name)
	}
	return v, nil
}

func (ev *evaluator) VisitAssignExpr(e *AssignExpr) (Value, error) {
	v, err := ev.eval(e.Value)
	if err != nil {
		return Null, err
	}
	switch ev.env.Set(e.Name, v) {
	case nil:
		return v, nil
	case errConstant:
		return Null, rtErrorf(e.Pos, TypeError, "cannot assign to constant '%s'", e.Name)
	default:
		return Null, rtErrorf(e.Pos, UndefinedVariable, "cannot assign to undefined variable '%s'", e.Name)
	}
}

func (ev *evaluator) VisitUnaryExpr(e *UnaryExpr) (Value, error) {
	v, err := ev.eval(e.Operand)
	if err != nil {
		return Null, err
	}
	switch e.Operator {
	case "-":
		if v.Tag == VTNum {
			return Num(-v.Data.(float64)), nil
		}
	case "!":
		if v.Tag == VTBool {
			return Bool(!v.Data.(bool)), nil
		}
	}
	return Null, rtErrorf(e.Pos, TypeError, "operator '%s' cannot be applied to %s", e.Operator, typeName(v))
}

func (ev *evaluator) VisitBinaryExpr(e *BinaryExpr) (Value, error) {
	l, err := ev.eval(e.Left)
	if err != nil {
		return Null, err
	}
	r, err := ev.eval(e.Right)
	if err != nil {
		return Null, err
	}
	return binaryOp(e.Pos, e.Operator, l, r)
}

func binaryOp(at Pos, op string, l, r Value) (Value, error) {
	switch op {
	case "==":
		return Bool(valuesEqual(l, r)), nil
	case "!=":
		return Bool(!valuesEqual(l, r)), nil
	case "+":
		if l.Tag == VTStr || r.Tag == VTStr {
			var b strings.Builder
			b.WriteString(concatText(l))
			b.WriteString(concatText(r))
			return Str(b.String()), nil
		}
	}

	if l.Tag != VTNum || r.Tag != VTNum {
		if op == "+" {
			return Null, rtErrorf(at, TypeError, "operator '+' expects numbers or a string, got %s and %s", typeName(l), typeName(r))
		}
		return Null, rtErrorf(at, TypeError, "operator '%s' expects numbers, got %s and %s", op, typeName(l), typeName(r))
	}
	a, b := l.Data.(float64), r.Data.(float64)
	switch op {
	case "+":
		return Num(a + b), nil
	case "-":
		return Num(a - b), nil
	case "*":
		return Num(a * b), nil
	case "/":
		if b == 0 {
			return Null, rtErrorf(at, DivisionByZero, "division by zero")
		}
		return Num(a / b), nil
	case "<":
		return Bool(a < b), nil
	case "<=":
		return Bool(a <= b), nil
	case ">":
		return Bool(a > b), nil
	case ">=":
		return Bool(a >= b), nil
	}
	return Null, rtErrorf(at, TypeError, "unknown operator '%s'", op)
}

// valuesEqual is structural equality for scalars and identity for functions.
func valuesEqual(a, b Value) bool {
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case VTNull:
		return true
	case VTBool:
		return a.Data.(bool) == b.Data.(bool)
	case VTNum:
		return a.Data.(float64) == b.Data.(float64)
	case VTStr:
		return a.Data.(string) == b.Data.(string)
	case VTFun:
		return a.Data.(*Fun) == b.Data.(*Fun)
	}
	return false
}

// concatText is the text of an operand of string concatenation.
func concatText(v Value) string {
	if v.Tag == VTNull {
		return ""
	}
	return FormatValue(v)
}

func typeName(v Value) string {
	switch v.Tag {
	case VTNull:
		return "null"
	case VTBool:
		return "boolean"
	case VTNum:
		return "number"
	case VTStr:
		return "string"
	case VTFun:
		return "function"
	}
	return "unknown"
}
