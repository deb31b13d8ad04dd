// Package expr evaluates the restricted arithmetic expression language
// used by per-service scaling Events: numeric literals, identifiers
// resolved from an environment of named metric values, the operators
// + - * / **, parentheses, and the min([...])/max([...]) reducers.
//
// The grammar is intentionally not Turing-complete: there is no general
// eval surface, no loops, no function definitions. It is built with
// participle so the supported syntax is exactly what the struct grammar
// below says it is.
package expr

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/structurely/ecs-autoscaler/ecserrors"
)

// Environment maps a metric alias to its fetched value.
type Environment map[string]float64

// AbsentAliasError is returned (wrapped) by Evaluate when the expression
// references an alias that env does not carry a value for. The planner
// treats this distinctly from other expression errors: it skips the whole
// service for this run rather than surfacing an ExpressionError.
type AbsentAliasError struct {
	Alias string
}

func (e *AbsentAliasError) Error() string {
	return fmt.Sprintf("alias %q is not present in the metric environment", e.Alias)
}

var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
	{Name: "Number", Pattern: `\d+(\.\d+)?`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Pow", Pattern: `\*\*`},
	{Name: "Punct", Pattern: `[-+*/(),\[\]]`},
})

// Expr is the top grammar rule: a left-associative chain of + and - terms.
type Expr struct {
	Left *Term     `@@`
	Rest []*OpTerm `@@*`
}

type OpTerm struct {
	Op   string `@("+" | "-")`
	Term *Term  `@@`
}

// Term is a left-associative chain of * and / factors.
type Term struct {
	Left *Power      `@@`
	Rest []*OpFactor `@@*`
}

type OpFactor struct {
	Op    string `@("*" | "/")`
	Power *Power `@@`
}

// Power is right-associative: 2 ** 3 ** 2 == 2 ** (3 ** 2).
type Power struct {
	Base  *Unary `@@`
	Right *Power `("**" @@)?`
}

type Unary struct {
	Neg     bool     `@"-"?`
	Primary *Primary `@@`
}

type Primary struct {
	Call   *Call    `  @@`
	Number *float64 `| @Number`
	Ident  *string  `| @Ident`
	Sub    *Expr    `| "(" @@ ")"`
}

// Call is one of the two reducers, min([a, b, ...]) or max([a, b, ...]).
type Call struct {
	Func string  `@("min" | "max") "(" "["`
	Args []*Expr `@@ ("," @@)* "]" ")"`
}

var (
	parserOnce sync.Once
	parser     *participle.Parser[Expr]
	parserErr  error
)

func getParser() (*participle.Parser[Expr], error) {
	parserOnce.Do(func() {
		parser, parserErr = participle.Build[Expr](
			participle.Lexer(exprLexer),
			participle.Elide("Whitespace"),
			participle.UseLookahead(2),
		)
	})
	return parser, parserErr
}

// Evaluate parses expression and evaluates it against env. Aliases
// referenced in the expression but absent from env, division by zero, and
// malformed expressions all raise an ecserrors.Error of KindExpressionError.
func Evaluate(expression string, env Environment) (float64, error) {
	p, err := getParser()
	if err != nil {
		return 0, ecserrors.New(ecserrors.KindExpressionError, err, map[string]any{"expression": expression})
	}

	ast, err := p.ParseString("", strings.TrimSpace(expression))
	if err != nil {
		return 0, ecserrors.New(ecserrors.KindExpressionError, err, map[string]any{"expression": expression})
	}

	v, err := evalExpr(ast, env)
	if err != nil {
		return 0, ecserrors.New(ecserrors.KindExpressionError, err, map[string]any{"expression": expression})
	}
	return v, nil
}

func evalExpr(e *Expr, env Environment) (float64, error) {
	v, err := evalTerm(e.Left, env)
	if err != nil {
		return 0, err
	}
	for _, r := range e.Rest {
		rv, err := evalTerm(r.Term, env)
		if err != nil {
			return 0, err
		}
		switch r.Op {
		case "+":
			v += rv
		case "-":
			v -= rv
		}
	}
	return v, nil
}

func evalTerm(t *Term, env Environment) (float64, error) {
	v, err := evalPower(t.Left, env)
	if err != nil {
		return 0, err
	}
	for _, r := range t.Rest {
		rv, err := evalPower(r.Power, env)
		if err != nil {
			return 0, err
		}
		switch r.Op {
		case "*":
			v *= rv
		case "/":
			if rv == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			v /= rv
		}
	}
	return v, nil
}

func evalPower(p *Power, env Environment) (float64, error) {
	base, err := evalUnary(p.Base, env)
	if err != nil {
		return 0, err
	}
	if p.Right == nil {
		return base, nil
	}
	exp, err := evalPower(p.Right, env)
	if err != nil {
		return 0, err
	}
	return math.Pow(base, exp), nil
}

func evalUnary(u *Unary, env Environment) (float64, error) {
	v, err := evalPrimary(u.Primary, env)
	if err != nil {
		return 0, err
	}
	if u.Neg {
		v = -v
	}
	return v, nil
}

func evalPrimary(p *Primary, env Environment) (float64, error) {
	switch {
	case p.Call != nil:
		return evalCall(p.Call, env)
	case p.Number != nil:
		return *p.Number, nil
	case p.Ident != nil:
		v, ok := env[strings.TrimSpace(*p.Ident)]
		if !ok {
			return 0, &AbsentAliasError{Alias: *p.Ident}
		}
		return v, nil
	case p.Sub != nil:
		return evalExpr(p.Sub, env)
	default:
		return 0, fmt.Errorf("empty expression")
	}
}

func evalCall(c *Call, env Environment) (float64, error) {
	if len(c.Args) == 0 {
		return 0, fmt.Errorf("%s() requires at least one argument", c.Func)
	}
	vals := make([]float64, 0, len(c.Args))
	for _, a := range c.Args {
		v, err := evalExpr(a, env)
		if err != nil {
			return 0, err
		}
		vals = append(vals, v)
	}
	best := vals[0]
	for _, v := range vals[1:] {
		switch c.Func {
		case "min":
			if v < best {
				best = v
			}
		case "max":
			if v > best {
				best = v
			}
		}
	}
	return best, nil
}
