package extensibility

import (
	"log"
	"strconv"
	"strings"

	"github.com/waferflow/statechart/internal/execctx"
)

// LoggingGuard wraps fn so every evaluation is logged with its outcome,
// mirroring LoggingAction for guards.
func LoggingGuard(name string, fn execctx.GuardFunc) execctx.GuardFunc {
	return func(ec *execctx.Context, payload any) (bool, error) {
		ok, err := fn(ec, payload)
		log.Printf("guard %s: result=%v err=%v", name, ok, err)
		return ok, err
	}
}

// ExpressionGuard compiles a simple "key op value" expression (e.g.
// "temp > 30", "loggedIn == true") into a GuardFunc evaluated against the
// execution context, for charts that want inline conditions instead of a
// host-registered named guard.
func ExpressionGuard(expr string) execctx.GuardFunc {
	return func(ec *execctx.Context, _ any) (bool, error) {
		return evalExpression(ec, expr), nil
	}
}

func evalExpression(ec *execctx.Context, expr string) bool {
	parts := strings.Fields(expr)
	if len(parts) != 3 {
		return false
	}
	key, op, valStr := parts[0], parts[1], parts[2]

	v, hasKey := ec.Get(key)
	if !hasKey {
		return false
	}

	switch op {
	case "==":
		switch valStr {
		case "true":
			return v == true
		case "false":
			return v == false
		case "nil":
			return v == nil
		default:
			if fVal, err := strconv.ParseFloat(valStr, 64); err == nil {
				if f, ok := v.(float64); ok {
					return f == fVal
				}
			}
			if s, ok := v.(string); ok {
				return s == valStr
			}
			return false
		}
	case "!=":
		return !evalExpression(ec, key+" == "+valStr)
	case ">":
		fVal, err := strconv.ParseFloat(valStr, 64)
		if err != nil {
			return false
		}
		f, ok := v.(float64)
		return ok && f > fVal
	case "<":
		fVal, err := strconv.ParseFloat(valStr, 64)
		if err != nil {
			return false
		}
		f, ok := v.(float64)
		return ok && f < fVal
	default:
		return false
	}
}
