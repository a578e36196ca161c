package extensibility

import (
	"testing"

	"github.com/waferflow/statechart/internal/execctx"
)

func TestLoggingGuard_DelegatesResult(t *testing.T) {
	inner := func(ec *execctx.Context, payload any) (bool, error) {
		return true, nil
	}
	wrapped := LoggingGuard("g", inner)
	ok, err := wrapped(execctx.New(nil), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected true")
	}
}

func TestExpressionGuard_EqNumber(t *testing.T) {
	ec := execctx.New(map[string]any{"temp": 30.0})
	g := ExpressionGuard("temp == 30")
	ok, _ := g(ec, nil)
	if !ok {
		t.Error("30 == 30")
	}
	g = ExpressionGuard("temp == 31")
	ok, _ = g(ec, nil)
	if ok {
		t.Error("30 != 31")
	}
}

func TestExpressionGuard_Gt(t *testing.T) {
	ec := execctx.New(map[string]any{"temp": 35.0})
	g := ExpressionGuard("temp > 30")
	ok, _ := g(ec, nil)
	if !ok {
		t.Error("35 > 30")
	}
}

func TestExpressionGuard_Bool(t *testing.T) {
	ec := execctx.New(map[string]any{"loggedIn": true})
	g := ExpressionGuard("loggedIn == true")
	ok, _ := g(ec, nil)
	if !ok {
		t.Error("loggedIn == true")
	}
}

func TestExpressionGuard_Neq(t *testing.T) {
	ec := execctx.New(map[string]any{"user": "alice"})
	g := ExpressionGuard("user != bob")
	ok, _ := g(ec, nil)
	if !ok {
		t.Error("alice != bob")
	}
	g = ExpressionGuard("user != alice")
	ok, _ = g(ec, nil)
	if ok {
		t.Error("alice == alice")
	}
}

func TestExpressionGuard_MissingKey(t *testing.T) {
	ec := execctx.New(nil)
	g := ExpressionGuard("missing == true")
	ok, _ := g(ec, nil)
	if ok {
		t.Error("missing key should be false")
	}
}
