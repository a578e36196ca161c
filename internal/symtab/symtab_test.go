package symtab

import "testing"

func TestInternStableAndSequential(t *testing.T) {
	tab := New()
	a, err := tab.Intern("a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := tab.Intern("b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != 0 || b != 1 {
		t.Fatalf("expected sequential ids 0,1, got %d,%d", a, b)
	}
	again, err := tab.Intern("a")
	if err != nil || again != a {
		t.Fatalf("expected stable re-intern, got %d err %v", again, err)
	}
	if tab.Name(b) != "b" {
		t.Fatalf("expected reverse lookup b, got %s", tab.Name(b))
	}
}

func TestInternOverflow(t *testing.T) {
	tab := New()
	for i := 0; i <= MaxID; i++ {
		if _, err := tab.Intern(string(rune('a' + i%26)) + itoa(i)); err != nil {
			t.Fatalf("unexpected overflow at %d: %v", i, err)
		}
	}
	if _, err := tab.Intern("overflow"); err == nil {
		t.Fatalf("expected overflow error beyond %d entries", MaxID+1)
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
