package narrator

import (
	"context"
	"testing"
)

func TestEcho_Evaluate(t *testing.T) {
	out, err := Echo{}.Evaluate(context.Background(), "open the door", "", nil)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if out.NextPrompt != "AI says: open the door" {
		t.Errorf("NextPrompt = %q", out.NextPrompt)
	}
	if out.NeedRoll {
		t.Error("Echo should never ask for a roll")
	}
}

func TestEcho_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Echo{}).Evaluate(ctx, "x", "", nil); err == nil {
		t.Error("Evaluate() should fail on a cancelled context")
	}
}

func TestD20_Range(t *testing.T) {
	var d D20
	for i := 0; i < 1000; i++ {
		n := d.Roll()
		if n < 1 || n > DieSides {
			t.Fatalf("Roll() = %d, want 1..%d", n, DieSides)
		}
	}
}
