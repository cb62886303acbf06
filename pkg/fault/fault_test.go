package fault

import (
	"errors"
	"strings"
	"testing"
)

func TestCategoryString(t *testing.T) {
	tests := []struct {
		category Category
		want     string
	}{
		{CategoryUnknown, "unknown"},
		{CategoryNilDeref, "nil-deref"},
		{CategoryStaleSetState, "setstate-after-dispose"},
		{CategoryDeadElement, "deactivated-element"},
		{CategoryOverflow, "render-overflow"},
		{Category(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.category.String(); got != tt.want {
			t.Errorf("Category(%d).String() = %q, want %q", tt.category, got, tt.want)
		}
	}
}

func TestNewFault(t *testing.T) {
	err := errors.New("boom")
	f := New(err, "stack trace", "widget.Build")

	if f.ID == "" {
		t.Error("expected non-empty ID")
	}
	if f.Err != err {
		t.Errorf("Err = %v, want %v", f.Err, err)
	}
	if f.Trace != "stack trace" {
		t.Errorf("Trace = %q, want %q", f.Trace, "stack trace")
	}
	if f.Origin != "widget.Build" {
		t.Errorf("Origin = %q, want %q", f.Origin, "widget.Build")
	}
	if f.Healed {
		t.Error("new fault should not be marked healed")
	}
	if f.Time.IsZero() {
		t.Error("expected Time to be set")
	}

	other := New(err, "stack trace", "widget.Build")
	if other.ID == f.ID {
		t.Error("expected distinct IDs for distinct records")
	}
}

func TestFaultMessage(t *testing.T) {
	f := New(errors.New("boom"), "", "test")
	if got := f.Message(); got != "boom" {
		t.Errorf("Message() = %q, want %q", got, "boom")
	}

	empty := &Fault{}
	if got := empty.Message(); got != "" {
		t.Errorf("Message() on nil error = %q, want empty", got)
	}

	var nilFault *Fault
	if got := nilFault.Message(); got != "" {
		t.Errorf("Message() on nil fault = %q, want empty", got)
	}
}

func TestPanicErrorString(t *testing.T) {
	err := &PanicError{Value: 42}
	if got := err.Error(); got != "panic: 42" {
		t.Errorf("PanicError.Error() = %q, want %q", got, "panic: 42")
	}
}

func TestAsError(t *testing.T) {
	original := errors.New("already an error")
	if got := AsError(original); got != original {
		t.Errorf("AsError(error) = %v, want same instance", got)
	}

	wrapped := AsError("plain string")
	pe, ok := wrapped.(*PanicError)
	if !ok {
		t.Fatalf("AsError(string) = %T, want *PanicError", wrapped)
	}
	if pe.Value != "plain string" {
		t.Errorf("Value = %v, want %q", pe.Value, "plain string")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		wantCat  Category
		wantHeal bool
	}{
		{"nil deref", "runtime error: invalid memory address or nil pointer dereference", CategoryNilDeref, true},
		{"stale setstate", "counterState: SetState called after Dispose", CategoryStaleSetState, true},
		{"dead element", "context lookup on a deactivated element", CategoryDeadElement, true},
		{"overflow", "column content overflowed render constraints by 23 pixels", CategoryOverflow, true},
		{"unmatched", "connection refused", CategoryUnknown, false},
		{"case sensitive", "SETSTATE CALLED AFTER DISPOSE", CategoryUnknown, false},
		{"empty message", "", CategoryUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, healed := Classify(tt.message, DefaultRules)
			if cat != tt.wantCat || healed != tt.wantHeal {
				t.Errorf("Classify(%q) = (%v, %v), want (%v, %v)",
					tt.message, cat, healed, tt.wantCat, tt.wantHeal)
			}
		})
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	// Contains both the nil-deref and overflow fragments; rule order decides.
	message := "invalid memory address or nil pointer dereference while content overflowed render constraints"

	cat, healed := Classify(message, DefaultRules)
	if !healed || cat != CategoryNilDeref {
		t.Errorf("Classify with default order = (%v, %v), want (%v, true)", cat, healed, CategoryNilDeref)
	}

	reversed := []Rule{
		{FragmentOverflow, CategoryOverflow},
		{FragmentNilDeref, CategoryNilDeref},
	}
	cat, healed = Classify(message, reversed)
	if !healed || cat != CategoryOverflow {
		t.Errorf("Classify with reversed order = (%v, %v), want (%v, true)", cat, healed, CategoryOverflow)
	}
}

func TestClassifyEmptyRules(t *testing.T) {
	cat, healed := Classify("invalid memory address or nil pointer dereference", nil)
	if healed || cat != CategoryUnknown {
		t.Errorf("Classify with no rules = (%v, %v), want (%v, false)", cat, healed, CategoryUnknown)
	}
}

func TestFingerprint(t *testing.T) {
	errA := errors.New("request failed")
	errB := errors.New("request failed")

	// Same dynamic type and trace head collapse onto one key.
	a := Fingerprint(errA, "f1\nf2\nf3\nf4", 3)
	b := Fingerprint(errB, "f1\nf2\nf3\nf4", 3)
	if a != b {
		t.Errorf("same type and trace should share a fingerprint: %q vs %q", a, b)
	}

	// A different error type splits the key.
	c := Fingerprint(&PanicError{Value: "request failed"}, "f1\nf2\nf3\nf4", 3)
	if c == a {
		t.Error("different error types should not share a fingerprint")
	}

	// Divergence within the folded depth splits the key.
	d := Fingerprint(errA, "f1\nOTHER\nf3\nf4", 3)
	if d == a {
		t.Error("traces differing inside the depth should not share a fingerprint")
	}

	// Divergence past the folded depth is ignored.
	e := Fingerprint(errA, "f1\nf2\nf3\nDIFFERENT", 3)
	if e != a {
		t.Errorf("traces differing past the depth should share a fingerprint: %q vs %q", e, a)
	}
}

func TestFingerprintShortTrace(t *testing.T) {
	err := errors.New("x")
	got := Fingerprint(err, "only-line", 3)
	if !strings.HasSuffix(got, "|only-line") {
		t.Errorf("Fingerprint with short trace = %q, want full trace kept", got)
	}

	if got := Fingerprint(nil, "t", 3); !strings.HasPrefix(got, "nil|") {
		t.Errorf("Fingerprint(nil) = %q, want nil| prefix", got)
	}
}

func TestCaptureStack(t *testing.T) {
	stack := CaptureStack()
	if stack == "" {
		t.Fatal("expected non-empty stack trace")
	}
	if !strings.Contains(stack, "testing") && !strings.Contains(stack, "runtime") {
		t.Errorf("stack trace should contain testing or runtime frames, got: %s", stack)
	}
}
