// Package fault defines the records, categories, and classification rules
// used by the interception pipeline.
package fault

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Category identifies the healable class of a fault.
type Category int

const (
	// CategoryUnknown indicates a fault matching no known pattern.
	CategoryUnknown Category = iota
	// CategoryNilDeref indicates a nil pointer dereference.
	CategoryNilDeref
	// CategoryStaleSetState indicates a state mutation after disposal.
	CategoryStaleSetState
	// CategoryDeadElement indicates a lookup on an element that has left the tree.
	CategoryDeadElement
	// CategoryOverflow indicates content exceeding its render constraints.
	CategoryOverflow
)

func (c Category) String() string {
	switch c {
	case CategoryNilDeref:
		return "nil-deref"
	case CategoryStaleSetState:
		return "setstate-after-dispose"
	case CategoryDeadElement:
		return "deactivated-element"
	case CategoryOverflow:
		return "render-overflow"
	default:
		return "unknown"
	}
}

// Fault is one admitted record in the interception log.
type Fault struct {
	// ID uniquely identifies the record.
	ID string
	// Err is the original error value.
	Err error
	// Trace contains the call stack captured with the fault.
	Trace string
	// Origin is a free-text label naming where the fault was caught.
	Origin string
	// Category is the classification outcome.
	Category Category
	// Healed reports whether classification found a known category.
	// It is set exactly once, during admission.
	Healed bool
	// Time is when the fault was admitted.
	Time time.Time
}

// New builds an unclassified record for err. Classification fields are
// filled in during admission.
func New(err error, trace string, origin string) *Fault {
	return &Fault{
		ID:     uuid.NewString(),
		Err:    err,
		Trace:  trace,
		Origin: origin,
		Time:   time.Now(),
	}
}

// Message returns the fault's error text, or "" for a nil error.
func (f *Fault) Message() string {
	if f == nil || f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// PanicError wraps a recovered panic value that is not itself an error.
type PanicError struct {
	// Value is the value passed to panic().
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// AsError normalizes a recovered panic value into an error.
func AsError(recovered any) error {
	if err, ok := recovered.(error); ok {
		return err
	}
	return &PanicError{Value: recovered}
}
