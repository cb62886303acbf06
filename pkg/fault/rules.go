package fault

import "strings"

// Canonical message fragments raised by the component runtime. Host
// frameworks map their own failures onto these fragments so that
// classification behaves the same across embeddings.
const (
	// FragmentNilDeref is the Go runtime's nil-dereference text.
	FragmentNilDeref = "invalid memory address or nil pointer dereference"

	// FragmentStaleSetState marks a state mutation on a disposed component.
	FragmentStaleSetState = "SetState called after Dispose"

	// FragmentDeadElement marks work against an element no longer mounted
	// in the tree.
	FragmentDeadElement = "lookup on a deactivated element"

	// FragmentOverflow marks content that exceeded its render constraints.
	FragmentOverflow = "overflowed render constraints"
)

// Rule pairs a recognizable message fragment with the category it heals to.
type Rule struct {
	// Fragment is matched against the fault message by substring,
	// case-sensitive.
	Fragment string
	// Category is recorded when the fragment matches.
	Category Category
}

// DefaultRules is the ordered classification table. Order is significant:
// the first matching rule wins.
var DefaultRules = []Rule{
	{FragmentNilDeref, CategoryNilDeref},
	{FragmentStaleSetState, CategoryStaleSetState},
	{FragmentDeadElement, CategoryDeadElement},
	{FragmentOverflow, CategoryOverflow},
}

// Classify scans rules in order and returns the category of the first
// fragment contained in message. It returns (CategoryUnknown, false) when
// no rule matches.
func Classify(message string, rules []Rule) (Category, bool) {
	for _, r := range rules {
		if strings.Contains(message, r.Fragment) {
			return r.Category, true
		}
	}
	return CategoryUnknown, false
}
