// Package heal keeps process-wide counters of successfully healed fault
// categories.
package heal

import (
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/go-drift/mend/pkg/fault"
)

// Registry counts healed faults per category. The zero value is not usable;
// construct with NewRegistry. Safe for concurrent use.
type Registry struct {
	mu     sync.Mutex
	counts map[fault.Category]int
	order  []fault.Category
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{counts: make(map[fault.Category]int)}
}

// Record increments the count for category, creating it at 1 if absent.
func (r *Registry) Record(category fault.Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, seen := r.counts[category]; !seen {
		r.order = append(r.order, category)
	}
	r.counts[category]++
}

// Snapshot returns a copy of the current counts. Mutating the returned map
// does not affect the registry.
func (r *Registry) Snapshot() map[fault.Category]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[fault.Category]int, len(r.counts))
	for c, n := range r.counts {
		out[c] = n
	}
	return out
}

// Total returns the sum of all counts.
func (r *Registry) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, n := range r.counts {
		total += n
	}
	return total
}

// MostFrequent returns the category with the highest count. Ties are broken
// by first-recorded order. The second result is false when the registry is
// empty.
func (r *Registry) MostFrequent() (fault.Category, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.order) == 0 {
		return fault.CategoryUnknown, false
	}
	best := r.order[0]
	for _, c := range r.order[1:] {
		if r.counts[c] > r.counts[best] {
			best = c
		}
	}
	return best, true
}

// Reset clears all counts. Intended for test isolation and diagnostics.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = make(map[fault.Category]int)
	r.order = nil
}

// Report renders a human-readable summary: one line per category in
// first-recorded order with title-cased names, followed by the total.
// The output is deterministic for a given recording sequence.
func (r *Registry) Report() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	title := cases.Title(language.English)
	var sb strings.Builder
	sb.WriteString("Healed Faults\n")
	if len(r.order) == 0 {
		sb.WriteString("  none\n")
	}
	total := 0
	for _, c := range r.order {
		sb.WriteString("  ")
		sb.WriteString(title.String(strings.ReplaceAll(c.String(), "-", " ")))
		sb.WriteString(": ")
		sb.WriteString(strconv.Itoa(r.counts[c]))
		sb.WriteString("\n")
		total += r.counts[c]
	}
	sb.WriteString("Total: ")
	sb.WriteString(strconv.Itoa(total))
	return sb.String()
}
