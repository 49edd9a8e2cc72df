package resolver

import "sort"

// SuperFunctionInfo points at an overridden function: either an external
// descriptor or the label of a function in the same batch.
type SuperFunctionInfo struct {
	External *FunctionDescriptor
	Label    string
}

func (i SuperFunctionInfo) Internal() bool { return i.External == nil && i.Label != "" }

// ElementInfo is the per-run side table keyed by function label.
type ElementInfo map[string][]SuperFunctionInfo

func (e ElementInfo) Add(label string, info SuperFunctionInfo) {
	if label == "" {
		return
	}
	for _, existing := range e[label] {
		if existing == info {
			return
		}
	}
	e[label] = append(e[label], info)
}

// Labels lists the keys in a stable order.
func (e ElementInfo) Labels() []string {
	out := make([]string, 0, len(e))
	for l := range e {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
