package cluster

import (
	"sort"

	"github.com/arya-analytics/murmur/internal/message"
)

type values map[message.Value]struct{}

func (v values) add(val message.Value) bool {
	if _, ok := v[val]; ok {
		return false
	}
	v[val] = struct{}{}
	return true
}

func (v values) has(val message.Value) bool {
	_, ok := v[val]
	return ok
}

// sorted returns the members of v in ascending order. Never nil.
func (v values) sorted() []message.Value {
	out := make([]message.Value, 0, len(v))
	for val := range v {
		out = append(out, val)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
