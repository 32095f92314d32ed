package models

// LabelSet is an insertion-ordered string-to-string map. Alert labels and
// annotations use it instead of a bare Go map so that fingerprinting and
// template iteration over label pairs are deterministic across runs,
// per the canonical alert's ordering requirement.
type LabelSet struct {
	keys   []string
	values map[string]string
}

// NewLabelSet returns an empty, ready-to-use LabelSet.
func NewLabelSet() *LabelSet {
	return &LabelSet{values: make(map[string]string)}
}

// Set inserts or overwrites a key. Existing keys keep their original
// position; new keys are appended.
func (l *LabelSet) Set(key, value string) {
	if l.values == nil {
		l.values = make(map[string]string)
	}
	if _, ok := l.values[key]; !ok {
		l.keys = append(l.keys, key)
	}
	l.values[key] = value
}

// Get returns the value for key and whether it was present.
func (l *LabelSet) Get(key string) (string, bool) {
	if l == nil || l.values == nil {
		return "", false
	}
	v, ok := l.values[key]
	return v, ok
}

// Has reports whether key is set.
func (l *LabelSet) Has(key string) bool {
	_, ok := l.Get(key)
	return ok
}

// Keys returns the keys in insertion order.
func (l *LabelSet) Keys() []string {
	if l == nil {
		return nil
	}
	return l.keys
}

// Len reports the number of entries.
func (l *LabelSet) Len() int {
	if l == nil {
		return 0
	}
	return len(l.keys)
}

// Pair is one (key, value) entry, used by template iteration.
type Pair struct {
	Key   string
	Value string
}

// Pairs returns all entries in insertion order.
func (l *LabelSet) Pairs() []Pair {
	if l == nil {
		return nil
	}
	out := make([]Pair, 0, len(l.keys))
	for _, k := range l.keys {
		out = append(out, Pair{Key: k, Value: l.values[k]})
	}
	return out
}

// Map returns a shallow copy as a plain map, for callers that genuinely
// need unordered lookup (e.g. fingerprinting, JSON re-marshaling).
func (l *LabelSet) Map() map[string]string {
	out := make(map[string]string, l.Len())
	for _, k := range l.keys {
		out[k] = l.values[k]
	}
	return out
}

// Clone returns an independent copy preserving order.
func (l *LabelSet) Clone() *LabelSet {
	c := NewLabelSet()
	for _, k := range l.Keys() {
		v, _ := l.Get(k)
		c.Set(k, v)
	}
	return c
}

// MergeFrom copies any keys from other that are not already set, without
// disturbing the existing order of l's own keys. Used to apply
// commonLabels/commonAnnotations under per-alert values (per-alert wins).
func (l *LabelSet) MergeFrom(other *LabelSet) {
	if other == nil {
		return
	}
	for _, p := range other.Pairs() {
		if !l.Has(p.Key) {
			l.Set(p.Key, p.Value)
		}
	}
}

// FromMap builds a LabelSet from a plain map. Since Go maps have no
// stable iteration order, callers that need deterministic order should
// prefer building directly with Set calls driven by the original JSON
// field order where available; FromMap sorts keys for reproducibility.
func FromMap(m map[string]string) *LabelSet {
	l := NewLabelSet()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortStrings(keys)
	for _, k := range keys {
		l.Set(k, m[k])
	}
	return l
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
