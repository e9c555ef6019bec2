package params

import "strconv"

// ResolveID returns the id for a requested parameter set.
//
// Single-use classes always get "0". Multi-use classes reuse the id of the
// first stored entry that equals requested, or get the entry count as a new
// id. When several stored entries equal requested, the earliest one in stored
// order wins, not the latest. The count can collide with a higher id left behind by a manual edit of
// the store; the behavior is kept as-is.
func ResolveID(entries Entries, requested Params, multiUse bool) string {
	if !multiUse || len(entries) == 0 {
		return "0"
	}
	requested = normalize(requested)
	for _, entry := range entries {
		if Equal(entry.Params, requested) {
			return entry.ID
		}
	}
	return strconv.Itoa(len(entries))
}

// Find returns the ids, in stored order, whose parameter sets contain every
// key of filter with an equal value. An empty filter matches all entries.
func Find(entries Entries, filter Params) []string {
	normalized := normalize(filter)
	var ids []string
	for _, entry := range entries {
		if contains(entry.Params, normalized) {
			ids = append(ids, entry.ID)
		}
	}
	return ids
}

// normalize brings Go values (ints, structs) to their JSON-decoded form so
// they compare equal to stored values.
func normalize(p Params) Params {
	if len(p) == 0 {
		return p
	}
	if out, err := ToParams(map[string]any(p)); err == nil {
		return out
	}
	return p
}

func contains(p, filter Params) bool {
	for k, want := range filter {
		got, ok := p[k]
		if !ok || !Equal(Params{k: got}, Params{k: want}) {
			return false
		}
	}
	return true
}
