package core

import "sort"

// SchemaMatch is the result of comparing declared and uploaded column sets.
type SchemaMatch struct {
	Matched  bool     `json:"matched"`
	Expected []string `json:"expected_columns"`
	Actual   []string `json:"actual_columns"`
	Missing  []string `json:"missing_columns,omitempty"`
	Extra    []string `json:"extra_columns,omitempty"`
}

// MatchSchema checks exact set equality between the declared column names and
// the uploaded ones. Both sides are lower-cased and trimmed; order and
// duplicates do not matter.
func MatchSchema(declared, uploaded []string) SchemaMatch {
	want := nameSet(declared)
	got := nameSet(uploaded)

	m := SchemaMatch{
		Expected: sortedKeys(want),
		Actual:   sortedKeys(got),
	}
	for name := range want {
		if _, ok := got[name]; !ok {
			m.Missing = append(m.Missing, name)
		}
	}
	for name := range got {
		if _, ok := want[name]; !ok {
			m.Extra = append(m.Extra, name)
		}
	}
	sort.Strings(m.Missing)
	sort.Strings(m.Extra)

	m.Matched = len(m.Missing) == 0 && len(m.Extra) == 0
	return m
}

func nameSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[normalizeName(n)] = struct{}{}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
