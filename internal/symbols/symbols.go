// Package symbols normalizes ticker symbols and holds the equity allow-set.
package symbols

import (
	"sort"
	"strings"
)

// aliasMap normalizes common share-class spellings to the form Yahoo quotes.
var aliasMap = map[string]string{
	"BRK.B": "BRK-B",
	"BRK/B": "BRK-B",
	"BRKB":  "BRK-B",
	"BRK.A": "BRK-A",
	"BRK/A": "BRK-A",
	"BF.B":  "BF-B",
	"BF/B":  "BF-B",
}

// Normalize trims and upper-cases s and resolves known aliases.
func Normalize(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if norm, ok := aliasMap[s]; ok {
		return norm
	}
	return s
}

// ParseCSV splits a comma list into normalized, deduplicated symbols,
// preserving first-seen order.
func ParseCSV(s string) []string {
	return Dedupe(strings.Split(s, ","))
}

// Dedupe normalizes in and drops empty and repeated entries. Entries that
// still contain commas are split first, so env-style lists pass through.
func Dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, raw := range in {
		for _, part := range strings.Split(raw, ",") {
			s := Normalize(part)
			if s == "" {
				continue
			}
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// AllowSet is the configured set of equity symbols clients may query.
// It is built once at startup and never modified.
type AllowSet struct {
	order []string
	set   map[string]struct{}
}

func NewAllowSet(syms []string) AllowSet {
	order := Dedupe(syms)
	set := make(map[string]struct{}, len(order))
	for _, s := range order {
		set[s] = struct{}{}
	}
	return AllowSet{order: order, set: set}
}

func (a AllowSet) Len() int { return len(a.order) }

func (a AllowSet) Contains(sym string) bool {
	_, ok := a.set[Normalize(sym)]
	return ok
}

// Symbols returns the allowed symbols in configured order.
func (a AllowSet) Symbols() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Filter normalizes and deduplicates syms and keeps only allowed ones.
// An empty allow-set keeps everything.
func (a AllowSet) Filter(syms []string) []string {
	in := Dedupe(syms)
	if a.Len() == 0 {
		return in
	}
	out := in[:0]
	for _, s := range in {
		if _, ok := a.set[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Sorted returns a sorted copy of syms.
func Sorted(syms []string) []string {
	out := make([]string, len(syms))
	copy(out, syms)
	sort.Strings(out)
	return out
}
