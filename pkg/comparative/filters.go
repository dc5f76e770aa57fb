package comparative

import "strings"

// Filters restricts the population before summation. Values within a dimension are OR-combined,
// dimensions are AND-combined. Zero values mean no restriction.
type Filters struct {
	Years       []int
	YearStart   int
	YearEnd     int
	Zones       []string
	ActionTypes []string
	Search      string
}

func (f Filters) IsEmpty() bool {
	return len(f.Years) == 0 && f.YearStart == 0 && f.YearEnd == 0 && len(f.Zones) == 0 &&
		len(f.ActionTypes) == 0 && strings.TrimSpace(f.Search) == ""
}

// IsYearInWindow reports whether year lies within [start, end]; a zero bound is open.
func IsYearInWindow(year, start, end int) bool {
	if start != 0 && year < start {
		return false
	}
	if end != 0 && year > end {
		return false
	}
	return true
}

type predicate struct {
	years     map[int]bool
	start     int
	end       int
	zones     map[string]bool
	types     map[string]bool
	search    string
	unbounded bool
}

func newPredicate(f Filters) predicate {
	p := predicate{
		start:     f.YearStart,
		end:       f.YearEnd,
		search:    strings.ToLower(strings.TrimSpace(f.Search)),
		unbounded: f.IsEmpty(),
	}
	if len(f.Years) > 0 {
		p.years = make(map[int]bool, len(f.Years))
		for _, y := range f.Years {
			p.years[y] = true
		}
	}
	if len(f.Zones) > 0 {
		p.zones = make(map[string]bool, len(f.Zones))
		for _, z := range f.Zones {
			p.zones[normalizeZone(z)] = true
		}
	}
	if len(f.ActionTypes) > 0 {
		p.types = make(map[string]bool, len(f.ActionTypes))
		for _, t := range f.ActionTypes {
			p.types[strings.ToLower(NormalizeActionType(t))] = true
		}
	}
	return p
}

// matchKey checks the year and zone dimensions only. Lines are tested with it on their resolved key.
func (p predicate) matchKey(zone string, year int) bool {
	if p.unbounded {
		return true
	}
	if p.years != nil && !p.years[year] {
		return false
	}
	if !IsYearInWindow(year, p.start, p.end) {
		return false
	}
	if p.zones != nil && !p.zones[normalizeZone(zone)] {
		return false
	}
	return true
}

func (p predicate) matchComponent(c Component) bool {
	if p.unbounded {
		return true
	}
	if !p.matchKey(c.Zone, c.Year) {
		return false
	}
	if p.types != nil && !p.types[strings.ToLower(NormalizeActionType(c.ActionType))] {
		return false
	}
	if p.search != "" {
		haystack := strings.ToLower(strings.Join([]string{c.Id, c.Label, c.ActionType, c.Zone}, " "))
		if !strings.Contains(haystack, p.search) {
			return false
		}
	}
	return true
}
