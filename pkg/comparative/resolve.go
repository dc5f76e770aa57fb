package comparative

import "strings"

func normalizeZone(zone string) string {
	return strings.ToLower(strings.TrimSpace(zone))
}

type resolution struct {
	key    Key
	reason OrphanReason
}

func (r resolution) ok() bool {
	return r.reason == ""
}

// resolver attaches lines to component keys. It walks executed -> programmed -> planned -> component,
// inheriting zone and year from the parent when the line does not carry them.
type resolver struct {
	componentKeys map[string][]Key
	keys          map[Key]struct{}
	planned       map[string]resolution
	programmed    map[string]resolution
	orphans       []Orphan
}

func newResolver(components []Component) *resolver {
	r := &resolver{
		componentKeys: make(map[string][]Key),
		keys:          make(map[Key]struct{}),
		planned:       make(map[string]resolution),
		programmed:    make(map[string]resolution),
	}
	for _, c := range components {
		k := componentKey(c)
		if _, seen := r.keys[k]; seen {
			continue
		}
		r.keys[k] = struct{}{}
		r.componentKeys[c.Id] = append(r.componentKeys[c.Id], k)
	}
	return r
}

func componentKey(c Component) Key {
	return Key{ComponentId: c.Id, Zone: normalizeZone(c.Zone), Year: c.Year}
}

// against resolves a (possibly partial) zone/year against the keys of a component.
func (r *resolver) against(componentId, zone string, year int) resolution {
	keys := r.componentKeys[componentId]
	if len(keys) == 0 {
		return resolution{reason: OrphanUnknownComponent}
	}
	zone = normalizeZone(zone)
	if zone != "" && year != 0 {
		k := Key{ComponentId: componentId, Zone: zone, Year: year}
		if _, ok := r.keys[k]; !ok {
			return resolution{reason: OrphanKeyMismatch}
		}
		return resolution{key: k}
	}

	var found []Key
	for _, k := range keys {
		if (zone == "" || k.Zone == zone) && (year == 0 || k.Year == year) {
			found = append(found, k)
		}
	}
	switch len(found) {
	case 0:
		return resolution{reason: OrphanKeyMismatch}
	case 1:
		return resolution{key: found[0]}
	default:
		return resolution{reason: OrphanAmbiguousKey}
	}
}

func (r *resolver) fromParent(parent resolution, zone string, year int) resolution {
	if !parent.ok() {
		return resolution{reason: OrphanUnknownParent}
	}
	if strings.TrimSpace(zone) == "" {
		zone = parent.key.Zone
	}
	if year == 0 {
		year = parent.key.Year
	}
	return r.against(parent.key.ComponentId, zone, year)
}

func (r *resolver) report(kind LineKind, id string, res resolution, reference string) {
	if res.ok() {
		return
	}
	r.orphans = append(r.orphans, Orphan{Kind: kind, LineId: id, Reason: res.reason, Reference: reference})
}

func (r *resolver) resolvePlanned(l PlannedLine) resolution {
	var res resolution
	ref := l.ComponentId
	if l.ComponentId == "" {
		res = resolution{reason: OrphanMissingLink}
	} else {
		res = r.against(l.ComponentId, l.Zone, l.Year)
	}
	r.planned[l.Id] = res
	r.report(KindPlanned, l.Id, res, ref)
	return res
}

func (r *resolver) resolveProgrammed(l ProgrammedLine) resolution {
	var res resolution
	var ref string
	switch {
	case l.ComponentId != "":
		ref = l.ComponentId
		res = r.against(l.ComponentId, l.Zone, l.Year)
	case l.PlannedLineId != "":
		ref = l.PlannedLineId
		res = r.parent(r.planned, l.PlannedLineId, l.Zone, l.Year)
	default:
		res = resolution{reason: OrphanMissingLink}
	}
	r.programmed[l.Id] = res
	r.report(KindProgrammed, l.Id, res, ref)
	return res
}

func (r *resolver) resolveExecuted(l ExecutedLine) resolution {
	var res resolution
	var ref string
	switch {
	case l.ComponentId != "":
		ref = l.ComponentId
		res = r.against(l.ComponentId, l.Zone, l.Year)
	case l.ProgrammedLineId != "" && (r.known(r.programmed, l.ProgrammedLineId) || l.PlannedLineId == ""):
		ref = l.ProgrammedLineId
		res = r.parent(r.programmed, l.ProgrammedLineId, l.Zone, l.Year)
	case l.PlannedLineId != "":
		// also reached when the CP parent is gone
		ref = l.PlannedLineId
		res = r.parent(r.planned, l.PlannedLineId, l.Zone, l.Year)
	default:
		res = resolution{reason: OrphanMissingLink}
	}
	r.report(KindExecuted, l.Id, res, ref)
	return res
}

func (r *resolver) known(parents map[string]resolution, parentId string) bool {
	_, ok := parents[parentId]
	return ok
}

func (r *resolver) parent(parents map[string]resolution, parentId, zone string, year int) resolution {
	parent, ok := parents[parentId]
	if !ok {
		return resolution{reason: OrphanUnknownParent}
	}
	return r.fromParent(parent, zone, year)
}
