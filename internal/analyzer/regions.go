package analyzer

import (
	"sort"
)

// insertBackedgeDummies places an Empty node on every retreating edge and
// returns the recomputed backedges, each of which now leaves a dummy
func insertBackedgeDummies(g *FlowGraph) []EdgePair {
	for _, be := range FindBackedges(g) {
		dummy := g.AddEmpty("dummy backedge")
		g.MoveEdgeTarget(be.Source, be.Target, dummy)
		g.AddPlainEdge(dummy, be.Target)
	}

	backedges := FindBackedges(g)
	for _, be := range backedges {
		invariant(be.Source.IsEmpty() && len(be.Source.succs) == 1,
			"backedge %s does not leave a dummy node", be)
	}
	return backedges
}

// naturalRegion returns the nodes reachable from the backedge target that
// can also reach the backedge source, the edge itself excluded
func naturalRegion(be EdgePair) map[*Node]bool {
	forward := reachableFrom(be.Target, &be)
	backward := reachingTo(be.Source, &be)
	region := make(map[*Node]bool)
	for n := range forward {
		if backward[n] {
			region[n] = true
		}
	}
	return region
}

// createMetaRegions builds one region per backedge. A region containing the
// head of another backedge absorbs the nodes of that backedge's loop, to a
// fixed point.
func createMetaRegions(backedges []EdgePair) []*MetaRegion {
	natural := make([]map[*Node]bool, len(backedges))
	for i, be := range backedges {
		natural[i] = naturalRegion(be)
	}

	sets := make([]map[*Node]bool, len(backedges))
	for i := range natural {
		sets[i] = make(map[*Node]bool, len(natural[i]))
		for n := range natural[i] {
			sets[i][n] = true
		}
	}

	changed := true
	for changed {
		changed = false
		for i := range sets {
			for j, be := range backedges {
				if i == j || !sets[i][be.Target] {
					continue
				}
				for n := range natural[j] {
					if !sets[i][n] {
						sets[i][n] = true
						changed = true
					}
				}
			}
		}
	}

	regions := make([]*MetaRegion, len(sets))
	for i, set := range sets {
		nodes := make([]*Node, 0, len(set))
		for n := range set {
			nodes = append(nodes, n)
		}
		regions[i] = NewMetaRegion(i+1, nodes, true)
	}
	return regions
}

// simplifyAbnormalRetreating merges a region holding exactly one endpoint of
// a backedge with a region holding both
func simplifyAbnormalRetreating(regions []*MetaRegion, backedges []EdgePair) []*MetaRegion {
	for {
		before := len(regions)
		merged := false

	search:
		for i, r := range regions {
			for _, be := range backedges {
				if r.Contains(be.Source) == r.Contains(be.Target) {
					continue
				}
				for j, other := range regions {
					if j == i || !other.Contains(be.Source) || !other.Contains(be.Target) {
						continue
					}
					r.MergeWith(other)
					regions = append(regions[:j], regions[j+1:]...)
					merged = true
					break search
				}
				invariant(false, "no region owns the backedge %s", be)
			}
		}

		if !merged {
			return regions
		}
		invariant(len(regions) < before, "abnormal retreating merge made no progress")
	}
}

// simplifyOverlapping merges regions that intersect without being nested,
// and regions holding identical node sets
func simplifyOverlapping(regions []*MetaRegion) []*MetaRegion {
	for {
		before := len(regions)
		merged := false

	search:
		for i := range regions {
			for j := i + 1; j < len(regions); j++ {
				r, other := regions[i], regions[j]
				if !r.Intersects(other) {
					continue
				}
				nested := r.IsSubSetOf(other) || other.IsSubSetOf(r)
				if nested && !r.NodesEqual(other) {
					continue
				}
				r.MergeWith(other)
				regions = append(regions[:j], regions[j+1:]...)
				merged = true
				break search
			}
		}

		if !merged {
			return regions
		}
		invariant(len(regions) < before, "overlapping region merge made no progress")
	}
}

// checkRegionConsistency verifies that every region holds both endpoints of
// each backedge or neither
func checkRegionConsistency(regions []*MetaRegion, backedges []EdgePair) {
	for _, r := range regions {
		for _, be := range backedges {
			invariant(r.Contains(be.Source) == r.Contains(be.Target),
				"%s splits the backedge %s", r, be)
		}
	}
}

// sortRegions orders regions by ascending size, keeping creation order on ties
func sortRegions(regions []*MetaRegion) {
	sort.SliceStable(regions, func(i, j int) bool {
		return regions[i].Size() < regions[j].Size()
	})
}

// computeParents links every region to the smallest region strictly
// containing it, or to root. Regions must be sorted by size.
func computeParents(regions []*MetaRegion, root *MetaRegion) {
	for i, r := range regions {
		r.SetParent(root)
		for _, candidate := range regions[i+1:] {
			if r.IsSubSetOf(candidate) {
				r.SetParent(candidate)
				break
			}
		}
	}
}

// applyPartialOrder returns the regions bottom-up: every region comes
// before the regions containing it
func applyPartialOrder(regions []*MetaRegion, root *MetaRegion) []*MetaRegion {
	children := make(map[*MetaRegion][]*MetaRegion)
	for _, r := range regions {
		children[r.Parent()] = append(children[r.Parent()], r)
	}

	ordered := make([]*MetaRegion, 0, len(regions))
	var visit func(r *MetaRegion)
	visit = func(r *MetaRegion) {
		for _, c := range children[r] {
			visit(c)
		}
		if r != root {
			ordered = append(ordered, r)
		}
	}
	visit(root)

	invariant(len(ordered) == len(regions), "partial order lost regions: %d of %d", len(ordered), len(regions))
	return ordered
}
