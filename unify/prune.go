package unify

import "sort"

// prune implements the "bridging allele" heuristic left open by spec.md's
// unification Open Question: a candidate allele that is the sole overlap
// between two otherwise-unconnected groups of candidates inflates one
// cluster into a single enormous, largely-unrelated site. Repeatedly find
// every such bridging candidate across the current candidate set and drop
// the single lowest-copy-number one (ties broken by (Range, Seq), for
// determinism), until no cluster can be split further by removing one
// candidate. alt must be sorted by candidateLess; prune returns a sorted
// slice with zero or more candidates removed.
func prune(alt []candidate) []candidate {
	for {
		bridge, ok := lowestBridge(alt)
		if !ok {
			return alt
		}
		alt = removeCandidate(alt, bridge)
	}
}

// lowestBridge scans every cluster for a bridging candidate — one whose
// removal splits that cluster into two or more clusters — and returns the
// lowest-copy-number bridge found across all clusters.
func lowestBridge(alt []candidate) (candidate, bool) {
	var best candidate
	found := false
	for _, members := range clusterByOverlap(alt) {
		if len(members) < 3 {
			continue // a 1- or 2-member cluster has no removable bridge.
		}
		for i, c := range members {
			without := make([]candidate, 0, len(members)-1)
			without = append(without, members[:i]...)
			without = append(without, members[i+1:]...)
			if len(clusterByOverlap(without)) < 2 {
				continue // removing c does not split this cluster.
			}
			if !found || c.CopyNumber < best.CopyNumber ||
				(c.CopyNumber == best.CopyNumber && candidateLess(c, best)) {
				best, found = c, true
			}
		}
	}
	return best, found
}

func removeCandidate(alt []candidate, target candidate) []candidate {
	out := make([]candidate, 0, len(alt)-1)
	removed := false
	for _, c := range alt {
		if !removed && c.Allele == target.Allele {
			removed = true
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return candidateLess(out[i], out[j]) })
	return out
}
