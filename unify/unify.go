// Package unify implements component D of the joint-calling pipeline:
// collapsing a discovered allele map into an ordered, non-overlapping list
// of multi-allelic sites. It is the Go redesign of GLnexus's unifier_config
// driven site-unification pass.
//
// Clustering (connected components over the "ranges overlap" relation) is
// computed by a sorted sweep, the textbook merge-overlapping-intervals
// algorithm; the resulting site ranges are then indexed in a
// github.com/biogo/store/interval.IntTree per contig, giving O(log n)
// "which site overlaps this range" lookups through Result.Lookup — the same
// build-while-sweeping-then-query-the-tree split
// github.com/biogo/examples' igor/victor/coverage.go uses for per-family
// interval flattening.
package unify

import (
	"math"
	"sort"

	"github.com/biogo/store/interval"

	"github.com/tfmorris/glnexus/coord"
	"github.com/tfmorris/glnexus/discover"
	"github.com/tfmorris/glnexus/gvcf"
)

// Config carries the unifier_config option from spec.md §6.
type Config struct {
	// MinAlleleCopyNumber is the copy-number threshold below which a
	// candidate ALT allele is pruned before clustering. Zero (the default)
	// keeps every observed candidate.
	MinAlleleCopyNumber float32
}

// Site is one unified, multi-allelic output of the unifier: a range, an
// ordered allele list (index 0 is always the reference), the map
// recovering which output index each input candidate collapsed onto, and
// the aggregated copy number observed for each output allele.
type Site struct {
	Range       coord.Range
	Alleles     []string
	Unification map[gvcf.Allele]int
	CopyNumber  []float32
}

// Result is the ordered, non-overlapping site list Unify produces, plus an
// index supporting fast range lookups.
type Result struct {
	Sites []Site

	trees map[int32]*interval.IntTree
}

// Unify collapses merged, a discovered allele map (possibly itself the
// result of merging several discover.AlleleMaps — Merge is
// commutative/associative, so callers may combine ranges before or after
// calling Unify), into an ordered, pairwise non-overlapping Result.
func Unify(merged discover.AlleleMap, cfg Config) Result {
	alt, refObs := splitObservations(merged)
	alt = filterByCopyNumber(alt, cfg.MinAlleleCopyNumber)
	alt = prune(alt)

	sites := make([]Site, 0, len(alt))
	for _, members := range clusterByOverlap(alt) {
		sites = append(sites, buildSite(members, refObs, merged))
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i].Range.Compare(sites[j].Range) < 0 })
	return newResult(sites)
}

// candidate is a single discovered-allele-map entry carried through the
// unifier's filter/prune/cluster stages.
type candidate struct {
	Allele     gvcf.Allele
	CopyNumber float32
}

func candidateLess(a, b candidate) bool {
	if a.Allele.Range != b.Allele.Range {
		return a.Allele.Range.Compare(b.Allele.Range) < 0
	}
	return a.Allele.Seq < b.Allele.Seq
}

// splitObservations separates merged's ALT candidates (is_ref == false,
// real candidates subject to filtering/clustering/output) from its
// reference observations (is_ref == true, used only to recover the site's
// reference bases and to tally samples_with_evidence).
func splitObservations(merged discover.AlleleMap) (alt, refObs []candidate) {
	for a, obs := range merged {
		c := candidate{Allele: a, CopyNumber: obs.CopyNumber}
		if obs.IsRef {
			refObs = append(refObs, c)
		} else {
			alt = append(alt, c)
		}
	}
	sort.Slice(alt, func(i, j int) bool { return candidateLess(alt[i], alt[j]) })
	sort.Slice(refObs, func(i, j int) bool { return candidateLess(refObs[i], refObs[j]) })
	return alt, refObs
}

func filterByCopyNumber(alt []candidate, min float32) []candidate {
	out := alt[:0:0]
	for _, c := range alt {
		if c.CopyNumber >= min {
			out = append(out, c)
		}
	}
	return out
}

// clusterByOverlap groups alt (assumed sorted by candidateLess) into
// connected components of the "ranges overlap" relation, using the
// standard running-max-end sweep: because the input is sorted by
// (RefID, Beg), a new cluster starts exactly when the next range begins at
// or after every range opened so far has ended.
func clusterByOverlap(alt []candidate) [][]candidate {
	var clusters [][]candidate
	var cur []candidate
	var curRefID int32
	var curEnd int64
	for _, c := range alt {
		if len(cur) > 0 && c.Allele.Range.RefID == curRefID && c.Allele.Range.Beg < curEnd {
			cur = append(cur, c)
			if c.Allele.Range.End > curEnd {
				curEnd = c.Allele.Range.End
			}
			continue
		}
		if len(cur) > 0 {
			clusters = append(clusters, cur)
		}
		cur = []candidate{c}
		curRefID = c.Allele.Range.RefID
		curEnd = c.Allele.Range.End
	}
	if len(cur) > 0 {
		clusters = append(clusters, cur)
	}
	return clusters
}

// buildSite turns one cluster of overlapping ALT candidates into a Site.
// merged is the unfiltered discovered allele map, consulted only to tally
// samples_with_evidence over the site's final range from reference-confidence
// evidence (spec.md §4.4's "reference copy number" formula counts every
// sample with reference-confidence coverage overlapping the site, including
// one whose ALT candidate the copy-number filter or the bridging-allele
// prune already dropped from the output allele list; it never counts a
// sample's ordinary variant record toward this tally).
func buildSite(members []candidate, refObs []candidate, merged discover.AlleleMap) Site {
	siteRange := members[0].Allele.Range
	for _, c := range members[1:] {
		siteRange = siteRange.Union(c.Allele.Range)
	}

	refSeq := stitchReference(siteRange, refObs)

	type altGroup struct {
		seq        string
		copyNumber float32
	}
	groupIdx := make(map[string]int)
	var groups []altGroup
	unification := make(map[gvcf.Allele]int, len(members))

	for _, c := range members {
		padded := pad(c.Allele.Seq, c.Allele.Range, siteRange, refSeq)
		idx, ok := groupIdx[padded]
		if !ok {
			idx = len(groups)
			groupIdx[padded] = idx
			groups = append(groups, altGroup{seq: padded})
		}
		groups[idx].copyNumber += c.CopyNumber
		unification[c.Allele] = idx + 1 // +1: index 0 is reserved for the reference.
	}

	// Order ALT alleles by descending copy number, tie-break lexicographically
	// (spec.md §4.4 step 5).
	order := make([]int, len(groups))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		gi, gj := groups[order[i]], groups[order[j]]
		if gi.copyNumber != gj.copyNumber {
			return gi.copyNumber > gj.copyNumber
		}
		return gi.seq < gj.seq
	})
	rank := make([]int, len(groups)) // old index -> new (1-based) index
	alleles := make([]string, 1, len(groups)+1)
	alleles[0] = refSeq
	copyNumber := make([]float32, 1, len(groups)+1)
	var altSum float32
	for newIdx, oldIdx := range order {
		rank[oldIdx] = newIdx + 1
		alleles = append(alleles, groups[oldIdx].seq)
		copyNumber = append(copyNumber, groups[oldIdx].copyNumber)
		altSum += groups[oldIdx].copyNumber
	}
	for a, oldIdx := range unification {
		unification[a] = rank[oldIdx-1]
	}

	evidence := evidenceHaplotypes(siteRange, merged)
	copyNumber[0] = float32(math.Max(0, float64(evidence)-float64(altSum)))

	return Site{
		Range:       siteRange,
		Alleles:     alleles,
		Unification: unification,
		CopyNumber:  copyNumber,
	}
}

// evidenceHaplotypes sums RefBlockEvidence, the portion of every discovered
// reference observation contributed by a true reference-confidence record
// (a gVCF MIN_DP block or a pseudo-reference record), across every
// discovered allele (filtered or not) whose range overlaps site. An
// ordinary variant record's own reference call never contributes here: it
// is not the evidence spec.md §4.4's samples_with_evidence formula means,
// since it has no bearing on which samples actually have reference-confidence
// coverage at this site. Because a reference-confidence record is always
// homozygous reference, this sum already equals 2*samples_with_evidence(site)
// directly, with no further scaling needed.
func evidenceHaplotypes(site coord.Range, merged discover.AlleleMap) float32 {
	var sum float32
	for a, obs := range merged {
		if a.Range.Overlaps(site) {
			sum += obs.RefBlockEvidence
		}
	}
	return sum
}

// stitchReference recovers the reference sequence over site by splicing
// together every reference observation overlapping it. Because site.Range
// is the union of candidate ranges, and every candidate's originating
// record also contributed a reference observation over that same record's
// range (package discover), every base of site is covered by at least one
// reference observation; any position no observation reaches (malformed
// input) is filled with 'N'.
func stitchReference(site coord.Range, refObs []candidate) string {
	buf := make([]byte, site.Len())
	for i := range buf {
		buf[i] = 'N'
	}
	for _, c := range refObs {
		if !c.Allele.Range.Overlaps(site) {
			continue
		}
		offset := c.Allele.Range.Beg - site.Beg
		for i := 0; i < len(c.Allele.Seq); i++ {
			pos := offset + int64(i)
			if pos < 0 || pos >= int64(len(buf)) {
				continue
			}
			buf[pos] = c.Allele.Seq[i]
		}
	}
	return string(buf)
}

// pad left/right-pads seq (observed over alleleRange, a sub-range of site)
// with reference bases so its footprint matches site, per spec.md §4.4
// step 3.
func pad(seq string, alleleRange, site coord.Range, refSeq string) string {
	leftPad := alleleRange.Beg - site.Beg
	rightPad := site.End - alleleRange.End
	return refSeq[:leftPad] + seq + refSeq[int64(len(refSeq))-rightPad:]
}
