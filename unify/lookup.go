package unify

import (
	"github.com/biogo/store/interval"

	"github.com/tfmorris/glnexus/coord"
)

// siteInterval adapts a Site's range into the interval.IntInterface
// github.com/biogo/store/interval.IntTree requires, indexed by the site's
// position in Result.Sites.
type siteInterval struct {
	iv  interval.IntRange
	idx int
}

func (s siteInterval) Overlap(b interval.IntRange) bool { return s.iv.Start < b.End && b.Start < s.iv.End }
func (s siteInterval) Range() interval.IntRange         { return s.iv }
func (s siteInterval) ID() uintptr                      { return uintptr(s.idx) }

// newResult builds the per-contig interval.IntTree index over sites, one
// tree per RefID, the same per-chromosome forest
// igor/victor/coverage.go's flattenFamily and readAnnotations build.
func newResult(sites []Site) Result {
	trees := make(map[int32]*interval.IntTree)
	for idx, s := range sites {
		t, ok := trees[s.Range.RefID]
		if !ok {
			t = &interval.IntTree{}
			trees[s.Range.RefID] = t
		}
		iv := siteInterval{iv: interval.IntRange{Start: int(s.Range.Beg), End: int(s.Range.End)}, idx: idx}
		_ = t.Insert(iv, true)
	}
	for _, t := range trees {
		t.AdjustRanges()
	}
	return Result{Sites: sites, trees: trees}
}

// Lookup returns the unified site overlapping r, if any. Because Unify
// guarantees sites are pairwise non-overlapping, at most one can match.
func (res Result) Lookup(r coord.Range) (*Site, bool) {
	t, ok := res.trees[r.RefID]
	if !ok {
		return nil, false
	}
	q := siteInterval{iv: interval.IntRange{Start: int(r.Beg), End: int(r.End)}}
	for _, hit := range t.Get(q) {
		idx := int(hit.ID())
		return &res.Sites[idx], true
	}
	return nil, false
}
