// Package coord defines the genomic position model shared by every stage of
// the joint-calling pipeline: contigs, half-open ranges over them, and the
// read-only contig table threaded explicitly through requests instead of
// living as a process-wide global.
//
// The Range/Compare/Overlaps/Contains methods mirror biopb.Coord and
// biopb.CoordRange in github.com/grailbio/bio/biopb, adapted from a
// three-field (ref, pos, seq) BAM coordinate to the two-field (ref, pos)
// coordinate a variant record needs.
package coord

import "fmt"

// Contig is a named reference sequence of a given length, identified
// elsewhere by its zero-based index into a Table.
type Contig struct {
	Name   string
	Length int64
}

// Table is the immutable, ordered list of contigs established when a
// sample's header is loaded. It is passed explicitly to every call that
// needs to interpret a RefID; nothing in this module keeps one as a
// package-level variable.
type Table struct {
	contigs []Contig
	byName  map[string]int32
}

// NewTable builds a Table from an ordered contig list.
func NewTable(contigs []Contig) *Table {
	t := &Table{
		contigs: contigs,
		byName:  make(map[string]int32, len(contigs)),
	}
	for i, c := range contigs {
		t.byName[c.Name] = int32(i)
	}
	return t
}

// Len returns the number of contigs in the table.
func (t *Table) Len() int { return len(t.contigs) }

// Contig returns the contig at the given RefID. It panics if refID is out of
// range, the same way indexing a slice directly would.
func (t *Table) Contig(refID int32) Contig { return t.contigs[refID] }

// RefID returns the index of the named contig, and false if it is unknown.
func (t *Table) RefID(name string) (int32, bool) {
	id, ok := t.byName[name]
	return id, ok
}

// Range is a half-open genomic interval [Beg, End) on contig RefID.
//
// 0 <= Beg < End <= Table.Contig(RefID).Length must hold for any Range
// produced from a real record; Unify and Discover never construct a Range
// that violates this.
type Range struct {
	RefID    int32
	Beg, End int64
}

// String implements fmt.Stringer for debugging and log messages.
func (r Range) String() string {
	return fmt.Sprintf("%d:%d-%d", r.RefID, r.Beg, r.End)
}

// Compare orders Ranges lexicographically by (RefID, Beg, End), matching
// spec.md's ordering rule for Range and Allele.
func (r Range) Compare(o Range) int {
	if r.RefID != o.RefID {
		return int(r.RefID - o.RefID)
	}
	if r.Beg != o.Beg {
		return sign(r.Beg - o.Beg)
	}
	return sign(r.End - o.End)
}

func sign(v int64) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}

// Less reports whether r sorts before o under Compare.
func (r Range) Less(o Range) bool { return r.Compare(o) < 0 }

// Overlaps reports whether r and o share the same RefID and their
// half-open intervals intersect.
func (r Range) Overlaps(o Range) bool {
	return r.RefID == o.RefID && r.Beg < o.End && o.Beg < r.End
}

// Contains reports whether o's interval lies entirely within r's.
func (r Range) Contains(o Range) bool {
	return r.RefID == o.RefID && r.Beg <= o.Beg && o.End <= r.End
}

// Len returns the width of the range in bases.
func (r Range) Len() int64 { return r.End - r.Beg }

// Union returns the smallest Range spanning both r and o. The caller must
// ensure r.RefID == o.RefID; Union panics otherwise, since a cross-contig
// union is never meaningful for this pipeline.
func (r Range) Union(o Range) Range {
	if r.RefID != o.RefID {
		panic(fmt.Sprintf("coord: Union across contigs: %v, %v", r, o))
	}
	beg, end := r.Beg, r.End
	if o.Beg < beg {
		beg = o.Beg
	}
	if o.End > end {
		end = o.End
	}
	return Range{RefID: r.RefID, Beg: beg, End: end}
}
