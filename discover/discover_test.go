package discover

import (
	"context"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil/expect"

	"github.com/tfmorris/glnexus/coord"
	"github.com/tfmorris/glnexus/gvcf"
	"github.com/tfmorris/glnexus/gvcfstore"
)

func rng(beg, end int64) coord.Range { return coord.Range{RefID: 0, Beg: beg, End: end} }

func TestAlleleMapMergeIsCommutative(t *testing.T) {
	a := gvcf.Allele{Range: rng(0, 1), Seq: "T"}
	b := gvcf.Allele{Range: rng(5, 6), Seq: "G"}

	m1 := AlleleMap{a: {CopyNumber: 2}}
	m2 := AlleleMap{a: {CopyNumber: 1}, b: {CopyNumber: 3, IsRef: true}}

	left := AlleleMap{a: {CopyNumber: 2}}.Merge(m2)
	right := AlleleMap{a: {CopyNumber: 1}, b: {CopyNumber: 3, IsRef: true}}.Merge(m1)

	expect.EQ(t, left[a].CopyNumber, right[a].CopyNumber)
	expect.EQ(t, float32(3), left[a].CopyNumber)
	expect.EQ(t, true, left[b].IsRef)
}

func TestAlleleMapKeysDeterministicOrder(t *testing.T) {
	a := gvcf.Allele{Range: rng(5, 6), Seq: "G"}
	b := gvcf.Allele{Range: rng(0, 1), Seq: "T"}
	c := gvcf.Allele{Range: rng(0, 1), Seq: "A"}
	m := AlleleMap{a: {}, b: {}, c: {}}

	keys := m.Keys()
	expect.EQ(t, []gvcf.Allele{c, b, a}, keys)
}

func TestDiscoverAccumulatesCopyNumberAcrossSamples(t *testing.T) {
	hdr := &gvcf.Header{}
	s1 := []*gvcf.Record{
		{Range: rng(10, 11), RefSeq: "A", AltSeqs: []string{"T"}, GT: [][2]int32{{0, 1}}},
	}
	s2 := []*gvcf.Record{
		{Range: rng(10, 11), RefSeq: "A", AltSeqs: []string{"T"}, GT: [][2]int32{{1, 1}}},
	}
	store := gvcfstore.NewMemStore(
		map[string]*gvcf.Header{"s1": hdr, "s2": hdr},
		map[string][]*gvcf.Record{"s1": s1, "s2": s2},
	)
	d := &Discoverer{Store: store, Parallelism: 2}

	maps, err := d.Discover(context.Background(), []string{"s1", "s2"}, []coord.Range{rng(0, 100)})
	expect.NoError(t, err)
	expect.EQ(t, 1, len(maps))

	alt := gvcf.Allele{Range: rng(10, 11), Seq: "T"}
	expect.EQ(t, float32(3), maps[0][alt].CopyNumber)
	expect.EQ(t, false, maps[0][alt].IsRef)

	ref := gvcf.Allele{Range: rng(10, 11), Seq: "A"}
	expect.EQ(t, true, maps[0][ref].IsRef)
}

func TestDiscoverPartialOverlapContributesReferenceOnly(t *testing.T) {
	hdr := &gvcf.Header{}
	recs := []*gvcf.Record{
		// Crosses the query boundary at 50: must not contribute ALT evidence,
		// but its reference allele is still real evidence over the queried
		// portion of its range.
		{Range: rng(45, 55), RefSeq: "A", AltSeqs: []string{"T"}, GT: [][2]int32{{0, 1}}},
	}
	store := gvcfstore.NewMemStore(
		map[string]*gvcf.Header{"s1": hdr},
		map[string][]*gvcf.Record{"s1": recs},
	)
	d := &Discoverer{Store: store, Parallelism: 1}

	maps, err := d.Discover(context.Background(), []string{"s1"}, []coord.Range{rng(0, 50)})
	expect.NoError(t, err)
	expect.EQ(t, 1, len(maps[0]))

	ref := gvcf.Allele{Range: rng(45, 55), Seq: "A"}
	obs, ok := maps[0][ref]
	expect.EQ(t, true, ok)
	expect.EQ(t, float32(1), obs.CopyNumber)
	expect.EQ(t, true, obs.IsRef)

	alt := gvcf.Allele{Range: rng(45, 55), Seq: "T"}
	_, altPresent := maps[0][alt]
	expect.EQ(t, false, altPresent)
}

func TestDiscoverRefConfidenceContributesNoAltEvidence(t *testing.T) {
	hdr := &gvcf.Header{}
	recs := []*gvcf.Record{
		{Range: rng(10, 20), RefSeq: "A", AltSeqs: []string{gvcf.NonRefSentinel}, GT: [][2]int32{{0, 0}}, MinDP: []uint32{9}},
	}
	store := gvcfstore.NewMemStore(
		map[string]*gvcf.Header{"s1": hdr},
		map[string][]*gvcf.Record{"s1": recs},
	)
	d := &Discoverer{Store: store, Parallelism: 1}

	maps, err := d.Discover(context.Background(), []string{"s1"}, []coord.Range{rng(0, 100)})
	expect.NoError(t, err)
	// Only the block's reference allele is recorded, as ref-block evidence.
	expect.EQ(t, 1, len(maps[0]))
	ref := maps[0][gvcf.Allele{Range: rng(10, 20), Seq: "A"}]
	expect.EQ(t, true, ref.IsRef)
	expect.EQ(t, float32(2), ref.RefBlockEvidence)
}

func TestDiscoverPropagatesStoreFailure(t *testing.T) {
	hdr := &gvcf.Header{}
	store := gvcfstore.NewMemStore(
		map[string]*gvcf.Header{"s1": hdr},
		map[string][]*gvcf.Record{"s1": nil},
	)
	store.FailAt = 0
	store.FailErr = errors.E(errors.IO, "injected")

	d := &Discoverer{Store: store, Parallelism: 1}
	_, err := d.Discover(context.Background(), []string{"s1"}, []coord.Range{rng(0, 100)})
	expect.NotNil(t, err)
}
