package gvcf

import (
	"testing"

	"github.com/grailbio/testutil/expect"

	"github.com/tfmorris/glnexus/coord"
)

func rng(beg, end int64) coord.Range { return coord.Range{RefID: 0, Beg: beg, End: end} }

func TestRecordAlleleSharesRange(t *testing.T) {
	r := &Record{Range: rng(100, 101), RefSeq: "C", AltSeqs: []string{"T", "G"}}
	expect.EQ(t, 3, r.NumAlleles())
	for j := 0; j < r.NumAlleles(); j++ {
		expect.EQ(t, rng(100, 101), r.Allele(j).Range)
	}
	expect.EQ(t, "C", r.Allele(0).Seq)
	expect.EQ(t, "T", r.Allele(1).Seq)
	expect.EQ(t, "G", r.Allele(2).Seq)
}

func TestIsRefBlock(t *testing.T) {
	refBlock := &Record{Range: rng(0, 10), RefSeq: "A", AltSeqs: []string{NonRefSentinel}}
	expect.EQ(t, true, refBlock.IsRefBlock())

	star := &Record{Range: rng(0, 10), RefSeq: "A", AltSeqs: []string{NonRefSentinelStar}}
	expect.EQ(t, true, star.IsRefBlock())

	regular := &Record{Range: rng(0, 1), RefSeq: "A", AltSeqs: []string{"T"}}
	expect.EQ(t, false, regular.IsRefBlock())
}

func TestIsPseudoRef(t *testing.T) {
	pseudo := &Record{
		Range: rng(0, 1), RefSeq: "A", AltSeqs: []string{"T"},
		GT: [][2]int32{{0, 0}, {0, 0}}, Qual: 0,
	}
	expect.EQ(t, true, pseudo.IsPseudoRef())
	expect.EQ(t, true, pseudo.IsRefConfidence())

	notPseudoQual := &Record{
		Range: rng(0, 1), RefSeq: "A", AltSeqs: []string{"T"},
		GT: [][2]int32{{0, 0}}, Qual: 30,
	}
	expect.EQ(t, false, notPseudoQual.IsPseudoRef())

	notPseudoCall := &Record{
		Range: rng(0, 1), RefSeq: "A", AltSeqs: []string{"T"},
		GT: [][2]int32{{0, 1}}, Qual: 0,
	}
	expect.EQ(t, false, notPseudoCall.IsPseudoRef())
}

func TestIsNonRefSentinel(t *testing.T) {
	expect.EQ(t, true, IsNonRefSentinel(NonRefSentinel))
	expect.EQ(t, true, IsNonRefSentinel(NonRefSentinelStar))
	expect.EQ(t, false, IsNonRefSentinel("A"))
}
