package depth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tfmorris/glnexus/coord"
	"github.com/tfmorris/glnexus/gvcf"
)

func rng(beg, end int64) coord.Range { return coord.Range{RefID: 0, Beg: beg, End: end} }

func TestExtractorRegularRecord(t *testing.T) {
	rec := &gvcf.Record{
		Range: rng(0, 1), RefSeq: "A", AltSeqs: []string{"T"},
		GT: [][2]int32{{0, 1}, {1, 1}},
		AD: []uint32{5, 3, 0, 8},
	}
	e := NewExtractor()
	assert.NoError(t, e.Load("sampleA", rec))
	assert.False(t, e.IsRefBlock())
	assert.EqualValues(t, 5, e.Depth(0, 0))
	assert.EqualValues(t, 3, e.Depth(0, 1))
	assert.EqualValues(t, 0, e.Depth(1, 0))
	assert.EqualValues(t, 8, e.Depth(1, 1))
}

func TestExtractorReferenceBlock(t *testing.T) {
	rec := &gvcf.Record{
		Range: rng(0, 100), RefSeq: "A", AltSeqs: []string{gvcf.NonRefSentinel},
		GT: [][2]int32{{0, 0}, {0, 0}}, MinDP: []uint32{12, 7},
	}
	e := NewExtractor()
	assert.NoError(t, e.Load("sampleA", rec))
	assert.True(t, e.IsRefBlock())
	assert.EqualValues(t, 12, e.Depth(0, 0))
	assert.EqualValues(t, 7, e.Depth(1, 0))
	assert.EqualValues(t, 0, e.Depth(1, 1)) // reference block has no per-allele depth.
}

func TestExtractorMissingMinDPIsInvalid(t *testing.T) {
	rec := &gvcf.Record{
		Range: rng(0, 100), RefSeq: "A", AltSeqs: []string{gvcf.NonRefSentinel},
		GT: [][2]int32{{0, 0}, {0, 0}},
	}
	e := NewExtractor()
	assert.Error(t, e.Load("sampleA", rec))
}

func TestExtractorMissingADToleratedWhenInfoDPZero(t *testing.T) {
	rec := &gvcf.Record{
		Range: rng(0, 1), RefSeq: "A", AltSeqs: []string{"T"},
		GT: [][2]int32{{0, 0}}, Qual: 30, InfoDP: 0,
	}
	e := NewExtractor()
	assert.NoError(t, e.Load("sampleA", rec))
	assert.EqualValues(t, 0, e.Depth(0, 0))
	assert.EqualValues(t, 0, e.Depth(0, 1))
}

func TestExtractorMissingADRejectedWhenInfoDPNonzero(t *testing.T) {
	rec := &gvcf.Record{
		Range: rng(0, 1), RefSeq: "A", AltSeqs: []string{"T"},
		GT: [][2]int32{{0, 0}}, Qual: 30, InfoDP: 9,
	}
	e := NewExtractor()
	assert.Error(t, e.Load("sampleA", rec))
}

func TestExtractorMalformedADLength(t *testing.T) {
	rec := &gvcf.Record{
		Range: rng(0, 1), RefSeq: "A", AltSeqs: []string{"T"},
		GT: [][2]int32{{0, 0}, {0, 1}}, AD: []uint32{1, 2, 3}, // want 2*2=4
	}
	e := NewExtractor()
	assert.Error(t, e.Load("sampleA", rec))
}

func TestExtractorDepthOutOfRangeReturnsZero(t *testing.T) {
	rec := &gvcf.Record{
		Range: rng(0, 1), RefSeq: "A", AltSeqs: []string{"T"},
		GT: [][2]int32{{0, 1}}, AD: []uint32{1, 2},
	}
	e := NewExtractor()
	assert.NoError(t, e.Load("sampleA", rec))
	assert.EqualValues(t, 0, e.Depth(-1, 0))
	assert.EqualValues(t, 0, e.Depth(5, 0))
	assert.EqualValues(t, 0, e.Depth(0, 5))
}
