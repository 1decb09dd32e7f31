// Package depth computes, for one record at a time, the per-(sample,
// allele) supporting read depth. It is the Go redesign of GLnexus's
// AlleleDepthHelper (BCFHelpers.h/.cc): same two cases (reference block vs
// regular record), same legacy AD-absent/INFO-DP==0 tolerance, but backed
// by a reusable []uint32 buffer owned by a long-lived Extractor instead of
// a realloc'd raw pointer, per spec.md §9's reusable-buffer redesign note
// and the amortized-allocation idiom this codebase applies to per-record
// scratch space (github.com/grailbio/bio/encoding/bam.Record.Scratch,
// ResizeScratch).
package depth

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/tfmorris/glnexus/gvcf"
)

// Extractor amortizes the depth buffer across many Load calls. It is not
// safe for concurrent use; callers scanning multiple samples concurrently
// should use one Extractor per goroutine.
type Extractor struct {
	buf       []uint32
	nSample   int
	nAllele   int
	isRefBlk  bool
	loaded    bool
	sampleLoc string // dataset name, for error messages
}

// NewExtractor returns a ready-to-use Extractor.
func NewExtractor() *Extractor { return &Extractor{} }

// Load populates the extractor from rec, which belongs to the named
// dataset (sample). It returns an Invalid error, naming the dataset and
// the record's range, whenever the record's depth fields are missing or
// malformed.
func (e *Extractor) Load(dataset string, rec *gvcf.Record) error {
	e.loaded = false
	e.nSample = rec.NumSamples()
	e.nAllele = rec.NumAlleles()
	e.sampleLoc = dataset
	e.isRefBlk = rec.IsRefConfidence()

	if e.isRefBlk {
		if len(rec.MinDP) != e.nSample {
			return e.invalid(rec, "gVCF reference MIN_DP field is missing or malformed")
		}
		e.resize(e.nSample)
		copy(e.buf, rec.MinDP)
		e.loaded = true
		return nil
	}

	want := e.nSample * e.nAllele
	switch {
	case rec.AD == nil:
		// Legacy workaround (flagged in the original source as such): AD may
		// be declared but entirely absent from this record. We tolerate that
		// only when INFO/DP==0, in which case every depth is zero.
		if rec.InfoDP != 0 {
			return e.invalid(rec, "VCF allele DP field is missing")
		}
		e.resize(want)
		for i := range e.buf {
			e.buf[i] = 0
		}
	case len(rec.AD) != want:
		return e.invalid(rec, "VCF AD field is malformed")
	default:
		e.resize(want)
		copy(e.buf, rec.AD)
	}
	e.loaded = true
	return nil
}

func (e *Extractor) resize(n int) {
	if cap(e.buf) < n {
		e.buf = make([]uint32, n)
	} else {
		e.buf = e.buf[:n]
	}
}

func (e *Extractor) invalid(rec *gvcf.Record, msg string) error {
	return errors.E(errors.Invalid, fmt.Sprintf("%s: %s: %s", msg, e.sampleLoc, rec.Range))
}

// IsRefBlock reports whether the most recently Loaded record was a
// reference-confidence (or pseudo-ref) record.
func (e *Extractor) IsRefBlock() bool { return e.isRefBlk }

// Depth returns the depth of coverage for sampleIdx at alleleIdx. It
// returns 0 for any out-of-range index, mirroring the original
// AlleleDepthHelper::depth's defensive bounds check. Load must have
// succeeded before calling Depth.
func (e *Extractor) Depth(sampleIdx, alleleIdx int) uint32 {
	if !e.loaded || sampleIdx < 0 || sampleIdx >= e.nSample || alleleIdx < 0 || alleleIdx >= e.nAllele {
		return 0
	}
	if e.isRefBlk {
		if alleleIdx != 0 {
			return 0
		}
		return e.buf[sampleIdx]
	}
	return e.buf[sampleIdx*e.nAllele+alleleIdx]
}
