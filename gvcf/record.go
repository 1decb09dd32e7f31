// Package gvcf defines the per-sample record model the joint-calling core
// consumes: alleles, genotype calls, and the reference-confidence /
// pseudo-reference idioms of the gVCF convention. It is the Go redesign of
// GLnexus's BCFHelpers.h/.cc, generalized to the abstract record-store
// interface in package gvcfstore rather than a concrete bcf1_t.
package gvcf

import "github.com/tfmorris/glnexus/coord"

// NonRefSentinel and NonRefSentinelStar are the two ALT spellings a gVCF
// reference-confidence record uses in place of a real allele. Both must be
// recognized and neither may ever appear in a discovered or output allele
// list.
const (
	NonRefSentinel     = "<NON_REF>"
	NonRefSentinelStar = "<*>"
)

// IsNonRefSentinel reports whether seq is one of the recognized
// reference-block placeholder spellings.
func IsNonRefSentinel(seq string) bool {
	return seq == NonRefSentinel || seq == NonRefSentinelStar
}

// Allele is a (range, sequence) pair. The sequence's length may differ from
// Range.Len() for insertions and deletions; a Range-shorter allele is
// left/right padded with reference bases when it is lifted into a unified
// site (see package unify). Every allele of one Record shares that
// Record's Range: in VCF semantics REF/ALT describe alternative sequences
// occupying the same replaced span, not independently positioned alleles.
type Allele struct {
	Range coord.Range
	Seq   string
}

// MissingAllele is the sentinel genotype-call index meaning "no call".
const MissingAllele = -1

// Record is one per-sample gVCF/VCF record: a genomic range, its reference
// and alternate sequences, per-sample diploid genotype calls as allele
// indices, and the coverage/quality fields the depth extractor and
// genotyper need.
//
// AD, when present, has length NumSamples()*NumAlleles(); MinDP, when
// present, has length NumSamples(). A Record never carries both.
type Record struct {
	Range  coord.Range
	RefSeq string
	AltSeqs []string
	GT     [][2]int32

	AD    []uint32 // per (sample, allele) depth; len == NumSamples()*NumAlleles(), or nil.
	MinDP []uint32 // per-sample minimum depth for a reference block; len == NumSamples(), or nil.

	Qual   float32
	InfoDP int32 // INFO/DP; only consulted when AD is entirely absent.
}

// NumSamples returns the number of samples genotyped in this record.
func (r *Record) NumSamples() int { return len(r.GT) }

// NumAlleles returns 1 (the reference) plus the number of ALT sequences.
func (r *Record) NumAlleles() int { return 1 + len(r.AltSeqs) }

// Allele returns the j'th allele (0 = reference) as a standalone
// (range, sequence) pair.
func (r *Record) Allele(j int) Allele {
	if j == 0 {
		return Allele{Range: r.Range, Seq: r.RefSeq}
	}
	return Allele{Range: r.Range, Seq: r.AltSeqs[j-1]}
}

// IsRefBlock reports whether r is a gVCF reference-confidence record: it
// has exactly one ALT and it is a non-reference sentinel.
func (r *Record) IsRefBlock() bool {
	return len(r.AltSeqs) == 1 && IsNonRefSentinel(r.AltSeqs[0])
}

// IsPseudoRef reports whether r is a "pseudo reference confidence" record:
// quality exactly 0.0 and every sample's genotype call is homozygous
// reference (0/0), with no missing calls. Some HaplotypeCaller versions
// emit these instead of a proper reference block; the rest of the pipeline
// treats them identically to IsRefBlock records.
func (r *Record) IsPseudoRef() bool {
	if r.Qual != 0.0 {
		return false
	}
	for _, gt := range r.GT {
		if gt[0] != 0 || gt[1] != 0 {
			return false
		}
	}
	return true
}

// IsRefConfidence reports whether r should be treated as reference
// confidence evidence: either a true reference block, or a pseudo-ref
// record.
func (r *Record) IsRefConfidence() bool {
	return r.IsRefBlock() || r.IsPseudoRef()
}
