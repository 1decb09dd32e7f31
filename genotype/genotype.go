// Package genotype implements component E of the joint-calling pipeline:
// translating each sample's per-site evidence through a unify.Site's
// unification map into one joint, multi-sample record. It is the Go
// redesign of GLnexus's joint genotyping pass, parallelized across sites
// with golang.org/x/sync/errgroup the same way package discover
// parallelizes across samples — and, like the genotyper the spec
// describes, buffering results into an index-addressed slot so internal
// concurrency never disturbs the caller-visible site order (spec.md §5).
package genotype

import (
	"context"
	"runtime"
	"sync"

	"github.com/grailbio/base/log"
	"golang.org/x/sync/errgroup"

	"github.com/tfmorris/glnexus/coord"
	"github.com/tfmorris/glnexus/depth"
	"github.com/tfmorris/glnexus/gvcf"
	"github.com/tfmorris/glnexus/gvcfstore"
	"github.com/tfmorris/glnexus/unify"
)

// Config carries the genotyper_config option from spec.md §6.
type Config struct {
	RequiredDP      uint32
	OutputResiduals bool

	// Parallelism bounds the number of sites genotyped concurrently. Zero
	// falls back to Genotyper.Parallelism, and then to runtime.GOMAXPROCS(0).
	Parallelism int
}

// SampleGenotype is one sample's call at one site: two allele indices into
// the site's Alleles list (gvcf.MissingAllele for a no-call half), and the
// per-allele depth of coverage translated onto that same index space.
type SampleGenotype struct {
	GT [2]int32
	DP []uint32
}

// JointRecord is the per-site output the §4.5 output contract describes:
// one record per input site, carrying every sample's call.
type JointRecord struct {
	Range   coord.Range
	Alleles []string
	Samples []SampleGenotype
}

// Residual describes one input allele that could not be placed cleanly into
// a site: an allele a single ALT record's translation did not unify, or any
// allele of a sample's ALT records when more than one lies within the site.
// Residuals are emitted only when
// Config.OutputResiduals is set (spec.md §4.5 step 7, §6).
type Residual struct {
	Site   coord.Range
	Sample string
	Allele gvcf.Allele
	Reason string
}

// OutputSink receives joint records in site order.
type OutputSink interface {
	WriteSite(rec JointRecord) error
}

// ResidualSink receives residuals grouped by site, in site order, each
// site's residuals right after its JointRecord is written; within one site
// the order across samples is not fixed.
type ResidualSink interface {
	WriteResidual(r Residual) error
}

// Genotyper joins per-sample record-store evidence against a fixed set of
// unified sites.
type Genotyper struct {
	Store gvcfstore.Store

	Parallelism int
}

func (g *Genotyper) parallelism() int {
	if g.Parallelism > 0 {
		return g.Parallelism
	}
	return runtime.GOMAXPROCS(0)
}

// Genotype produces exactly one JointRecord per site, written to out in
// site order. Residuals (if requested) are delivered to res only once every
// site has been genotyped, each site's right after its record is written.
// The first IOError or Invalid from any record-store call aborts the whole
// request; nothing already buffered is written to out.
func (g *Genotyper) Genotype(ctx context.Context, samples []string, sites []unify.Site, cfg Config, out OutputSink, res ResidualSink) error {
	limit := g.parallelism()
	if cfg.Parallelism > 0 {
		limit = cfg.Parallelism
	}
	log.Debug.Printf("genotype: %d samples across %d sites, parallelism %d", len(samples), len(sites), limit)
	records := make([]JointRecord, len(sites))
	residuals := make([][]Residual, len(sites))

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(limit)

	for i, site := range sites {
		i, site := i, site
		grp.Go(func() error {
			rec, siteResiduals, err := g.genotypeSite(gctx, samples, site, cfg)
			if err != nil {
				return err
			}
			records[i] = rec
			residuals[i] = siteResiduals
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}

	for i, rec := range records {
		if err := out.WriteSite(rec); err != nil {
			return err
		}
		if cfg.OutputResiduals && res != nil {
			for _, r := range residuals[i] {
				if err := res.WriteResidual(r); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// genotypeSite implements the per-site, per-sample algorithm of spec.md
// §4.5. Each call gets its own depth.Extractor, since Extractor is not
// safe for concurrent use and genotypeSite may run on any goroutine the
// errgroup schedules.
func (g *Genotyper) genotypeSite(ctx context.Context, samples []string, site unify.Site, cfg Config) (JointRecord, []Residual, error) {
	rec := JointRecord{
		Range:   site.Range,
		Alleles: site.Alleles,
		Samples: make([]SampleGenotype, len(samples)),
	}
	var residuals []Residual
	var mu sync.Mutex

	grp, gctx := errgroup.WithContext(ctx)
	for i, sample := range samples {
		i, sample := i, sample
		grp.Go(func() error {
			sg, sampleResiduals, err := g.genotypeSample(gctx, sample, site, cfg)
			if err != nil {
				return err
			}
			rec.Samples[i] = sg
			if len(sampleResiduals) > 0 {
				mu.Lock()
				residuals = append(residuals, sampleResiduals...)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return JointRecord{}, nil, err
	}
	return rec, residuals, nil
}

func missingGenotype(nAlleles int) SampleGenotype {
	return SampleGenotype{GT: [2]int32{gvcf.MissingAllele, gvcf.MissingAllele}, DP: make([]uint32, nAlleles)}
}

func (g *Genotyper) genotypeSample(ctx context.Context, sample string, site unify.Site, cfg Config) (SampleGenotype, []Residual, error) {
	hdr, err := g.Store.Header(ctx, sample)
	if err != nil {
		return SampleGenotype{}, nil, err
	}
	it, err := g.Store.Range(ctx, sample, hdr, site.Range, nil)
	if err != nil {
		return SampleGenotype{}, nil, err
	}
	defer it.Close()

	var altRecs, refRecs []*gvcf.Record
	for it.Scan() {
		r := it.Record()
		if r.IsRefConfidence() {
			refRecs = append(refRecs, r)
		} else {
			altRecs = append(altRecs, r)
		}
	}
	if err := it.Err(); err != nil {
		return SampleGenotype{}, nil, err
	}

	coverage, err := unionCoverage(site.Range, sample, altRecs, refRecs)
	if err != nil {
		return SampleGenotype{}, nil, err
	}
	if minCoverage(coverage) < cfg.RequiredDP {
		return missingGenotype(len(site.Alleles)), nil, nil
	}

	// Step 2 (spec.md §4.5): only ALT records whose range lies within site
	// are genotyped from; one that merely overlaps (its allele may have been
	// dropped from the site entirely by the copy-number filter or the
	// bridging-allele prune) has already fed unionCoverage above and plays no
	// further part here.
	var containedAltRecs []*gvcf.Record
	for _, r := range altRecs {
		if site.Range.Contains(r.Range) {
			containedAltRecs = append(containedAltRecs, r)
		}
	}

	// Step 4: a site spanned by more than one ALT record cannot be combined;
	// emit missing and record every allele of each of those records as a
	// residual.
	if len(containedAltRecs) > 1 {
		var residuals []Residual
		for _, r := range containedAltRecs {
			for j := 0; j < r.NumAlleles(); j++ {
				residuals = append(residuals, Residual{
					Site: site.Range, Sample: sample, Allele: r.Allele(j),
					Reason: "multiple ALT records overlap site",
				})
			}
		}
		return missingGenotype(len(site.Alleles)), residuals, nil
	}

	if len(containedAltRecs) == 1 {
		return g.translateRecord(sample, site, containedAltRecs[0])
	}

	// Step 6: pure reference coverage; homozygous reference with the
	// minimum MIN_DP over covering reference blocks.
	dp := make([]uint32, len(site.Alleles))
	minDP, err := minRefDP(sample, refRecs)
	if err != nil {
		return SampleGenotype{}, nil, err
	}
	dp[0] = minDP
	return SampleGenotype{GT: [2]int32{0, 0}, DP: dp}, nil, nil
}

// translateRecord implements spec.md §4.5 step 5: a single ALT record's
// genotype, translated through site.Unification.
func (g *Genotyper) translateRecord(sample string, site unify.Site, r *gvcf.Record) (SampleGenotype, []Residual, error) {
	ext := depth.NewExtractor()
	if err := ext.Load(sample, r); err != nil {
		return SampleGenotype{}, nil, err
	}

	// translate maps record-local allele index j onto the site's allele
	// index space. The record's own reference allele (j == 0) always
	// translates to the site's reference (index 0) directly: unify never
	// puts a reference allele in a site's Unification map, since that map
	// only tracks ALT candidates (spec.md §3's "never to the reference"
	// invariant).
	translate := func(j int) (int, bool) {
		if j == 0 {
			return 0, true
		}
		allele := r.Allele(j)
		if idx, ok := site.Unification[allele]; ok {
			return idx, true
		}
		return 0, false
	}

	dp := make([]uint32, len(site.Alleles))
	var residuals []Residual
	for j := 0; j < r.NumAlleles(); j++ {
		idx, ok := translate(j)
		if !ok {
			allele := r.Allele(j)
			if !gvcf.IsNonRefSentinel(allele.Seq) {
				residuals = append(residuals, Residual{
					Site: site.Range, Sample: sample, Allele: allele,
					Reason: "allele did not unify into this site",
				})
			}
			continue
		}
		if d := ext.Depth(0, j); d > dp[idx] {
			dp[idx] = d
		}
	}

	gt := [2]int32{gvcf.MissingAllele, gvcf.MissingAllele}
	if len(r.GT) > 0 {
		raw := r.GT[0]
		for k, a := range [2]int32{raw[0], raw[1]} {
			if a < 0 {
				continue
			}
			if idx, ok := translate(int(a)); ok {
				gt[k] = int32(idx)
			}
		}
	}
	return SampleGenotype{GT: gt, DP: dp}, residuals, nil
}

// unionCoverage reconstructs, base by base over site, the depth of
// coverage contributed by whichever record (ALT or reference block) covers
// that base, taking the maximum when more than one record overlaps a
// position.
func unionCoverage(site coord.Range, sample string, altRecs, refRecs []*gvcf.Record) ([]uint32, error) {
	buf := make([]uint32, site.Len())
	apply := func(r *gvcf.Record, perBase uint32) {
		beg := r.Range.Beg - site.Beg
		end := r.Range.End - site.Beg
		if beg < 0 {
			beg = 0
		}
		if end > int64(len(buf)) {
			end = int64(len(buf))
		}
		for p := beg; p < end; p++ {
			if perBase > buf[p] {
				buf[p] = perBase
			}
		}
	}
	for _, r := range altRecs {
		ext := depth.NewExtractor()
		if err := ext.Load(sample, r); err != nil {
			return nil, err
		}
		var total uint32
		for j := 0; j < r.NumAlleles(); j++ {
			total += ext.Depth(0, j)
		}
		apply(r, total)
	}
	for _, r := range refRecs {
		ext := depth.NewExtractor()
		if err := ext.Load(sample, r); err != nil {
			return nil, err
		}
		apply(r, ext.Depth(0, 0))
	}
	return buf, nil
}

func minCoverage(buf []uint32) uint32 {
	if len(buf) == 0 {
		return 0
	}
	min := buf[0]
	for _, v := range buf[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

func minRefDP(sample string, refRecs []*gvcf.Record) (uint32, error) {
	if len(refRecs) == 0 {
		return 0, nil
	}
	min := uint32(^uint32(0))
	for _, r := range refRecs {
		ext := depth.NewExtractor()
		if err := ext.Load(sample, r); err != nil {
			return 0, err
		}
		if d := ext.Depth(0, 0); d < min {
			min = d
		}
	}
	return min, nil
}
