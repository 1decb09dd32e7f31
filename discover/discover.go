// Package discover implements component C of the joint-calling pipeline:
// scanning per-sample records across a set of genomic ranges, extracting
// candidate ALT alleles with their observed copy number. It is the Go
// redesign of GLnexus's discover_alleles, generalized from a single
// sequential scan to a bounded fan-out over samples per range
// (golang.org/x/sync/errgroup), modeled on how
// github.com/grailbio/bio/markduplicates shards work across goroutines
// with an Opts.Parallelism knob and merges partial results afterward.
package discover

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"github.com/dgryski/go-farm"
	"github.com/grailbio/base/log"
	"golang.org/x/sync/errgroup"

	"github.com/tfmorris/glnexus/coord"
	"github.com/tfmorris/glnexus/gvcf"
	"github.com/tfmorris/glnexus/gvcfstore"
)

// Observation is the aggregated evidence discovered for one allele: the
// summed genotype-call count across samples (copy_number in spec.md §3),
// whether the allele is the reference allele of its originating record
// (carried so the unifier can recover the site's reference bases), and,
// for reference observations only, the portion of that count contributed
// by true reference-confidence evidence (a gVCF MIN_DP block or a
// pseudo-reference record) rather than by an ordinary variant record's
// own embedded reference call. The unifier's samples_with_evidence tally
// (spec.md §4.4) is built from RefBlockEvidence, not CopyNumber: an
// ordinary het/hom-alt record's reference allele is real sequence
// evidence for stitching, but it is not the kind of "evidence" that
// formula counts.
type Observation struct {
	CopyNumber       float32
	IsRef            bool
	RefBlockEvidence float32
}

// AlleleMap maps a candidate allele to its aggregated Observation. Two
// AlleleMaps merge commutatively and associatively (spec.md §8 property
// 4): Merge never depends on the order its inputs were produced in.
type AlleleMap map[gvcf.Allele]Observation

// Merge folds other into m's copy numbers, returning m. It is the
// associative operator that lets per-sample, per-shard partial maps be
// combined regardless of discovery order.
func (m AlleleMap) Merge(other AlleleMap) AlleleMap {
	for a, obs := range other {
		cur := m[a]
		cur.CopyNumber += obs.CopyNumber
		cur.IsRef = cur.IsRef || obs.IsRef
		cur.RefBlockEvidence += obs.RefBlockEvidence
		m[a] = cur
	}
	return m
}

// Keys returns the map's alleles in the canonical deterministic order
// (ascending Range, then lexicographic Seq) spec.md §9's "order-sensitive
// collections" design note requires for reproducible downstream
// processing; nothing in this package ever relies on Go's randomized map
// iteration order for anything observable.
func (m AlleleMap) Keys() []gvcf.Allele {
	keys := make([]gvcf.Allele, 0, len(m))
	for a := range m {
		keys = append(keys, a)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Range != keys[j].Range {
			return keys[i].Range.Compare(keys[j].Range) < 0
		}
		return keys[i].Seq < keys[j].Seq
	})
	return keys
}

// Discoverer scans a Store for candidate alleles.
type Discoverer struct {
	Store gvcfstore.Store

	// Parallelism bounds the number of samples read concurrently per range.
	// Zero means runtime.GOMAXPROCS(0), the same default
	// markduplicates.Opts.Parallelism documents.
	Parallelism int
}

func (d *Discoverer) parallelism() int {
	if d.Parallelism > 0 {
		return d.Parallelism
	}
	return runtime.GOMAXPROCS(0)
}

// Discover scans samples across ranges and returns one AlleleMap per
// range, in the same order as ranges. A single gvcfstore IOError or
// Invalid anywhere aborts the whole call and is returned verbatim
// (spec.md §7, §8 property 6); no partial AlleleMap is returned.
func (d *Discoverer) Discover(ctx context.Context, samples []string, ranges []coord.Range) ([]AlleleMap, error) {
	log.Debug.Printf("discover: %d samples across %d ranges, parallelism %d", len(samples), len(ranges), d.parallelism())
	out := make([]AlleleMap, len(ranges))
	for i, r := range ranges {
		m, err := d.discoverRange(ctx, samples, r)
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}

// shardCount is the number of shards the per-sample merge is split across.
// Sharding by a hash of the allele lets concurrent samples accumulate into
// disjoint buckets without a shared lock on the hot path; the final fold
// into one ordered AlleleMap is single-threaded and hash-order-independent.
const shardCount = 16

func shardFor(a gvcf.Allele) int {
	h := farm.Hash64([]byte(a.Seq))
	h ^= uint64(a.Range.RefID)<<32 ^ uint64(a.Range.Beg)
	return int(h % shardCount)
}

func (d *Discoverer) discoverRange(ctx context.Context, samples []string, r coord.Range) (AlleleMap, error) {
	var shards [shardCount]struct {
		mu sync.Mutex
		m  AlleleMap
	}
	for i := range shards {
		shards[i].m = make(AlleleMap)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.parallelism())

	for _, sample := range samples {
		sample := sample
		g.Go(func() error {
			local, err := scanSample(gctx, d.Store, sample, r)
			if err != nil {
				return err
			}
			for a, obs := range local {
				s := &shards[shardFor(a)]
				s.mu.Lock()
				cur := s.m[a]
				cur.CopyNumber += obs.CopyNumber
				cur.IsRef = cur.IsRef || obs.IsRef
				cur.RefBlockEvidence += obs.RefBlockEvidence
				s.m[a] = cur
				s.mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(AlleleMap)
	for i := range shards {
		merged.Merge(shards[i].m)
	}
	return merged, nil
}

// scanSample fetches sample's header and records overlapping r, and
// returns the allele observations they contribute, per spec.md §4.3's
// algorithm: ALT alleles whose footprint lies fully within r contribute
// their haplotype count; alleles crossing r's boundary, and reference
// blocks, contribute only to reference-copy tracking.
func scanSample(ctx context.Context, store gvcfstore.Store, sample string, r coord.Range) (AlleleMap, error) {
	hdr, err := store.Header(ctx, sample)
	if err != nil {
		return nil, err
	}
	it, err := store.Range(ctx, sample, hdr, r, nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	m := make(AlleleMap)
	for it.Scan() {
		rec := it.Record()
		accumulateRecord(m, rec, r)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

func accumulateRecord(m AlleleMap, rec *gvcf.Record, r coord.Range) {
	isRefConf := rec.IsRefConfidence()

	if !r.Contains(rec.Range) {
		// A record crossing r's boundary contributes reference-copy tracking
		// only: its ALT alleles' footprint doesn't lie fully within r, but
		// the reference bases it covers still do (and, for a wide
		// reference-confidence block, this is the common case).
		accumulateAllele(m, rec, 0, isRefConf)
		return
	}

	for j := 0; j < rec.NumAlleles(); j++ {
		allele := rec.Allele(j)
		if j > 0 && gvcf.IsNonRefSentinel(allele.Seq) {
			continue // the reference-block placeholder is never a real allele.
		}
		if j > 0 && isRefConf {
			continue // a ref-confidence record contributes no ALT evidence.
		}
		accumulateAllele(m, rec, j, isRefConf)
	}
}

// accumulateAllele tallies rec's j'th allele into m. count is the number of
// haplotypes across rec's samples whose call points at j. When j is the
// reference allele of a true reference-confidence record (a gVCF MIN_DP
// block or a pseudo-reference record), that count also feeds
// RefBlockEvidence, the quantity the unifier's samples_with_evidence tally
// is built from (spec.md §4.4) — an ordinary record's own reference call is
// not that kind of evidence, only a ref-confidence block's is.
func accumulateAllele(m AlleleMap, rec *gvcf.Record, j int, isRefConf bool) {
	allele := rec.Allele(j)
	count := float32(0)
	for _, gt := range rec.GT {
		if gt[0] == int32(j) {
			count++
		}
		if gt[1] == int32(j) {
			count++
		}
	}
	obs := m[allele]
	obs.CopyNumber += count
	obs.IsRef = obs.IsRef || j == 0
	if j == 0 && isRefConf {
		obs.RefBlockEvidence += count
	}
	m[allele] = obs
}
