// Package service wires the record store, discoverer, unifier, and
// genotyper into the single entry point spec.md §2 describes: "a service
// object is constructed around a record store... a request issues
// discover, unify, genotype... the three steps may also be invoked
// independently."
package service

import (
	"context"

	"github.com/grailbio/base/errors"

	"github.com/tfmorris/glnexus/coord"
	"github.com/tfmorris/glnexus/discover"
	"github.com/tfmorris/glnexus/genotype"
	"github.com/tfmorris/glnexus/gvcfstore"
	"github.com/tfmorris/glnexus/unify"
)

// Config bundles the two configuration objects spec.md §6 names, plus the
// discoverer's own parallelism knob (not part of either named config,
// since it is a resource-usage tuning, not an output-affecting option).
type Config struct {
	DiscoverParallelism int
	UnifierConfig       unify.Config
	GenotyperConfig     genotype.Config
}

// Service is the joint-calling core's single entry point. It holds no
// per-request state; every method takes its sample list and ranges
// explicitly, the same way gvcfstore.Store takes them explicitly rather
// than assuming a process-wide default.
type Service struct {
	Store gvcfstore.Store

	// Samples is the service's authoritative cohort: every sample the
	// record store can be asked about. The abstract Store interface (§4.1)
	// has no "list known samples" operation, so a Service must be told its
	// full cohort at construction; passing nil to Discover/Genotype/Call
	// selects all of Samples, resolving the "explicit list or all" sample
	// selection the discoverer and genotyper accept.
	Samples []string

	Config Config
}

// resolveSamples returns samples if non-empty, else s.Samples.
func (s *Service) resolveSamples(samples []string) ([]string, error) {
	if len(samples) > 0 {
		return samples, nil
	}
	if len(s.Samples) == 0 {
		return nil, errors.E(errors.Invalid, "service: no samples configured or requested")
	}
	return s.Samples, nil
}

// Discover runs component C: candidate ALT alleles with observed copy
// number, one AlleleMap per range, in range order. samples == nil selects
// every sample in s.Samples.
func (s *Service) Discover(ctx context.Context, samples []string, ranges []coord.Range) ([]discover.AlleleMap, error) {
	resolved, err := s.resolveSamples(samples)
	if err != nil {
		return nil, err
	}
	d := &discover.Discoverer{Store: s.Store, Parallelism: s.Config.DiscoverParallelism}
	return d.Discover(ctx, resolved, ranges)
}

// Unify runs component D over a single merged allele map (callers
// discovering across several ranges merge the per-range AlleleMaps with
// AlleleMap.Merge before calling Unify; Merge is commutative/associative so
// the merge order never matters).
func (s *Service) Unify(merged discover.AlleleMap) unify.Result {
	return unify.Unify(merged, s.Config.UnifierConfig)
}

// Genotype runs component E: one joint record per site, written to out in
// site order. samples == nil selects every sample in s.Samples.
func (s *Service) Genotype(ctx context.Context, samples []string, sites []unify.Site, out genotype.OutputSink, res genotype.ResidualSink) error {
	resolved, err := s.resolveSamples(samples)
	if err != nil {
		return err
	}
	g := &genotype.Genotyper{Store: s.Store}
	return g.Genotype(ctx, resolved, sites, s.Config.GenotyperConfig, out, res)
}

// Call runs the full three-step pipeline over ranges in one request:
// discover, merge across ranges, unify, then genotype the resulting sites.
// samples == nil selects every sample in s.Samples.
func (s *Service) Call(ctx context.Context, samples []string, ranges []coord.Range, out genotype.OutputSink, res genotype.ResidualSink) error {
	maps, err := s.Discover(ctx, samples, ranges)
	if err != nil {
		return err
	}
	merged := make(discover.AlleleMap)
	for _, m := range maps {
		merged.Merge(m)
	}
	result := s.Unify(merged)
	return s.Genotype(ctx, samples, result.Sites, out, res)
}
