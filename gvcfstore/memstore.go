package gvcfstore

import (
	"context"
	"sort"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/tfmorris/glnexus/coord"
	"github.com/tfmorris/glnexus/gvcf"
)

// MemStore is an in-memory Store backed by records supplied at
// construction time. It is only for tests, the same role
// bamprovider.NewFakeProvider plays for BAM/PAM code.
type MemStore struct {
	headers map[string]*gvcf.Header
	records map[string][]*gvcf.Record // sorted by (Beg, End) per sample

	// FailAt, if >= 0, causes the FailAt'th Store call made across the
	// lifetime of this MemStore (0-indexed, Header and Range calls both
	// count) to return FailErr instead of succeeding. It lets tests inject
	// an IOError at an arbitrary point to exercise fault propagation
	// (spec.md §8 property 6) without coordinating goroutine timing.
	FailAt  int
	FailErr error
	calls   int
	mu      sync.Mutex // guards calls
}

// NewMemStore builds a MemStore. headers and records are indexed by sample
// name; records need not be pre-sorted, NewMemStore sorts its own copy.
func NewMemStore(headers map[string]*gvcf.Header, records map[string][]*gvcf.Record) *MemStore {
	s := &MemStore{
		headers: headers,
		records: make(map[string][]*gvcf.Record, len(records)),
		FailAt:  -1,
	}
	for sample, recs := range records {
		cp := make([]*gvcf.Record, len(recs))
		copy(cp, recs)
		sort.Slice(cp, func(i, j int) bool {
			if cp[i].Range.Beg != cp[j].Range.Beg {
				return cp[i].Range.Beg < cp[j].Range.Beg
			}
			return cp[i].Range.End < cp[j].Range.End
		})
		s.records[sample] = cp
	}
	return s
}

func (s *MemStore) nextCallFails() error {
	s.mu.Lock()
	n := s.calls
	s.calls++
	s.mu.Unlock()
	if n == s.FailAt {
		if s.FailErr != nil {
			return s.FailErr
		}
		return errors.E(errors.IO, "injected failure")
	}
	return nil
}

// Header implements Store.
func (s *MemStore) Header(ctx context.Context, sample string) (*gvcf.Header, error) {
	if err := s.nextCallFails(); err != nil {
		return nil, err
	}
	hdr, ok := s.headers[sample]
	if !ok {
		return nil, errors.E(errors.NotExist, "gvcfstore", sample)
	}
	return hdr, nil
}

// Range implements Store.
func (s *MemStore) Range(ctx context.Context, sample string, hdr *gvcf.Header, r coord.Range, pred RecordPredicate) (RecordIterator, error) {
	if err := s.nextCallFails(); err != nil {
		return nil, err
	}
	all := s.records[sample]
	out := make([]*gvcf.Record, 0, len(all))
	for _, rec := range all {
		if !rec.Range.Overlaps(r) {
			continue
		}
		if pred != nil && !pred(rec) {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	return &memIterator{recs: out, idx: -1}, nil
}

// cloneRecord returns a defensive copy so that code under test cannot
// mutate the MemStore's backing records through a returned iterator.
func cloneRecord(r *gvcf.Record) *gvcf.Record {
	cp := *r
	cp.AltSeqs = append([]string(nil), r.AltSeqs...)
	cp.GT = append([][2]int32(nil), r.GT...)
	cp.AD = append([]uint32(nil), r.AD...)
	cp.MinDP = append([]uint32(nil), r.MinDP...)
	return &cp
}

type memIterator struct {
	recs []*gvcf.Record
	idx  int
	err  error
}

func (it *memIterator) Scan() bool {
	if it.err != nil || it.idx+1 >= len(it.recs) {
		return false
	}
	it.idx++
	return true
}

func (it *memIterator) Record() *gvcf.Record { return it.recs[it.idx] }
func (it *memIterator) Err() error           { return it.err }
func (it *memIterator) Close() error         { return it.err }
