// Package gvcfstore defines the abstract, read-only interface the joint
// calling core uses to pull per-sample gVCF records out of whatever
// durable storage backs them. It deliberately says nothing about bytes on
// disk (out of scope, spec.md §1); an implementation wrapping a real
// decoder lives outside this module, the same way bamprovider.Provider
// wraps either a .bam or a .pam file behind one interface
// (github.com/grailbio/bio/encoding/bamprovider).
package gvcfstore

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/tfmorris/glnexus/coord"
	"github.com/tfmorris/glnexus/gvcf"
)

// RecordPredicate optionally filters records returned by Range. A nil
// predicate accepts every record.
type RecordPredicate func(*gvcf.Record) bool

// Store is thread-safe for concurrent reads across distinct samples, the
// same guarantee bamprovider.Provider documents.
type Store interface {
	// Header returns the metadata describing sample's declared fields and
	// contig table. Error kinds: NotExist if sample is unknown, IO on a
	// transient read failure.
	Header(ctx context.Context, sample string) (*gvcf.Header, error)

	// Range returns an iterator over every record belonging to sample whose
	// genomic range overlaps r, sorted by (Beg, End), optionally filtered by
	// pred. hdr must be the Header previously returned for sample.
	Range(ctx context.Context, sample string, hdr *gvcf.Header, r coord.Range, pred RecordPredicate) (RecordIterator, error)
}

// RecordIterator iterates over gvcf.Records in ascending (Beg, End) order.
// It mirrors bamprovider.Iterator's Scan/Record/Err/Close contract.
type RecordIterator interface {
	// Scan advances to the next record and reports whether one exists. Once
	// Scan returns false, Err reports whether that was due to exhaustion
	// (nil) or a failure.
	Scan() bool

	// Record returns the current record. Valid only after Scan returns true.
	Record() *gvcf.Record

	// Err returns the first error encountered, or nil if iteration ran to
	// completion.
	Err() error

	// Close releases resources held by the iterator. It must be called
	// exactly once, and it returns the same error as Err.
	Close() error
}

// Kind aliases for the three non-OK outcomes a Store call can produce; OK is
// simply a nil error. These match spec.md §7 one-to-one.
const (
	IOError  = errors.IO
	Invalid  = errors.Invalid
	NotFound = errors.NotExist
)

// IsIOError reports whether err is a Store error of kind IOError.
func IsIOError(err error) bool { return kindOf(err) == IOError }

// IsInvalid reports whether err is a Store error of kind Invalid.
func IsInvalid(err error) bool { return kindOf(err) == Invalid }

// IsNotFound reports whether err is a Store error of kind NotFound.
func IsNotFound(err error) bool { return kindOf(err) == NotFound }

func kindOf(err error) errors.Kind {
	if e, ok := err.(*errors.Error); ok {
		return e.Kind
	}
	return errors.Other
}
