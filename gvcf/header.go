package gvcf

import "github.com/tfmorris/glnexus/coord"

// Header describes the metadata a sample's records are interpreted
// against: the sample names carried by that sample's file (usually one,
// but gVCFs may be multi-sample), the contig table their Ranges are
// indexed into, and which FORMAT fields the file declares. It is fetched
// once per sample via gvcfstore.Store.Header and threaded explicitly
// through every subsequent Range/depth call — never cached as a package
// global, per this module's immutable-header design (see SPEC_FULL.md §3
// and §6).
type Header struct {
	SampleNames []string
	Contigs     *coord.Table

	// DeclaredFormatFields records which FORMAT fields the file declares,
	// as reported by HasFormatField. Package depth does not consult it: a
	// record with AD absent is tolerated under the INFO/DP==0 legacy
	// workaround whether or not AD is declared.
	DeclaredFormatFields map[string]bool
}

// HasFormatField reports whether the header declares the named FORMAT
// field.
func (h *Header) HasFormatField(name string) bool {
	return h.DeclaredFormatFields[name]
}

// SampleIndex returns the position of name within SampleNames, or -1.
func (h *Header) SampleIndex(name string) int {
	for i, n := range h.SampleNames {
		if n == name {
			return i
		}
	}
	return -1
}
