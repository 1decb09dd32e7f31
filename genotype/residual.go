package genotype

import (
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// residualDoc is the on-disk shape of one Residual: a single YAML document,
// so that the residual stream parses as a sequence of documents. There is
// one document per residual allele, not one per site: a site with several
// residuals yields several consecutive documents with the same "site".
type residualDoc struct {
	Site   string `yaml:"site"`
	Sample string `yaml:"sample"`
	Allele string `yaml:"allele"`
	Range  string `yaml:"allele_range"`
	Reason string `yaml:"reason"`
}

// YAMLResidualWriter writes Residuals as a gzip-compressed stream of YAML
// documents, one per residual, separated by "---". klauspost/compress's
// gzip is a drop-in for compress/gzip with a materially faster encoder,
// worthwhile here since a large cohort's residual log can run to millions
// of lines.
type YAMLResidualWriter struct {
	gz  *gzip.Writer
	enc *yaml.Encoder
}

// NewYAMLResidualWriter wraps w. Close must be called to flush both the
// YAML encoder and the gzip footer.
func NewYAMLResidualWriter(w io.Writer) *YAMLResidualWriter {
	gz := gzip.NewWriter(w)
	return &YAMLResidualWriter{gz: gz, enc: yaml.NewEncoder(gz)}
}

// WriteResidual implements ResidualSink.
func (w *YAMLResidualWriter) WriteResidual(r Residual) error {
	err := w.enc.Encode(residualDoc{
		Site:   r.Site.String(),
		Sample: r.Sample,
		Allele: r.Allele.Seq,
		Range:  r.Allele.Range.String(),
		Reason: r.Reason,
	})
	if err != nil {
		return errors.Wrap(err, "couldn't encode residual")
	}
	return nil
}

// Close flushes the YAML encoder and the gzip writer, in that order.
func (w *YAMLResidualWriter) Close() error {
	if err := w.enc.Close(); err != nil {
		return errors.Wrap(err, "couldn't flush residual encoder")
	}
	if err := w.gz.Close(); err != nil {
		return errors.Wrap(err, "couldn't close residual gzip stream")
	}
	return nil
}
