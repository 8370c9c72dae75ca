// Package extractor turns a PDF on local disk into linearized plain text.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrExtraction wraps every failure to read text out of a PDF.
var ErrExtraction = errors.New("text extraction failed")

// Back-end names accepted by New.
const (
	KindText      = "text"
	KindStructure = "struct"
)

// Default fractions of the page height excluded from the top and bottom of every page.
const (
	DefaultHeaderBand = 0.067
	DefaultFooterBand = 0.067
)

// DefaultPdfinfoPath is where poppler's pdfinfo is usually installed.
const DefaultPdfinfoPath = "/usr/bin/pdfinfo"

// TextExtractor returns the plain text of the PDF at pdfPath.
type TextExtractor interface {
	Extract(ctx context.Context, pdfPath string) (string, error)
}

// Options selects and configures a back-end.
type Options struct {
	Kind        string
	PdfinfoPath string
	HeaderBand  float64
	FooterBand  float64
}

// New returns the back-end named by opts.Kind.
func New(opts Options) (TextExtractor, error) {
	switch opts.Kind {
	case KindText, "":
		if opts.HeaderBand < 0 || opts.FooterBand < 0 || opts.HeaderBand+opts.FooterBand >= 1 {
			return nil, fmt.Errorf("invalid header/footer bands %v/%v", opts.HeaderBand, opts.FooterBand)
		}
		return NewBandedExtractor(opts.HeaderBand, opts.FooterBand), nil
	case KindStructure:
		path := opts.PdfinfoPath
		if path == "" {
			path = DefaultPdfinfoPath
		}
		return NewStructureExtractor(path), nil
	default:
		return nil, fmt.Errorf("unknown extractor %q", opts.Kind)
	}
}

// inspectPDF validates the file in relaxed mode and returns its page count.
func inspectPDF(pdfPath string) (int, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("%w: could not open %s: %v", ErrExtraction, pdfPath, err)
	}
	defer f.Close()

	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	pageCount, err := api.PageCount(f, cfg)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid PDF: %v", ErrExtraction, err)
	}
	if pageCount == 0 {
		return 0, fmt.Errorf("%w: document has no pages", ErrExtraction)
	}
	return pageCount, nil
}
