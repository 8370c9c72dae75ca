package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// a4Height is used when a page carries no usable MediaBox.
const a4Height = 842.0

// BandedExtractor reads page text row by row and drops rows that fall inside the
// running header or footer band of the page.
type BandedExtractor struct {
	headerBand float64
	footerBand float64
}

// NewBandedExtractor creates a BandedExtractor. Bands are fractions of the page height.
func NewBandedExtractor(headerBand, footerBand float64) *BandedExtractor {
	return &BandedExtractor{headerBand: headerBand, footerBand: footerBand}
}

// Extract implements TextExtractor.
func (e *BandedExtractor) Extract(ctx context.Context, pdfPath string) (text string, err error) {
	if _, err := inspectPDF(pdfPath); err != nil {
		return "", err
	}

	// ledongthuc/pdf panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: pdf reader panic: %v", ErrExtraction, r)
		}
	}()

	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %v", ErrExtraction, err)
	}
	defer f.Close()

	cache := newBoundsCache(e.headerBand, e.footerBand)
	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %v", ErrExtraction, i, err)
		}

		box := mediaBox(page)
		bounds := cache.get(box.height())
		for _, row := range rows {
			if !bounds.contains(box.fromTop(float64(row.Position))) {
				continue
			}
			sb.WriteString(joinRow(row.Content))
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}

type pageBox struct {
	bottom float64
	top    float64
}

func (b pageBox) height() float64 {
	return b.top - b.bottom
}

// fromTop converts a PDF y coordinate (origin at the bottom) into the distance from the top edge.
func (b pageBox) fromTop(y float64) float64 {
	return b.top - y
}

// mediaBox reads the page MediaBox, following Parent links for inherited boxes.
func mediaBox(page pdf.Page) pageBox {
	for v := page.V; !v.IsNull(); v = v.Key("Parent") {
		box := v.Key("MediaBox")
		if box.Len() == 4 {
			bottom, top := box.Index(1).Float64(), box.Index(3).Float64()
			if top > bottom {
				return pageBox{bottom: bottom, top: top}
			}
		}
	}
	return pageBox{bottom: 0, top: a4Height}
}

type bounds struct {
	header float64
	footer float64
}

// contains reports whether a row at the given distance from the top lies between the bands.
func (b bounds) contains(fromTop float64) bool {
	return fromTop > b.header && fromTop < b.footer
}

// boundsCache memoizes band limits per page height for one extraction.
type boundsCache struct {
	headerBand float64
	footerBand float64
	byHeight   map[float64]bounds
}

func newBoundsCache(headerBand, footerBand float64) *boundsCache {
	return &boundsCache{headerBand: headerBand, footerBand: footerBand, byHeight: make(map[float64]bounds)}
}

func (c *boundsCache) get(height float64) bounds {
	if b, ok := c.byHeight[height]; ok {
		return b
	}
	b := bounds{header: height * c.headerBand, footer: height * (1 - c.footerBand)}
	c.byHeight[height] = b
	return b
}

// joinRow concatenates the glyph runs of a row, inserting a space where the
// horizontal gap between runs is wider than a fraction of the font size.
func joinRow(texts pdf.TextHorizontal) string {
	var sb strings.Builder
	var prevEnd float64
	for i, t := range texts {
		if i > 0 && t.X-prevEnd > t.FontSize*0.2 && !strings.HasSuffix(sb.String(), " ") && !strings.HasPrefix(t.S, " ") {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.S)
		prevEnd = t.X + t.W
	}
	return sb.String()
}
