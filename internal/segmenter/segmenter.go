// Package segmenter turns the linearized text of a thesis into an ordered set of
// named chapters bounded by heading lines.
//
// The pipeline is CropToStart, CropToEnd, CleanUpBreaks, JoinSplitHeaders,
// DetectHeaders and SplitChapters, always in that order. It performs no I/O.
package segmenter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrStructureNotFound is returned when the text has no abstract heading to start from.
var ErrStructureNotFound = errors.New("document structure not found")

// Uppercase is the character class of the Ukrainian uppercase alphabet used by every heading pattern.
const Uppercase = `А-ЯІЄЇ`

const (
	// SplitHeaderHeadMin is the minimum length of the first half of a heading broken by a page boundary.
	SplitHeaderHeadMin = 30
	// SplitHeaderTailMin is the minimum length of the second half.
	SplitHeaderTailMin = 5
	// HeaderMinLetters is the number of consecutive uppercase letters that make a line a heading.
	HeaderMinLetters = 5
)

const (
	documentStartExpr = `(?m)^\s*[0-9.]*\s*(РЕФЕРАТ|АНОТАЦІЯ)\s*$`
	documentEndExpr   = `(?m)^[0-9.]*\s*(СПИСОК\s+(ЛІТЕРАТУРИ|.*ДЖЕРЕЛ)|ПЕРЕЛІК\s+(ПОСИЛАНЬ|.*ДЖЕРЕЛ)|ВИКОРИСТАН.*ЛІТЕРАТУРА|ДЖЕРЕЛА)\s*$`
)

var breaksPattern = regexp.MustCompile(`(\s\n)+`)

// Options configures a Segmenter. The zero value is not usable; start from DefaultOptions.
type Options struct {
	DocumentStart *regexp.Regexp
	DocumentEnd   *regexp.Regexp
	SplitHeader   *regexp.Regexp
	Header        *regexp.Regexp

	// KeepTextWithoutEndAnchor returns the text unchanged when no bibliography
	// heading exists. By default such text crops to nothing.
	KeepTextWithoutEndAnchor bool
	// KeepTrailingChapter emits the span after the last heading as a chapter.
	// By default that span is dropped.
	KeepTrailingChapter bool
}

// DefaultOptions returns the heading patterns tuned for Ukrainian theses.
func DefaultOptions() Options {
	return Options{
		DocumentStart: regexp.MustCompile(documentStartExpr),
		DocumentEnd:   regexp.MustCompile(documentEndExpr),
		SplitHeader:   SplitHeaderPattern(SplitHeaderHeadMin, SplitHeaderTailMin),
		Header:        HeaderPattern(HeaderMinLetters),
	}
}

// SplitHeaderPattern matches an uppercase run of at least head characters, a single
// newline, and an uppercase run of at least tail characters.
func SplitHeaderPattern(head, tail int) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`([%[1]s, ]{%[2]d,})(\n)([%[1]s, ]{%[3]d,})`, Uppercase, head, tail))
}

// HeaderPattern matches a heading line: an optional numbering prefix followed by at
// least letters uppercase characters. A heading may continue over following uppercase lines.
func HeaderPattern(letters int) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`(?m)^\s*[0-9.]*\s*([%[1]s]{%[2]d,}[%[1]s, \n]*)\s*$`, Uppercase, letters))
}

// Header is a detected heading and the byte offset where its match starts.
type Header struct {
	Name   string
	Offset int
}

// Segmenter splits text into chapters. It is safe for concurrent use.
type Segmenter struct {
	opts Options
}

// New creates a Segmenter.
func New(opts Options) *Segmenter {
	return &Segmenter{opts: opts}
}

// Segment runs the whole pipeline over text.
func (s *Segmenter) Segment(text string) (ChapterMap, error) {
	cropped, err := CropToStart(s.opts.DocumentStart, text)
	if err != nil {
		return ChapterMap{}, err
	}
	cropped = CropToEnd(s.opts.DocumentEnd, cropped, s.opts.KeepTextWithoutEndAnchor)
	cleaned := JoinSplitHeaders(s.opts.SplitHeader, CleanUpBreaks(cropped))

	headers := DetectHeaders(s.opts.Header, cleaned)
	return SplitChapters(cleaned, headers, s.opts.KeepTrailingChapter), nil
}

// CropToStart returns text from the first line matching start onward.
func CropToStart(start *regexp.Regexp, text string) (string, error) {
	loc := start.FindStringIndex(text)
	if loc == nil {
		return "", ErrStructureNotFound
	}
	return text[loc[0]:], nil
}

// CropToEnd returns text up to and including the last line matching end.
// Without a match it returns "" unless keepUnanchored is set.
func CropToEnd(end *regexp.Regexp, text string, keepUnanchored bool) string {
	matches := end.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		if keepUnanchored {
			return text
		}
		return ""
	}
	return text[:matches[len(matches)-1][1]]
}

// CleanUpBreaks collapses runs of whitespace-terminated lines into a single newline.
func CleanUpBreaks(text string) string {
	return breaksPattern.ReplaceAllString(text, "\n")
}

// JoinSplitHeaders rejoins headings that a page boundary broke over two lines.
func JoinSplitHeaders(split *regexp.Regexp, text string) string {
	return split.ReplaceAllString(text, "${1} ${3}")
}

// DetectHeaders returns every heading in text in ascending offset order.
func DetectHeaders(header *regexp.Regexp, text string) []Header {
	var headers []Header
	for _, loc := range header.FindAllStringIndex(text, -1) {
		name := strings.TrimSpace(strings.ReplaceAll(text[loc[0]:loc[1]], "\n", ""))
		headers = append(headers, Header{Name: name, Offset: loc[0]})
	}
	return headers
}

// SplitChapters cuts text between consecutive headings. The text after the last
// heading is only emitted when keepTrailing is set.
func SplitChapters(text string, headers []Header, keepTrailing bool) ChapterMap {
	chapters := NewChapterMap()
	for i := 0; i+1 < len(headers); i++ {
		chapters.Set(headers[i].Name, cleanUpChapter(text[headers[i].Offset:headers[i+1].Offset]))
	}
	if keepTrailing && len(headers) > 0 {
		last := headers[len(headers)-1]
		chapters.Set(last.Name, cleanUpChapter(text[last.Offset:]))
	}
	return chapters
}

func cleanUpChapter(body string) string {
	return strings.ReplaceAll(body, "\n", " ")
}
