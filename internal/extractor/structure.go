package extractor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// breakTags are structure elements whose start begins a new line of text.
var breakTags = map[string]bool{
	"Title": true, "H": true, "H1": true, "H2": true, "H3": true, "H4": true, "H5": true, "H6": true,
	"P": true, "LBody": true, "Caption": true, "TOCI": true,
}

// StructureExtractor reads the tagged structure tree of a PDF through poppler's
// `pdfinfo -struct-text` and keeps only its text content.
type StructureExtractor struct {
	pdfinfoPath string
}

// NewStructureExtractor creates a StructureExtractor that runs the given pdfinfo binary.
func NewStructureExtractor(pdfinfoPath string) *StructureExtractor {
	return &StructureExtractor{pdfinfoPath: pdfinfoPath}
}

// Extract implements TextExtractor.
func (e *StructureExtractor) Extract(ctx context.Context, pdfPath string) (text string, err error) {
	if _, err := inspectPDF(pdfPath); err != nil {
		return "", err
	}

	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: structure text panic: %v", ErrExtraction, r)
		}
	}()

	cmd := exec.CommandContext(ctx, e.pdfinfoPath, "-struct-text", pdfPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%w: pdfinfo failed: %v (stderr: %s)", ErrExtraction, err, strings.TrimSpace(stderr.String()))
	}

	text = StructTextToPlain(string(out))
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: document has no tagged structure", ErrExtraction)
	}
	return text, nil
}

// StructTextToPlain converts `pdfinfo -struct-text` output to plain text.
// Quoted lines are content and a quote left open continues over the following
// lines. Block-level tags start new lines, attribute lines are dropped, and
// every Table subtree is skipped.
func StructTextToPlain(structText string) string {
	var sb strings.Builder
	skipping := false
	skipIndent := 0
	inQuote := false

	scanner := bufio.NewScanner(strings.NewReader(structText))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		if inQuote {
			content, closed := strings.CutSuffix(strings.TrimSpace(line), `"`)
			inQuote = !closed
			if !skipping && content != "" {
				sb.WriteByte('\n')
				sb.WriteString(content)
			}
			continue
		}

		trimmed := strings.TrimLeft(line, " ")
		fields := strings.Fields(trimmed)
		if len(fields) == 0 {
			continue
		}
		indent := len(line) - len(trimmed)

		if skipping {
			if indent > skipIndent {
				inQuote = opensQuote(trimmed)
				continue
			}
			skipping = false
		}

		switch {
		case strings.HasPrefix(trimmed, `"`):
			inQuote = opensQuote(trimmed)
			content := strings.TrimPrefix(strings.TrimSpace(trimmed), `"`)
			content = strings.TrimSuffix(content, `"`)
			sb.WriteString(content)
		case strings.HasPrefix(trimmed, "/"):
			// attribute of the enclosing element
		default:
			tag := strings.TrimSuffix(fields[0], ":")
			if tag == "Table" {
				skipping, skipIndent = true, indent
				continue
			}
			if breakTags[tag] {
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String()
}

// opensQuote reports whether a quoted content line lacks its closing quote.
func opensQuote(trimmed string) bool {
	t := strings.TrimSpace(trimmed)
	return strings.HasPrefix(t, `"`) && (len(t) == 1 || !strings.HasSuffix(t, `"`))
}
