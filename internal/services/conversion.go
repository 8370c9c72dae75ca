package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/Lllllllleong/thesisconverter/internal/extractor"
	"github.com/Lllllllleong/thesisconverter/internal/gcp"
	"github.com/Lllllllleong/thesisconverter/internal/segmenter"
	"github.com/avast/retry-go/v4"
)

// sourceFileName is the name of the scratch copy of a document's PDF.
const sourceFileName = "source.pdf"

// Outcome is how a ConversionTask ended.
type Outcome int

const (
	OutcomeConverted Outcome = iota
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConverted:
		return "converted"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// ConverterConfig holds the per-run settings shared by every task.
type ConverterConfig struct {
	SourceBucket string
	TargetBucket string
	// Retries is the total number of attempts per document. Zero disables processing.
	Retries     int
	ScratchRoot string
	// ArchiveText stores the extracted text in TargetBucket before segmentation
	// and in the record's content field together with the chapters.
	ArchiveText bool
	// CleanupOnFailure removes the scratch directory after the last failed attempt.
	// By default it is kept for inspection.
	CleanupOnFailure bool
	// AttemptTimeout bounds a single attempt. Zero means no deadline.
	AttemptTimeout time.Duration
}

// Converter holds the collaborators shared by all conversion tasks of a run.
type Converter struct {
	documents DocumentStore
	objects   ObjectStore
	extractor extractor.TextExtractor
	segmenter *segmenter.Segmenter
	config    ConverterConfig
}

// NewConverter creates a Converter.
func NewConverter(documents DocumentStore, objects ObjectStore, ext extractor.TextExtractor, seg *segmenter.Segmenter, config ConverterConfig) *Converter {
	return &Converter{
		documents: documents,
		objects:   objects,
		extractor: ext,
		segmenter: seg,
		config:    config,
	}
}

// ConversionTask converts a single document. It owns a scratch directory
// named after the document ID for the lifetime of its attempts.
type ConversionTask struct {
	*Converter
	documentID string
	scratchDir string
	logCtx     *slog.Logger
}

// NewTask creates the task for one document. A nil logger uses slog's default.
func (c *Converter) NewTask(documentID string, logger *slog.Logger) *ConversionTask {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversionTask{
		Converter:  c,
		documentID: documentID,
		scratchDir: filepath.Join(c.config.ScratchRoot, documentID),
		logCtx:     logger.With("documentId", documentID),
	}
}

// Run attempts the conversion up to Retries times without delay between attempts.
// Failures never propagate: they are logged and reported as OutcomeFailed.
func (t *ConversionTask) Run(ctx context.Context) Outcome {
	t.logCtx.Info("Run task.")

	if t.config.Retries < 1 {
		t.logCtx.Warn("No attempts allowed, document left unconverted.", "retries", t.config.Retries)
		return OutcomeFailed
	}

	outcome := OutcomeFailed
	err := retry.Do(
		func() error {
			o, err := t.attempt(ctx)
			outcome = o
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(t.config.Retries)),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			t.logCtx.Warn("Attempt failed.", "attempt", n+1, "maxAttempts", t.config.Retries, "error", err)
		}),
	)
	if err == nil {
		return outcome
	}

	t.logCtx.Error("Task failed after all attempts.", "attempts", t.config.Retries, "error", err)
	if t.config.CleanupOnFailure {
		t.removeScratch()
	} else if _, statErr := os.Stat(t.scratchDir); statErr == nil {
		t.logCtx.Info("Keeping scratch directory for inspection.", "path", t.scratchDir)
	}
	return OutcomeFailed
}

// attempt runs gating and, when the document qualifies, the whole pipeline once.
func (t *ConversionTask) attempt(ctx context.Context) (Outcome, error) {
	if t.config.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.AttemptTimeout)
		defer cancel()
	}

	doc, err := t.documents.ReadDocument(ctx, t.documentID)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	switch {
	case doc.Converted():
		t.logCtx.Info("Skipped task.", "reason", "chapters already present")
		return OutcomeSkipped, nil
	case !doc.InAllowedCollection():
		t.logCtx.Info("Skipped task.", "reason", "not in a thesis collection", "collections", doc.Collections)
		return OutcomeSkipped, nil
	case !doc.HasPDF():
		t.logCtx.Info("Skipped task.", "reason", "bucketUrl missing or not a PDF")
		return OutcomeSkipped, nil
	}

	object, err := gcp.ObjectPath(*doc.BucketURL, t.config.SourceBucket)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("%w: %w", ErrIO, err)
	}

	t.logCtx.Info("Starting task.", "gcsObject", object)

	sourcePath, err := t.copyIntoScratch(ctx, object)
	if err != nil {
		return OutcomeFailed, err
	}

	text, err := t.extractor.Extract(ctx, sourcePath)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to extract text: %w", err)
	}

	if t.config.ArchiveText {
		archive := archiveObjectName(t.documentID, object)
		if err := t.objects.WriteIfAbsent(ctx, t.config.TargetBucket, archive, text); err != nil {
			return OutcomeFailed, fmt.Errorf("%w: failed to archive text: %w", ErrIO, err)
		}
	}

	chapters, err := t.segmenter.Segment(text)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to segment document: %w", err)
	}

	var content string
	if t.config.ArchiveText {
		content = text
	}
	if err := t.documents.UpdateChapters(ctx, t.documentID, chapters.Map(), chapters.Names(), content); err != nil {
		return OutcomeFailed, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	t.removeScratch()
	t.logCtx.Info("Finished task.", "chapterCount", chapters.Len())
	return OutcomeConverted, nil
}

// copyIntoScratch streams the source object into a fresh scratch file and returns its path.
func (t *ConversionTask) copyIntoScratch(ctx context.Context, object string) (string, error) {
	if err := os.MkdirAll(t.scratchDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: failed to create scratch directory: %w", ErrIO, err)
	}

	reader, err := t.objects.OpenRead(ctx, t.config.SourceBucket, object)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer reader.Close()

	destPath := filepath.Join(t.scratchDir, sourceFileName)
	localFile, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create scratch file at %s: %w", ErrIO, destPath, err)
	}
	if _, err := io.Copy(localFile, reader); err != nil {
		_ = localFile.Close()
		return "", fmt.Errorf("%w: failed to copy GCS object to scratch file: %w", ErrIO, err)
	}
	if err := localFile.Close(); err != nil {
		return "", fmt.Errorf("%w: failed to finalize scratch file: %w", ErrIO, err)
	}
	return destPath, nil
}

func (t *ConversionTask) removeScratch() {
	if err := os.RemoveAll(t.scratchDir); err != nil {
		t.logCtx.Warn("Failed to remove scratch directory.", "path", t.scratchDir, "error", err)
	}
}

// archiveObjectName places the text next to other archives of the same document,
// e.g. doc-1/ivanenko.txt for 2023/ivanenko.pdf.
func archiveObjectName(documentID, object string) string {
	base := strings.TrimSuffix(path.Base(object), path.Ext(object))
	return path.Join(documentID, base+".txt")
}
