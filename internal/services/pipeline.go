package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/thesisconverter/internal/config"
	"github.com/Lllllllleong/thesisconverter/internal/extractor"
	"github.com/Lllllllleong/thesisconverter/internal/gcp"
	"github.com/Lllllllleong/thesisconverter/internal/models"
	"github.com/Lllllllleong/thesisconverter/internal/segmenter"
)

// Pipeline wires the Google Cloud clients, the extractor and the segmenter
// into a Converter for one configuration.
type Pipeline struct {
	config          *config.Config
	firestoreClient *firestore.Client
	storageClient   *storage.Client
	documents       *gcp.FirestoreDocuments
	converter       *Converter
}

// NewPipeline validates cfg and creates the clients it needs. Call Close when done.
func NewPipeline(ctx context.Context, cfg *config.Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ext, err := extractor.New(cfg.ExtractorOptions())
	if err != nil {
		return nil, err
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID, cfg.DatabaseID)
	if err != nil {
		return nil, err
	}

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		firestoreClient.Close()
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	documents := gcp.NewFirestoreDocuments(firestoreClient, cfg.CollectionID)
	converter := NewConverter(
		documents,
		gcp.NewGCSObjects(storageClient),
		ext,
		segmenter.New(cfg.SegmenterOptions()),
		ConverterConfig{
			SourceBucket:     cfg.SourceBucket,
			TargetBucket:     cfg.TargetBucket,
			Retries:          cfg.Retries,
			ScratchRoot:      cfg.ScratchRoot,
			ArchiveText:      cfg.ArchiveText,
			CleanupOnFailure: cfg.CleanupOnFailure,
			AttemptTimeout:   cfg.AttemptTimeout,
		},
	)

	return &Pipeline{
		config:          cfg,
		firestoreClient: firestoreClient,
		storageClient:   storageClient,
		documents:       documents,
		converter:       converter,
	}, nil
}

// Orchestrator returns the batch orchestrator over the whole collection.
func (p *Pipeline) Orchestrator() *BatchOrchestrator {
	return NewBatchOrchestrator(p.documents, p.converter, p.config.BatchSize, p.config.Workers)
}

// UploadHandler returns the handler for single-object upload events.
func (p *Pipeline) UploadHandler() *UploadHandler {
	return NewUploadHandler(p.documents, p.converter, p.config.SourceBucket)
}

// Close releases both clients.
func (p *Pipeline) Close() error {
	return errors.Join(p.firestoreClient.Close(), p.storageClient.Close())
}

// DocumentFinder looks up records by the object they point at.
type DocumentFinder interface {
	FindByBucketURL(ctx context.Context, urls []string) ([]string, error)
}

// UploadHandler converts the records referencing a newly uploaded PDF.
type UploadHandler struct {
	finder       DocumentFinder
	converter    *Converter
	sourceBucket string
}

// NewUploadHandler creates an UploadHandler.
func NewUploadHandler(finder DocumentFinder, converter *Converter, sourceBucket string) *UploadHandler {
	return &UploadHandler{finder: finder, converter: converter, sourceBucket: sourceBucket}
}

// Process runs one ConversionTask per record whose bucketUrl names the uploaded object.
// Events for other buckets or non-PDF objects are ignored. Only a failed lookup is
// returned as an error; task failures are logged like in a batch run.
func (h *UploadHandler) Process(ctx context.Context, event models.GCSEvent) ([]Outcome, error) {
	logCtx := slog.With("bucket", event.Bucket, "gcsObject", event.Name)

	if event.Bucket != h.sourceBucket {
		logCtx.Info("Ignoring upload outside the source bucket.", "sourceBucket", h.sourceBucket)
		return nil, nil
	}
	if !strings.HasSuffix(event.Name, ".pdf") {
		logCtx.Info("Ignoring non-PDF upload.", "contentType", event.ContentType)
		return nil, nil
	}

	ids, err := h.finder.FindByBucketURL(ctx, gcp.BucketURLs(event.Bucket, event.Name))
	if err != nil {
		logCtx.Error("Failed to look up documents for upload.", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if len(ids) == 0 {
		logCtx.Info("No document references the uploaded object.")
		return nil, nil
	}

	outcomes := make([]Outcome, 0, len(ids))
	for _, id := range ids {
		outcomes = append(outcomes, h.converter.NewTask(id, logCtx).Run(ctx))
	}
	return outcomes, nil
}
