package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Partition splits items into consecutive batches of at most size elements.
// The last batch holds the remainder. A size below 1 yields a single batch.
func Partition[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size < 1 {
		size = len(items)
	}
	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}

// RunSummary counts task outcomes of one orchestrated run.
type RunSummary struct {
	RunID     string
	Documents int
	Batches   int
	Converted int
	Skipped   int
	Failed    int
}

func (s *RunSummary) add(o Outcome) {
	switch o {
	case OutcomeConverted:
		s.Converted++
	case OutcomeSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
}

// BatchOrchestrator lists every document and converts them batch by batch.
// A batch runs on a bounded worker pool and must finish before the next starts.
type BatchOrchestrator struct {
	documents DocumentStore
	converter *Converter
	batchSize int
	workers   int
}

// NewBatchOrchestrator creates a BatchOrchestrator.
func NewBatchOrchestrator(documents DocumentStore, converter *Converter, batchSize, workers int) *BatchOrchestrator {
	if workers < 1 {
		workers = 1
	}
	return &BatchOrchestrator{
		documents: documents,
		converter: converter,
		batchSize: batchSize,
		workers:   workers,
	}
}

// Run processes the whole collection. Per-document failures are only counted;
// the returned error is reserved for a failed listing or a cancelled context.
func (o *BatchOrchestrator) Run(ctx context.Context) (RunSummary, error) {
	summary := RunSummary{RunID: uuid.NewString()}
	logCtx := slog.With("runId", summary.RunID)

	ids, err := o.documents.ListDocuments(ctx)
	if err != nil {
		logCtx.Error("Failed to list documents.", "error", err)
		return summary, fmt.Errorf("%w: failed to list documents: %w", ErrPersistence, err)
	}

	batches := Partition(ids, o.batchSize)
	summary.Documents = len(ids)
	logCtx.Info("Listed documents.", "documentCount", len(ids), "batchCount", len(batches), "batchSize", o.batchSize, "workers", o.workers)

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			logCtx.Warn("Run cancelled before all batches were processed.", "processedBatches", summary.Batches, "error", err)
			return summary, err
		}

		for _, outcome := range o.runBatch(ctx, logCtx, batch) {
			summary.add(outcome)
		}
		summary.Batches++
		logCtx.Info("Batch complete.", "batch", i+1, "of", len(batches), "size", len(batch))
	}

	logCtx.Info("Run complete.",
		"documents", summary.Documents,
		"batches", summary.Batches,
		"converted", summary.Converted,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary, nil
}

// runBatch runs one task per document and waits for all of them.
func (o *BatchOrchestrator) runBatch(ctx context.Context, logCtx *slog.Logger, batch []string) []Outcome {
	outcomes := make([]Outcome, len(batch))

	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, id := range batch {
		i, id := i, id
		g.Go(func() error {
			outcomes[i] = o.converter.NewTask(id, logCtx).Run(ctx)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}
