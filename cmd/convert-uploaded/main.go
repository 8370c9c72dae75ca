package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/thesisconverter/internal/config"
	"github.com/Lllllllleong/thesisconverter/internal/models"
	"github.com/Lllllllleong/thesisconverter/internal/services"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

var (
	uploadHandler *services.UploadHandler
	once          sync.Once
	initErr       error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("ConvertUploadedThesis", convertUploadedThesis)
}

// main is required by the Go Functions Framework.
func main() {}

// convertUploadedThesis is the Cloud Function entry point for GCS object-finalized events.
func convertUploadedThesis(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		uploadHandler, initErr = newUploadHandler(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent models.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// Task failures are logged by the tasks; only a failed lookup fails the invocation.
	_, err := uploadHandler.Process(ctx, gcsEvent)
	return err
}

// newUploadHandler builds the pipeline from THESIS_* environment variables.
// The clients live for the lifetime of the function instance.
func newUploadHandler(ctx context.Context) (*services.UploadHandler, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, err
	}
	pipeline, err := services.NewPipeline(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return pipeline.UploadHandler(), nil
}
