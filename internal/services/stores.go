package services

import (
	"context"
	"errors"
	"io"

	"github.com/Lllllllleong/thesisconverter/internal/models"
)

// Failure kinds of a conversion attempt. Extraction failures use extractor.ErrExtraction
// and unparseable documents use segmenter.ErrStructureNotFound.
var (
	ErrIO          = errors.New("storage I/O failed")
	ErrPersistence = errors.New("metadata store operation failed")
)

// DocumentStore is the metadata store holding thesis records. Reading an ID
// with no stored record returns an empty ThesisDocument and no error.
type DocumentStore interface {
	ListDocuments(ctx context.Context) ([]string, error)
	ReadDocument(ctx context.Context, id string) (models.ThesisDocument, error)
	UpdateChapters(ctx context.Context, id string, chapters map[string]string, order []string, content string) error
}

// ObjectStore is the object storage holding source PDFs and text archives.
type ObjectStore interface {
	OpenRead(ctx context.Context, bucket, object string) (io.ReadCloser, error)
	WriteIfAbsent(ctx context.Context, bucket, object, content string) error
}
