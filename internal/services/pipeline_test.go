package services

import (
	"context"
	"errors"
	"testing"

	"github.com/Lllllllleong/thesisconverter/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFinder struct {
	ids  []string
	err  error
	urls []string
}

func (f *stubFinder) FindByBucketURL(ctx context.Context, urls []string) ([]string, error) {
	f.urls = urls
	return f.ids, f.err
}

func TestUploadHandlerConvertsReferencingDocuments(t *testing.T) {
	h := newHarness(t)
	h.addThesis("doc-1", thesisObject, thesisText)
	finder := &stubFinder{ids: []string{"doc-1"}}

	outcomes, err := NewUploadHandler(finder, h.converter(), sourceBucket).
		Process(context.Background(), models.GCSEvent{Bucket: sourceBucket, Name: thesisObject})
	require.NoError(t, err)

	assert.Equal(t, []Outcome{OutcomeConverted}, outcomes)
	assert.Equal(t, []string{
		"gs://theses-src/2023/ivanenko.pdf",
		"https://storage.googleapis.com/theses-src/2023/ivanenko.pdf",
	}, finder.urls)
	assert.True(t, h.documents.get("doc-1").Converted())
}

func TestUploadHandlerIgnoresUnrelatedEvents(t *testing.T) {
	tests := []struct {
		name  string
		event models.GCSEvent
	}{
		{name: "other bucket", event: models.GCSEvent{Bucket: "elsewhere", Name: thesisObject}},
		{name: "not a pdf", event: models.GCSEvent{Bucket: sourceBucket, Name: "2023/ivanenko.docx"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			finder := &stubFinder{ids: []string{"doc-1"}}

			outcomes, err := NewUploadHandler(finder, h.converter(), sourceBucket).Process(context.Background(), tt.event)
			require.NoError(t, err)
			assert.Empty(t, outcomes)
			assert.Nil(t, finder.urls, "no lookup for ignored events")
		})
	}
}

func TestUploadHandlerLookupFailure(t *testing.T) {
	h := newHarness(t)
	finder := &stubFinder{err: errors.New("deadline exceeded")}

	_, err := NewUploadHandler(finder, h.converter(), sourceBucket).
		Process(context.Background(), models.GCSEvent{Bucket: sourceBucket, Name: thesisObject})
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestUploadHandlerNoMatchingDocument(t *testing.T) {
	h := newHarness(t)

	outcomes, err := NewUploadHandler(&stubFinder{}, h.converter(), sourceBucket).
		Process(context.Background(), models.GCSEvent{Bucket: sourceBucket, Name: thesisObject})
	require.NoError(t, err)
	assert.Empty(t, outcomes)
	assert.Zero(t, h.extractor.calls.Load())
}
