package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Lllllllleong/thesisconverter/internal/extractor"
	"github.com/Lllllllleong/thesisconverter/internal/models"
)

const sourceBucket = "theses-src"

// memoryDocuments is an in-memory DocumentStore.
type memoryDocuments struct {
	mu        sync.Mutex
	docs      map[string]models.ThesisDocument
	listed    []string
	reads     map[string]int
	updates   int
	readErr   error
	updateErr error
	listErr   error
}

func newMemoryDocuments() *memoryDocuments {
	return &memoryDocuments{
		docs:  make(map[string]models.ThesisDocument),
		reads: make(map[string]int),
	}
}

func (m *memoryDocuments) put(doc models.ThesisDocument) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc
}

func (m *memoryDocuments) get(id string) models.ThesisDocument {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[id]
}

func (m *memoryDocuments) readCount(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads[id]
}

func (m *memoryDocuments) ListDocuments(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	ids := make([]string, 0, len(m.docs)+len(m.listed))
	for id := range m.docs {
		ids = append(ids, id)
	}
	ids = append(ids, m.listed...)
	sort.Strings(ids)
	return ids, nil
}

func (m *memoryDocuments) ReadDocument(ctx context.Context, id string) (models.ThesisDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads[id]++
	if m.readErr != nil {
		return models.ThesisDocument{}, m.readErr
	}
	doc, ok := m.docs[id]
	if !ok {
		return models.ThesisDocument{ID: id}, nil
	}
	return doc, nil
}

func (m *memoryDocuments) UpdateChapters(ctx context.Context, id string, chapters map[string]string, order []string, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updates++
	doc := m.docs[id]
	doc.Chapters = chapters
	doc.ChapterOrder = order
	if content != "" {
		doc.Content = content
	}
	m.docs[id] = doc
	return nil
}

// memoryObjects is an in-memory ObjectStore keyed by "bucket/object".
type memoryObjects struct {
	mu      sync.Mutex
	objects map[string]string
	opens   int
	openErr error
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: make(map[string]string)}
}

func (m *memoryObjects) put(bucket, object, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+object] = content
}

func (m *memoryObjects) get(bucket, object string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.objects[bucket+"/"+object]
	return content, ok
}

func (m *memoryObjects) OpenRead(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens++
	if m.openErr != nil {
		return nil, m.openErr
	}
	content, ok := m.objects[bucket+"/"+object]
	if !ok {
		return nil, fmt.Errorf("object gs://%s/%s does not exist", bucket, object)
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func (m *memoryObjects) WriteIfAbsent(ctx context.Context, bucket, object, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := bucket + "/" + object
	if _, ok := m.objects[key]; !ok {
		m.objects[key] = content
	}
	return nil
}

// fileExtractor returns the scratch file's bytes as the extracted text and
// records when each document's extraction starts and ends.
type fileExtractor struct {
	calls    atomic.Int32
	failures int32
	err      error
	inFlight atomic.Int32
	maxSeen  atomic.Int32

	mu     sync.Mutex
	events []string
}

func (e *fileExtractor) record(event string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *fileExtractor) Extract(ctx context.Context, pdfPath string) (string, error) {
	call := e.calls.Add(1)
	n := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		seen := e.maxSeen.Load()
		if n <= seen || e.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	documentID := filepath.Base(filepath.Dir(pdfPath))
	e.record("start:" + documentID)
	defer e.record("end:" + documentID)

	if e.err != nil && call <= e.failures {
		return "", e.err
	}
	if filepath.Base(pdfPath) != sourceFileName {
		return "", errors.New("unexpected scratch file name")
	}
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", extractor.ErrExtraction, err)
	}
	return string(data), nil
}

func strPtr(s string) *string { return &s }

func thesisRecord(id, object string) models.ThesisDocument {
	return models.ThesisDocument{
		ID:          id,
		Collections: []string{models.BachelorTheses},
		BucketURL:   strPtr("gs://" + sourceBucket + "/" + object),
	}
}
