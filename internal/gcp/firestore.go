package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/thesisconverter/internal/models"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// NewFirestoreClient creates a Firestore client for the given project and database.
// An empty databaseID selects the default database.
func NewFirestoreClient(ctx context.Context, projectID, databaseID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// FirestoreDocuments reads and updates thesis records in one Firestore collection.
type FirestoreDocuments struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreDocuments binds a client to a collection.
func NewFirestoreDocuments(client *firestore.Client, collection string) *FirestoreDocuments {
	return &FirestoreDocuments{client: client, collection: collection}
}

// ListDocuments returns the IDs of every document in the collection, including
// documents that only exist as parents of subcollections.
func (s *FirestoreDocuments) ListDocuments(ctx context.Context) ([]string, error) {
	it := s.client.Collection(s.collection).DocumentRefs(ctx)
	var ids []string
	for {
		ref, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list documents in %s: %w", s.collection, err)
		}
		ids = append(ids, ref.ID)
	}
	return ids, nil
}

// ReadDocument fetches one record. Missing or mistyped fields are left empty.
// A listed ID without a stored document reads as an empty record.
func (s *FirestoreDocuments) ReadDocument(ctx context.Context, id string) (models.ThesisDocument, error) {
	snap, err := s.client.Collection(s.collection).Doc(id).Get(ctx)
	if err != nil {
		return readResult(id, nil, err)
	}
	return readResult(id, snap.Data(), nil)
}

func readResult(id string, data map[string]interface{}, err error) (models.ThesisDocument, error) {
	if status.Code(err) == codes.NotFound {
		return models.ThesisDocument{ID: id}, nil
	}
	if err != nil {
		return models.ThesisDocument{}, fmt.Errorf("failed to read document %s: %w", id, err)
	}
	return decodeDocument(id, data), nil
}

// UpdateChapters writes the chapter map and its order in a single update.
// A non-empty content is stored in the same write.
func (s *FirestoreDocuments) UpdateChapters(ctx context.Context, id string, chapters map[string]string, order []string, content string) error {
	updates := chapterUpdates(chapters, order, content)
	if _, err := s.client.Collection(s.collection).Doc(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update chapters of %s: %w", id, err)
	}
	return nil
}

// FindByBucketURL returns the IDs of documents whose bucketUrl is one of urls.
func (s *FirestoreDocuments) FindByBucketURL(ctx context.Context, urls []string) ([]string, error) {
	docs, err := s.client.Collection(s.collection).Where(models.FieldBucketURL, "in", urls).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query documents by bucketUrl: %w", err)
	}
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.Ref.ID)
	}
	return ids, nil
}

func chapterUpdates(chapters map[string]string, order []string, content string) []firestore.Update {
	updates := []firestore.Update{
		{Path: models.FieldChapters, Value: chapters},
		{Path: models.FieldChapterOrder, Value: order},
	}
	if content != "" {
		updates = append(updates, firestore.Update{Path: models.FieldContent, Value: content})
	}
	return updates
}

func decodeDocument(id string, data map[string]interface{}) models.ThesisDocument {
	doc := models.ThesisDocument{ID: id}

	if list, ok := data[models.FieldCollections].([]interface{}); ok {
		for _, v := range list {
			if s, ok := v.(string); ok {
				doc.Collections = append(doc.Collections, s)
			}
		}
	}

	if url, ok := data[models.FieldBucketURL].(string); ok {
		doc.BucketURL = &url
	}

	if raw, ok := data[models.FieldChapters]; ok && raw != nil {
		doc.Chapters = make(map[string]string)
		if m, ok := raw.(map[string]interface{}); ok {
			for name, body := range m {
				if s, ok := body.(string); ok {
					doc.Chapters[name] = s
				}
			}
		}
	}

	if list, ok := data[models.FieldChapterOrder].([]interface{}); ok {
		for _, v := range list {
			if s, ok := v.(string); ok {
				doc.ChapterOrder = append(doc.ChapterOrder, s)
			}
		}
	}

	return doc
}
