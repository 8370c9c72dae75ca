package models

import "strings"

// Firestore field names of a thesis record.
const (
	FieldCollections  = "collections"
	FieldBucketURL    = "bucketUrl"
	FieldChapters     = "chapters"
	FieldChapterOrder = "chapterOrder"
	FieldContent      = "content"
)

// Collections whose documents are theses and get converted.
const (
	BachelorTheses = "Бакалаврські роботи"
	MasterTheses   = "Магістерські роботи"
)

// AllowedCollections lists every collection label eligible for conversion.
var AllowedCollections = []string{BachelorTheses, MasterTheses}

// ThesisDocument is the part of an archive record in Firestore that conversion reads.
type ThesisDocument struct {
	ID           string            `firestore:"-"`
	Collections  []string          `firestore:"collections,omitempty"`
	BucketURL    *string           `firestore:"bucketUrl,omitempty"`
	Chapters     map[string]string `firestore:"chapters,omitempty"`
	ChapterOrder []string          `firestore:"chapterOrder,omitempty"`
	Content      string            `firestore:"content,omitempty"`
}

// Converted reports whether chapters have already been written for this document.
func (d ThesisDocument) Converted() bool {
	return d.Chapters != nil
}

// InAllowedCollection reports whether the document belongs to at least one thesis collection.
func (d ThesisDocument) InAllowedCollection() bool {
	for _, c := range d.Collections {
		for _, allowed := range AllowedCollections {
			if c == allowed {
				return true
			}
		}
	}
	return false
}

// HasPDF reports whether the document points at a PDF object.
func (d ThesisDocument) HasPDF() bool {
	return d.BucketURL != nil && strings.HasSuffix(*d.BucketURL, ".pdf")
}
