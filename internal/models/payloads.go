package models

// GCSEvent is the data payload of a Cloud Storage object-finalized CloudEvent.
type GCSEvent struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
}
