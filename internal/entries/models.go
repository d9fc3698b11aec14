package entries

import (
	"errors"
	"time"
)

// ErrNotFound reports a lookup for an entry id that does not exist.
var ErrNotFound = errors.New("entry not found")

// Entry is one record of the activity log.
type Entry struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	AppName          string    `json:"app_name"`
	Title            string    `json:"title"`
	Text             *string   `json:"text,omitempty"`
	Embedding        []float32 `json:"-"`
	PageURL          *string   `json:"page_url,omitempty"`
	Filename         string    `json:"filename"`
	Display          int       `json:"display"`
	Fingerprint      string    `json:"fingerprint,omitempty"`
	Archived         bool      `json:"archived"`
	ArchivedFilename string    `json:"archived_filename,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// HasText reports whether OCR produced text for the entry.
func (e Entry) HasText() bool {
	return e.Text != nil && *e.Text != ""
}

// Filter selects entries for Query. Zero values mean "no constraint".
type Filter struct {
	// Since is inclusive, Until exclusive.
	Since time.Time
	Until time.Time
	// Archived restricts to archived (true) or loose (false) entries.
	Archived *bool
	AppName  string
	// Text matches a case-insensitive substring of title, text or app name.
	Text       string
	Limit      int
	Offset     int
	Descending bool
}

// ArchivalUpdate marks one entry archived under ArchivedFilename.
type ArchivalUpdate struct {
	ID               string
	ArchivedFilename string
}

// Stats summarizes the store.
type Stats struct {
	Total         int       `json:"total"`
	Archived      int       `json:"archived"`
	WithText      int       `json:"with_text"`
	WithEmbedding int       `json:"with_embedding"`
	EmbeddingDim  int       `json:"embedding_dim,omitempty"`
	Oldest        time.Time `json:"oldest,omitempty"`
	Newest        time.Time `json:"newest,omitempty"`
}

// Bool returns a pointer to v, for Filter.Archived.
func Bool(v bool) *bool { return &v }
