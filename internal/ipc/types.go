package ipc

import (
	"time"

	"glimpse/internal/archive"
	"glimpse/internal/daemon"
	"glimpse/internal/entries"
)

// ServiceName is the RPC receiver name; methods are called as "Glimpse.<Method>".
const ServiceName = "Glimpse"

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse carries the daemon status.
type StatusResponse struct {
	daemon.Status
}

// PauseRequest suspends periodic capture.
type PauseRequest struct{}

// PauseResponse reports whether capture is enabled after the call.
type PauseResponse struct {
	Enabled bool `json:"enabled"`
}

// ResumeRequest re-enables periodic capture.
type ResumeRequest struct{}

// ResumeResponse reports whether capture is enabled after the call.
type ResumeResponse struct {
	Enabled bool `json:"enabled"`
}

// CaptureNowRequest captures every display immediately.
type CaptureNowRequest struct{}

// CaptureNowResponse reports the outcome of an ad-hoc capture. Stored is
// false when any display failed; Message then names the first failure.
type CaptureNowResponse struct {
	Stored  bool   `json:"stored"`
	Message string `json:"message,omitempty"`
}

// ArchiveNowRequest runs one archive pass.
type ArchiveNowRequest struct{}

// ArchiveNowResponse reports the pass. AlreadyRunning is set instead of an
// error when another pass holds the archiver.
type ArchiveNowResponse struct {
	Report         archive.Report `json:"report"`
	AlreadyRunning bool           `json:"already_running"`
}

// EntriesRequest filters the entry listing.
type EntriesRequest struct {
	Since     time.Time `json:"since,omitempty"`
	Until     time.Time `json:"until,omitempty"`
	AppName   string    `json:"app_name,omitempty"`
	Text      string    `json:"text,omitempty"`
	Archived  *bool     `json:"archived,omitempty"`
	Limit     int       `json:"limit"`
	Offset    int       `json:"offset"`
	Ascending bool      `json:"ascending"`
}

// Filter converts the request into a store filter.
func (r EntriesRequest) Filter() entries.Filter {
	return entries.Filter{
		Since:      r.Since,
		Until:      r.Until,
		AppName:    r.AppName,
		Text:       r.Text,
		Archived:   r.Archived,
		Limit:      r.Limit,
		Offset:     r.Offset,
		Descending: !r.Ascending,
	}
}

// EntriesResponse lists entries.
type EntriesResponse struct {
	Entries []entries.Entry `json:"entries"`
}

// SearchRequest runs a substring search over title, text and app name.
type SearchRequest struct {
	Text  string `json:"text"`
	Limit int    `json:"limit"`
}

// EntryRequest fetches one entry by id.
type EntryRequest struct {
	ID string `json:"id"`
}

// EntryResponse carries one entry.
type EntryResponse struct {
	Entry entries.Entry `json:"entry"`
}

// LogTailRequest describes a log tail request.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse contains log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}
