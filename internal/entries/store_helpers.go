package entries

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

const entryColumns = "id, timestamp, app_name, title, text, embedding, page_url, filename, display, fingerprint, archived, archived_filename, created_at"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id               string
		timestampMs      int64
		appName          string
		title            string
		text             sql.NullString
		embedding        []byte
		pageURL          sql.NullString
		filename         string
		display          int
		fingerprint      sql.NullString
		archived         int
		archivedFilename sql.NullString
		createdRaw       sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&timestampMs,
		&appName,
		&title,
		&text,
		&embedding,
		&pageURL,
		&filename,
		&display,
		&fingerprint,
		&archived,
		&archivedFilename,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:               id,
		Timestamp:        time.UnixMilli(timestampMs),
		AppName:          appName,
		Title:            title,
		Filename:         filename,
		Display:          display,
		Fingerprint:      fingerprint.String,
		Archived:         archived != 0,
		ArchivedFilename: archivedFilename.String,
	}
	if text.Valid {
		v := text.String
		entry.Text = &v
	}
	if pageURL.Valid {
		v := pageURL.String
		entry.PageURL = &v
	}
	if len(embedding) > 0 {
		vec, err := decodeVector(embedding)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", id, err)
		}
		entry.Embedding = vec
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		entry.CreatedAt = created
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableStringPtr(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func encodeVector(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
