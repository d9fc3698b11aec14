// Package enrich turns an accepted frame into a stored entry.
//
// The Enricher downscales and encodes the frame, writes it to the screenshots
// directory, runs the optional OCR and embedding collaborators, derives a
// title and inserts the entry. OCR and embedding failures only cost the entry
// its text or vector; a duplicate insert removes the file it just wrote.
package enrich
