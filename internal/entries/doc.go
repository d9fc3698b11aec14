// Package entries persists the activity log in SQLite.
//
// One row exists per accepted screenshot. Rows are unique by (timestamp,
// filename); InsertIfAbsent turns a colliding insert into a no-op so callers
// can clean up the image they just wrote. After creation only the archival
// fields change, and only through UpdateArchivalFields or MarkArchived. The
// store never deletes rows.
//
// Embedding vectors are stored as little-endian float32 blobs. The first
// vector written fixes the dimension for the database; later vectors of a
// different length are dropped with a warning and the entry is kept without
// one.
//
// Schema changes bump schemaVersion in schema.go.
package entries
