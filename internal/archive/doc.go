// Package archive migrates cold screenshots into compressed, date-partitioned
// archive units and reads them back.
//
// A unit lives at <archive_dir>/<YYYY-MM-DD>/<filename>.zst and holds an
// 8-byte header ("GLZ1" plus four reserved bytes), the original size as a
// little-endian uint64, and one zstd frame. The Archiver runs at most one pass
// at a time; entries whose file could not be archived stay loose and are
// retried on the next pass.
package archive
