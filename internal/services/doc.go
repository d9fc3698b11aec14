// Package services defines shared utilities consumed by the capture pipeline,
// the archiver and the external collaborators (OCR, embeddings).
//
// Key responsibilities:
//   - Context helpers that stamp cycle IDs, display indexes, triggers and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper, and Classify which maps a
//     failure onto the pipeline's handling classes (transient per item versus
//     resource unavailable for the whole operation).
//
// Collaborator clients live in subpackages (ocr, embedding).
package services
