// Package textutil provides small text helpers shared by title derivation,
// OCR post-processing and the embedding client: Unicode normalization,
// whitespace collapsing and rune-safe truncation.
package textutil
