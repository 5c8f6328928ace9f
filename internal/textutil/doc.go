// Package textutil provides text processing utilities for title matching,
// similarity, and filename sanitization.
//
// The primary use cases are:
//   - Normalizing track and search result titles for catalog matching
//   - Creating token-based fingerprints and cosine similarity scores
//   - Sanitizing filenames and path segments for safe filesystem use
//
// The tokenization process lowercases text, splits on non-alphanumeric
// characters, and filters tokens shorter than 3 characters.
package textutil
