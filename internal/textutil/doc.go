// Package textutil provides text processing utilities for release title
// normalization, token similarity, and filename sanitization.
//
// The primary use cases are:
//   - Folding titles to lowercase ASCII-comparable text (diacritics removed)
//   - Tokenizing titles and measuring overlap or cosine similarity
//   - Sanitizing filenames for blackhole drops
//
// Tokenization folds text, splits on non-alphanumeric characters, and filters
// tokens shorter than 3 characters.
package textutil
