// Package language detects and compares release languages. Titles, custom
// format specifications and source metadata may name a language by ISO code
// or by word; Equal treats all of those forms alike.
package language
