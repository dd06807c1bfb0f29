// Package customformat evaluates pattern-based rules ("specifications") against
// candidate releases and reports which custom formats a release matches.
//
// A format matches when every one of its specifications holds after negation
// is applied; a format without specifications matches every release. The
// required flag is carried for catalog round-tripping only and does not change
// the outcome. Evaluation is pure and never panics: an invalid pattern simply
// does not match.
package customformat
