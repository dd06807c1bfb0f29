// Package release models candidate releases returned by release sources and
// derives the attributes the decision engine scores on.
//
// Sources supply whatever they know (size, seeders, indexer flags, info hash);
// Parse fills the rest from the release title: resolution, source, quality
// name, language, release group and release kind. ContentHash gives every
// release a stable identity for blocklisting and de-duplication.
package release
