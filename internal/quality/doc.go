// Package quality turns a release, the active quality profile and the format
// catalog into an approval decision and a rank.
//
// Evaluate accumulates every rejection reason instead of stopping at the
// first, so operators can see all the reasons a release was refused. The
// total score combines the quality rank, weighted so that no achievable format
// score can overturn a quality difference, with the sum of matched format
// scores.
package quality
