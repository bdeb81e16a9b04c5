// Package stitch reconciles chunk-local speaker labels from overlapping,
// independently diarized audio chunks into one canonical speaker namespace
// and a single time-ordered transcript.
//
// The chain is: Planner cuts the recording into overlapping chunks, an
// external service diarizes each chunk, ExtractOverlapStats summarizes who
// speaks inside each overlap window, Matcher pairs speakers across each
// chunk boundary, Resolver folds those pairings into a CanonicalMap and
// Merge produces the final transcript.
package stitch
