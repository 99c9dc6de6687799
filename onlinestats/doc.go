// Package onlinestats computes descriptive statistics over a stream of
// samples in a single pass and constant memory.
//
// Every accumulator has a usable zero value except Quantile, which needs a
// target probability and is built with NewQuantile. Samples are fed with
// Push; queries never mutate state. Accumulators of the same kind can be
// combined with Merge, so a stream split across goroutines or machines can
// be summarized per partition and reduced afterwards. Merging Mean, Moments
// and MinMax is exact up to floating point rounding; merging Quantile is an
// approximation.
//
// Non-finite samples (NaN, ±Inf) are rejected with ErrNonFiniteSample and
// leave the accumulator untouched. Queries that lack enough samples return
// NaN.
//
// None of the types are safe for concurrent use.
package onlinestats
