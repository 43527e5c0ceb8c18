// Package sample implements memory-bounded, unbiased estimation of a per-key
// accumulating metric such as bytes written under a key.
//
// Exact reads accumulated values from an aggregate store. Transient builds on
// it: updates smaller than the sample unit are randomly rounded to zero or to
// a full unit so the expected recorded value equals the true value while the
// number of tracked keys stays bounded, and accepted samples can be scheduled
// for reversal at a later time.
//
// Neither type is synchronized. A sampler, its store, its random source and
// its expiry queue belong to one goroutine; see package accounting for a
// sharded, channel-confined owner.
package sample
