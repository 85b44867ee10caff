// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package imagepool implements a bounded history of previously generated samples.
//
// The discriminators of a GAN are trained on a mix of the latest generated samples and
// samples generated by older versions of the generator, which damps oscillations between
// the two players. A Pool holds tuples of parallel samples (e.g.: fake-A and fake-B batches
// generated in the same step) and, once full, randomly swaps incoming samples with stored ones.
package imagepool

import (
	"math/rand"

	"github.com/gomlx/exceptions"
)

// DefaultReplaceProbability is the probability that a query on a full pool returns
// stored samples (and stores the new ones in their place).
const DefaultReplaceProbability = 0.5

// Pool of previously generated samples. Each entry is a tuple of parallel samples,
// one per position. The arity of the tuples is fixed by the first call to Query.
//
// It is not safe for concurrent use.
type Pool[T any] struct {
	maxSize            int
	replaceProbability float64
	arity              int
	entries            [][]T
	rng                *rand.Rand
}

// New creates a Pool that holds up to maxSize entries. If maxSize <= 0 the pool is
// disabled and Query returns its input unchanged.
//
// The seed is used for the random replacement decisions.
func New[T any](maxSize int, seed int64) *Pool[T] {
	return &Pool[T]{
		maxSize:            maxSize,
		replaceProbability: DefaultReplaceProbability,
		rng:                rand.New(rand.NewSource(seed)),
	}
}

// WithReplaceProbability sets the probability that a query on a full pool is answered with
// stored samples. It must be in [0, 1].
func (p *Pool[T]) WithReplaceProbability(prob float64) *Pool[T] {
	if prob < 0 || prob > 1 {
		exceptions.Panicf("imagepool: replace probability must be in [0, 1], got %g", prob)
	}
	p.replaceProbability = prob
	return p
}

// MaxSize returns the capacity of the pool.
func (p *Pool[T]) MaxSize() int { return p.maxSize }

// Len returns the number of stored entries.
func (p *Pool[T]) Len() int { return len(p.entries) }

// Query offers a new tuple of samples to the pool and returns the tuple that should be
// used in their place:
//
//   - Disabled pool: samples are returned unchanged and nothing is stored.
//   - Pool below capacity: samples are stored and returned unchanged.
//   - Full pool: with the replace probability, for each position an independent random
//     stored entry is selected, its sample is returned and the new sample takes its place.
//     Otherwise the samples are returned unchanged.
//
// It panics if the number of samples differs from the one used in the first call.
func (p *Pool[T]) Query(samples ...T) []T {
	if p.maxSize <= 0 {
		return samples
	}
	if p.arity == 0 {
		if len(samples) == 0 {
			exceptions.Panicf("imagepool: Query called without samples")
		}
		p.arity = len(samples)
	} else if len(samples) != p.arity {
		exceptions.Panicf("imagepool: Query called with %d samples, but pool holds tuples of %d", len(samples), p.arity)
	}

	if len(p.entries) < p.maxSize {
		p.entries = append(p.entries, append([]T(nil), samples...))
		return samples
	}
	if p.rng.Float64() >= p.replaceProbability {
		return samples
	}
	results := make([]T, len(samples))
	for pos, sample := range samples {
		idx := p.rng.Intn(len(p.entries))
		results[pos] = p.entries[idx][pos]
		p.entries[idx][pos] = sample
	}
	return results
}
