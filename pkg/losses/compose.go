// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package losses

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
)

// Weights of the non-adversarial terms.
type Weights struct {
	// Cycle ("L1_lambda") multiplies both cycle-consistency terms.
	Cycle float64

	// Style multiplies the style-consistency term.
	Style float64
}

// Composer aggregates the loss terms with a given adversarial Criterion and Weights.
type Composer struct {
	Criterion Criterion
	Weights   Weights
}

// GeneratorInputs are the nodes the generator loss depends on.
type GeneratorInputs struct {
	RealA, RealB   *Node
	ReconA, ReconB *Node

	// ScoresFakeA are the domain A discriminator scores of the generated A images, and
	// ScoresFakeB the domain B discriminator scores of the generated B images.
	ScoresFakeA, ScoresFakeB *Node

	// Style is the code extracted from the real B images, and StyleRecon the one
	// extracted from the generated B images.
	Style, StyleRecon *Node
}

// GeneratorTerms are the scalar terms of the generator loss.
type GeneratorTerms struct {
	AdversarialA, AdversarialB *Node
	CycleA, CycleB             *Node
	Style                      *Node

	// Total is optimized. A2B and B2A are the per-direction losses, only reported.
	Total, A2B, B2A *Node
}

// Generator composes the generator loss:
//
//	Total = crit(D_A(fakeA), 1) + crit(D_B(fakeB), 1) + λ·L1(realA, reconA) + λ·L1(realB, reconB) + w·L1(style, styleRecon)
func (c Composer) Generator(in GeneratorInputs) GeneratorTerms {
	var terms GeneratorTerms
	terms.AdversarialA = c.Criterion(in.ScoresFakeA, 1)
	terms.AdversarialB = c.Criterion(in.ScoresFakeB, 1)
	terms.CycleA = MulScalar(L1(in.RealA, in.ReconA), c.Weights.Cycle)
	terms.CycleB = MulScalar(L1(in.RealB, in.ReconB), c.Weights.Cycle)
	terms.Style = MulScalar(L1(in.Style, in.StyleRecon), c.Weights.Style)

	cycle := Add(terms.CycleA, terms.CycleB)
	terms.A2B = Add(terms.AdversarialB, cycle)
	terms.B2A = Add(terms.AdversarialA, cycle)
	terms.Total = Add(Add(Add(terms.AdversarialA, terms.AdversarialB), cycle), terms.Style)
	return terms
}

// DomainTerms are the scalar loss terms of one discriminator.
type DomainTerms struct {
	Real, Fake *Node

	// Total = (Real + Fake) / 2
	Total *Node
}

// Domain composes the loss of one discriminator given its scores on real and on generated
// (possibly replayed) images. The two score maps may have different batch sizes.
func (c Composer) Domain(scoresReal, scoresFake *Node) DomainTerms {
	var terms DomainTerms
	terms.Real = c.Criterion(scoresReal, 1)
	terms.Fake = c.Criterion(scoresFake, 0)
	terms.Total = MulScalar(Add(terms.Real, terms.Fake), 0.5)
	return terms
}

// DiscriminatorTerms are the loss terms of both discriminators.
type DiscriminatorTerms struct {
	A, B  DomainTerms
	Total *Node
}

// Discriminator composes the loss of both discriminators: Total = A.Total + B.Total.
func (c Composer) Discriminator(scoresRealA, scoresFakeA, scoresRealB, scoresFakeB *Node) DiscriminatorTerms {
	var terms DiscriminatorTerms
	terms.A = c.Domain(scoresRealA, scoresFakeA)
	terms.B = c.Domain(scoresRealB, scoresFakeB)
	terms.Total = Add(terms.A.Total, terms.B.Total)
	return terms
}
