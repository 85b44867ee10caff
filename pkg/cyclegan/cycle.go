// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package cyclegan

import (
	"github.com/gomlx/cyclegan/pkg/losses"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
)

// Cycle holds the nodes of the two translation cycles of a batch.
type Cycle struct {
	RealA, RealB *Node

	// FakeA = G_B2A(RealB) and ReconB = G_A2B(FakeA, Style).
	FakeA, ReconB *Node

	// FakeB = G_A2B(RealA, Style) and ReconA = G_B2A(FakeB).
	FakeB, ReconA *Node

	// Style is extracted from RealB, StyleRecon from FakeB.
	Style, StyleRecon *Node
}

// BuildCycle builds both translation cycles:
//
//	B -> A -> B: FakeA, Style = G_B2A(RealB); ReconB = G_A2B(FakeA + noise, Style)
//	A -> B -> A: FakeB = G_A2B(RealA, Style); ReconA, StyleRecon = G_B2A(FakeB + noise)
//
// The noise is only added when "add_noise" is set and ctx is in training mode for the graph.
func (m *Model) BuildCycle(ctx *context.Context, realA, realB *Node) Cycle {
	c := Cycle{RealA: realA, RealB: realB}
	c.FakeA, c.Style = m.GenB2A.Apply(ctx, realB)
	c.ReconB = m.GenA2B.Apply(ctx, m.perturb(ctx, c.FakeA), c.Style)
	c.FakeB = m.GenA2B.Apply(ctx, realA, c.Style)
	c.ReconA, c.StyleRecon = m.GenB2A.Apply(ctx, m.perturb(ctx, c.FakeB))
	return c
}

// perturb adds gaussian noise to the generated images fed back into the cycle.
func (m *Model) perturb(ctx *context.Context, x *Node) *Node {
	g := x.Graph()
	if !m.addNoise || m.noiseStddev == 0 || !ctx.IsTraining(g) {
		return x
	}
	noise := ctx.RandomNormal(g, x.Shape())
	return Add(x, MulScalar(noise, m.noiseStddev))
}

// generatorTerms scores the generated images and composes the generator loss.
func (m *Model) generatorTerms(ctx *context.Context, c Cycle) losses.GeneratorTerms {
	return m.composer.Generator(losses.GeneratorInputs{
		RealA:       c.RealA,
		RealB:       c.RealB,
		ReconA:      c.ReconA,
		ReconB:      c.ReconB,
		ScoresFakeA: m.DiscA.Apply(ctx, c.FakeA),
		ScoresFakeB: m.DiscB.Apply(ctx, c.FakeB),
		Style:       c.Style,
		StyleRecon:  c.StyleRecon,
	})
}
