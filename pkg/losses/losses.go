// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package losses composes the objectives of the style-disentangled CycleGAN: the adversarial
// criteria, the cycle-consistency and style-consistency terms, and their aggregation into
// the generator and discriminator losses.
package losses

import (
	"slices"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	trainlosses "github.com/gomlx/gomlx/pkg/ml/train/losses"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
)

// Criterion is an adversarial criterion: it returns the scalar loss of the discriminator scores
// when their target is the given label (1 for "real", 0 for "generated").
type Criterion func(scores *Node, target float64) *Node

// ParamGANLoss selects the adversarial Criterion: "lsgan" or "sce".
const ParamGANLoss = "gan_loss"

var criteria = map[string]Criterion{
	"lsgan": LeastSquares,
	"sce":   SigmoidCrossEntropy,
}

// CriterionByName returns the Criterion registered with name.
func CriterionByName(name string) (Criterion, error) {
	c, found := criteria[name]
	if !found {
		names := maps.Keys(criteria)
		slices.Sort(names)
		return nil, errors.Errorf("unknown %s %q, valid values are %q", ParamGANLoss, name, names)
	}
	return c, nil
}

// LeastSquares is the least-squares GAN criterion: mean((scores - target)^2).
func LeastSquares(scores *Node, target float64) *Node {
	return trainlosses.MeanSquaredError([]*Node{filledLike(scores, target)}, []*Node{scores})
}

// SigmoidCrossEntropy is the original GAN criterion: mean sigmoid cross-entropy of the score logits.
func SigmoidCrossEntropy(scores *Node, target float64) *Node {
	return ReduceAllMean(trainlosses.BinaryCrossentropyLogits([]*Node{filledLike(scores, target)}, []*Node{scores}))
}

func filledLike(x *Node, value float64) *Node {
	if value == 0 {
		return ZerosLike(x)
	}
	return MulScalar(OnesLike(x), value)
}

// L1 returns mean(|a - b|).
func L1(a, b *Node) *Node {
	return trainlosses.MeanAbsoluteError([]*Node{a}, []*Node{b})
}
