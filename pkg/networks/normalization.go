// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package networks

import (
	"slices"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/initializers"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/batchnorm"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
)

// Normalizer normalizes an image-shaped (channels-last) node, creating its variables in ctx.
type Normalizer func(ctx *context.Context, x *Node) *Node

// InstanceNormEpsilon is added to the variance in InstanceNorm.
const InstanceNormEpsilon = 1e-5

var normalizers = map[string]Normalizer{
	"batch":    BatchNorm,
	"instance": InstanceNorm,
}

// NormalizerByName returns the Normalizer for "batch" or "instance".
func NormalizerByName(name string) (Normalizer, error) {
	n, found := normalizers[name]
	if !found {
		names := maps.Keys(normalizers)
		slices.Sort(names)
		return nil, errors.Errorf("unknown %s %q, valid values are %q", ParamNormalization, name, names)
	}
	return n, nil
}

// BatchNorm normalizes over the batch and spatial axes, one mean/variance per channel.
// During training it also updates the moving averages used for inference.
func BatchNorm(ctx *context.Context, x *Node) *Node {
	return batchnorm.New(ctx, x, -1).Done()
}

// InstanceNorm normalizes each example and channel over the spatial axes, followed by a learned
// per-channel scale and offset. It behaves the same during training and inference.
func InstanceNorm(ctx *context.Context, x *Node) *Node {
	x.AssertRank(4)
	g := x.Graph()
	channels := x.Shape().Dimensions[3]
	normalized := layers.LayerNormalization(ctx, x, 1, 2).
		LearnedGain(false).
		LearnedOffset(false).
		Epsilon(InstanceNormEpsilon).
		Done()

	ctx = ctx.In("instance_norm")
	paramShape := shapes.Make(x.DType(), channels)
	scale := ctx.WithInitializer(initializers.One).VariableWithShape("scale", paramShape).ValueGraph(g)
	offset := ctx.WithInitializer(initializers.Zero).VariableWithShape("offset", paramShape).ValueGraph(g)
	scale = Reshape(scale, 1, 1, 1, channels)
	offset = Reshape(offset, 1, 1, 1, channels)
	return Add(Mul(normalized, scale), offset)
}
