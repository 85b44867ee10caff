// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package networks

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
)

// LeakyReluAlpha is the negative slope of every leaky ReLU in the networks.
const LeakyReluAlpha = 0.05

// layerNamer returns a function that creates sequentially numbered sub-scopes of ctx.
func layerNamer(ctx *context.Context) func(name string) *context.Context {
	layerIdx := 0
	return func(name string) *context.Context {
		newCtx := ctx.Inf("%03d_%s", layerIdx, name)
		layerIdx++
		return newCtx
	}
}

func lrelu(x *Node) *Node {
	return activations.LeakyReluWithAlpha(x, LeakyReluAlpha)
}

// conv2d is a "same" padded convolution with bias.
func conv2d(ctx *context.Context, x *Node, channels, kernelSize, stride int) *Node {
	return layers.Convolution(ctx, x).
		Channels(channels).
		KernelSize(kernelSize).
		Strides(stride).
		PadSame().
		Done()
}

// upSample2x doubles the spatial dimensions of x by repeating each pixel (nearest neighbour).
func upSample2x(x *Node) *Node {
	x.AssertRank(4)
	dims := x.Shape().Dimensions
	batchSize, height, width, channels := dims[0], dims[1], dims[2], dims[3]
	upSampled := Concatenate([]*Node{x, x}, 3)
	upSampled = Reshape(upSampled, batchSize, height, 2*width, channels)
	upSampled = Concatenate([]*Node{upSampled, upSampled}, 2)
	return Reshape(upSampled, batchSize, 2*height, 2*width, channels)
}

// deconv2d doubles the spatial dimensions with a nearest neighbour up-sampling followed by a
// stride 1 convolution. It plays the role of a stride 2 transposed convolution without its
// checkerboard artifacts.
func deconv2d(ctx *context.Context, x *Node, channels, kernelSize int) *Node {
	return conv2d(ctx, upSample2x(x), channels, kernelSize, 1)
}

// encode is the content encoder shared by both generators: two stride 2 convolutions and a
// stride 1 convolution, each followed by normalization and leaky ReLU.
//
// It returns the output of the first layer (1/2 resolution) and the encoded content (1/4 resolution).
func encode(ctx *context.Context, cfg Config, norm Normalizer, x *Node) (skip, encoded *Node) {
	nextCtx := layerNamer(ctx)
	x = conv2d(nextCtx("conv"), x, cfg.GeneratorFilters, 4, 2)
	x = lrelu(norm(nextCtx("norm"), x))
	skip = x
	x = conv2d(nextCtx("conv"), x, cfg.GeneratorFilters*2, 4, 2)
	x = lrelu(norm(nextCtx("norm"), x))
	x = conv2d(nextCtx("conv"), x, cfg.GeneratorFilters*2, 3, 1)
	encoded = lrelu(norm(nextCtx("norm"), x))
	return
}
