// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package networks

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/pkg/errors"
)

// Architecture defines the part of a generator after the content encoder: the bottleneck at
// 1/4 resolution and the decoder back to full resolution.
type Architecture interface {
	// Bottleneck transforms the encoded (and, for GeneratorA2B, style-fused) content.
	Bottleneck(ctx *context.Context, norm Normalizer, x *Node, channels int) *Node

	// Decode up-samples x twice (to the full image resolution) and returns a tanh-bounded image
	// with outputChannels. The skip node is the 1/2 resolution output of the encoder.
	Decode(ctx *context.Context, norm Normalizer, x, skip *Node, filters, outputChannels int) *Node
}

// ArchitectureByName returns the generator Architecture for "resnet" or "unet".
func ArchitectureByName(name string, residualBlocks int) (Architecture, error) {
	switch name {
	case "resnet":
		return ResNet{ResidualBlocks: residualBlocks}, nil
	case "unet":
		return UNet{ResidualBlocks: residualBlocks}, nil
	default:
		return nil, errors.Errorf("unknown %s %q, valid values are \"resnet\" and \"unet\"", ParamGeneratorArch, name)
	}
}

// ResNet is a straight encoder/decoder: a 3x3 convolution optionally followed by residual blocks,
// and a decoder without skip connections.
type ResNet struct {
	ResidualBlocks int
}

// Bottleneck implements Architecture.
func (arch ResNet) Bottleneck(ctx *context.Context, norm Normalizer, x *Node, channels int) *Node {
	return bottleneck(ctx, norm, x, channels, arch.ResidualBlocks)
}

// Decode implements Architecture.
func (arch ResNet) Decode(ctx *context.Context, norm Normalizer, x, skip *Node, filters, outputChannels int) *Node {
	return decode(ctx, norm, x, nil, filters, outputChannels)
}

// UNet is like ResNet, but the decoder concatenates the 1/2 resolution encoder output
// before its last up-sampling.
type UNet struct {
	ResidualBlocks int
}

// Bottleneck implements Architecture.
func (arch UNet) Bottleneck(ctx *context.Context, norm Normalizer, x *Node, channels int) *Node {
	return bottleneck(ctx, norm, x, channels, arch.ResidualBlocks)
}

// Decode implements Architecture.
func (arch UNet) Decode(ctx *context.Context, norm Normalizer, x, skip *Node, filters, outputChannels int) *Node {
	return decode(ctx, norm, x, skip, filters, outputChannels)
}

func bottleneck(ctx *context.Context, norm Normalizer, x *Node, channels, residualBlocks int) *Node {
	nextCtx := layerNamer(ctx)
	x = conv2d(nextCtx("conv"), x, channels, 3, 1)
	x = lrelu(norm(nextCtx("norm"), x))
	for range residualBlocks {
		x = residualBlock(nextCtx("residual"), norm, x, channels)
	}
	return x
}

func residualBlock(ctx *context.Context, norm Normalizer, x *Node, channels int) *Node {
	residual := x
	x = conv2d(ctx.In("conv1"), x, channels, 3, 1)
	x = lrelu(norm(ctx.In("norm1"), x))
	x = conv2d(ctx.In("conv2"), x, channels, 3, 1)
	x = norm(ctx.In("norm2"), x)
	return Add(x, residual)
}

func decode(ctx *context.Context, norm Normalizer, x, skip *Node, filters, outputChannels int) *Node {
	nextCtx := layerNamer(ctx)
	x = deconv2d(nextCtx("deconv"), x, filters, 4)
	x = lrelu(norm(nextCtx("norm"), x))
	if skip != nil {
		x = Concatenate([]*Node{x, skip}, -1)
	}
	x = deconv2d(nextCtx("deconv"), x, outputChannels, 4)
	return Tanh(x)
}
