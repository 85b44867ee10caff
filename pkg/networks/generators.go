// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package networks

import (
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
)

// GeneratorB2A translates domain B images to domain A, and extracts the style code of its input.
type GeneratorB2A struct {
	network
	arch Architecture
}

// NewGeneratorB2A creates the handle of the B->A generator. Its variables are created in
// ScopeGeneratorB2A on the first Apply.
func NewGeneratorB2A(cfg Config) (*GeneratorB2A, error) {
	n, err := newNetwork(cfg, ScopeGeneratorB2A)
	if err != nil {
		return nil, err
	}
	arch, err := ArchitectureByName(cfg.GeneratorArch, cfg.ResidualBlocks)
	if err != nil {
		return nil, err
	}
	return &GeneratorB2A{network: n, arch: arch}, nil
}

// Apply the generator to a batch of B images shaped [batch, size, size, output_nc].
//
// It returns the content translated to domain A, shaped [batch, size, size, input_nc] with values
// in (-1, 1), and the style code shaped [batch, output_style_dim].
func (gen *GeneratorB2A) Apply(ctx *context.Context, images *Node) (content, style *Node) {
	cfg := gen.cfg
	images.AssertDims(-1, cfg.ImageSize, cfg.ImageSize, cfg.OutputChannels)
	ctx = gen.scopedContext(ctx)
	batchSize := images.Shape().Dimensions[0]

	skip, encoded := encode(ctx.In("encoder"), cfg, gen.norm, images)

	contentCtx := ctx.In("content")
	content = gen.arch.Bottleneck(contentCtx.In("bottleneck"), gen.norm, encoded, cfg.GeneratorFilters*2)
	content = gen.arch.Decode(contentCtx.In("decoder"), gen.norm, content, skip, cfg.GeneratorFilters, cfg.InputChannels)
	content.AssertDims(batchSize, cfg.ImageSize, cfg.ImageSize, cfg.InputChannels)

	style = Reshape(encoded, batchSize, -1)
	style = layers.Dense(ctx.In("style"), style, true, cfg.StyleDim)
	return
}

// GeneratorA2B translates domain A images to domain B, rendered with a given style code.
type GeneratorA2B struct {
	network
	arch Architecture
}

// NewGeneratorA2B creates the handle of the A->B generator. Its variables are created in
// ScopeGeneratorA2B on the first Apply.
func NewGeneratorA2B(cfg Config) (*GeneratorA2B, error) {
	n, err := newNetwork(cfg, ScopeGeneratorA2B)
	if err != nil {
		return nil, err
	}
	arch, err := ArchitectureByName(cfg.GeneratorArch, cfg.ResidualBlocks)
	if err != nil {
		return nil, err
	}
	return &GeneratorA2B{network: n, arch: arch}, nil
}

// Apply the generator to a batch of A images shaped [batch, size, size, input_nc] and their
// style codes shaped [batch, output_style_dim].
//
// It returns the B images shaped [batch, size, size, output_nc] with values in (-1, 1).
func (gen *GeneratorA2B) Apply(ctx *context.Context, images, style *Node) *Node {
	cfg := gen.cfg
	images.AssertDims(-1, cfg.ImageSize, cfg.ImageSize, cfg.InputChannels)
	batchSize := images.Shape().Dimensions[0]
	style.AssertRank(2)
	if style.Shape().Dimensions[0] != batchSize || style.Shape().Dimensions[1] != cfg.StyleDim {
		exceptions.Panicf("GeneratorA2B: style must be shaped [%d, %d], got %s", batchSize, cfg.StyleDim, style.Shape())
	}
	ctx = gen.scopedContext(ctx)

	skip, encoded := encode(ctx.In("encoder"), cfg, gen.norm, images)
	encodedDims := encoded.Shape().Dimensions
	height, width, channels := encodedDims[1], encodedDims[2], encodedDims[3]

	styleMap := layers.Dense(ctx.In("style"), style, true, height*width*channels)
	styleMap = Reshape(styleMap, batchSize, height, width, channels)
	fused := Concatenate([]*Node{encoded, styleMap}, -1)

	x := gen.arch.Bottleneck(ctx.In("bottleneck"), gen.norm, fused, cfg.GeneratorFilters*2)
	x = gen.arch.Decode(ctx.In("decoder"), gen.norm, x, skip, cfg.GeneratorFilters, cfg.OutputChannels)
	x.AssertDims(batchSize, cfg.ImageSize, cfg.ImageSize, cfg.OutputChannels)
	return x
}
