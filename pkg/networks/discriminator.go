// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package networks

import (
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
)

// Discriminator scores patches of an image as real (high) or generated (low).
// The same handle is used for real, generated and pool-replayed images of its domain.
type Discriminator struct {
	network
	channels int
}

// NewDiscriminatorA creates the discriminator of domain A images (input_nc channels).
func NewDiscriminatorA(cfg Config) (*Discriminator, error) {
	return newDiscriminator(cfg, ScopeDiscriminatorA, cfg.InputChannels)
}

// NewDiscriminatorB creates the discriminator of domain B images (output_nc channels).
func NewDiscriminatorB(cfg Config) (*Discriminator, error) {
	return newDiscriminator(cfg, ScopeDiscriminatorB, cfg.OutputChannels)
}

func newDiscriminator(cfg Config, scope string, channels int) (*Discriminator, error) {
	n, err := newNetwork(cfg, scope)
	if err != nil {
		return nil, err
	}
	return &Discriminator{network: n, channels: channels}, nil
}

// Apply returns the patch logits shaped [batch, size/8-3, size/8-3, 1].
// Discriminators always use BatchNorm, whatever the normalization configured for the generators.
func (d *Discriminator) Apply(ctx *context.Context, images *Node) *Node {
	cfg := d.cfg
	images.AssertDims(-1, cfg.ImageSize, cfg.ImageSize, d.channels)
	ctx = d.scopedContext(ctx)
	nextCtx := layerNamer(ctx)

	x := lrelu(conv2d(nextCtx("conv"), images, cfg.DiscriminatorFilters, 4, 2))
	x = conv2d(nextCtx("conv"), x, cfg.DiscriminatorFilters*2, 4, 2)
	x = lrelu(BatchNorm(nextCtx("norm"), x))
	x = conv2d(nextCtx("conv"), x, cfg.DiscriminatorFilters*4, 4, 2)
	x = lrelu(BatchNorm(nextCtx("norm"), x))
	x = layers.Convolution(nextCtx("conv"), x).
		Channels(1).
		KernelSize(4).
		NoPadding().
		Done()

	patch := cfg.PatchSize()
	if x.Shape().Dimensions[1] != patch || x.Shape().Dimensions[2] != patch {
		exceptions.Panicf("Discriminator: unexpected score map shape %s for image size %d", x.Shape(), cfg.ImageSize)
	}
	return x
}
