// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package networks defines the generators and discriminators of the style-disentangled CycleGAN.
//
// Domain A images are translated to domain B by GeneratorA2B, conditioned on a style code, and
// domain B images are translated to domain A by GeneratorB2A, which also extracts the style code
// of its input. Each domain has a patch Discriminator.
//
// All networks are configured with the hyperparameters stored in the context (see Config),
// and each network owns the variables under its own scope.
package networks

import (
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/pkg/errors"
)

// Hyperparameters read from the context. See ConfigFromContext.
const (
	// ParamGeneratorFilters is the number of filters in the first generator convolution ("gf_dim").
	ParamGeneratorFilters = "ngf"

	// ParamDiscriminatorFilters is the number of filters in the first discriminator convolution ("df_dim").
	ParamDiscriminatorFilters = "ndf"

	// ParamInputChannels is the number of channels of domain A images.
	ParamInputChannels = "input_nc"

	// ParamOutputChannels is the number of channels of domain B images.
	ParamOutputChannels = "output_nc"

	// ParamStyleDim is the dimension of the style code.
	ParamStyleDim = "output_style_dim"

	// ParamNormalization selects the normalization used in the generators: "batch" or "instance".
	// Discriminators always use batch normalization.
	ParamNormalization = "normalization"

	// ParamGeneratorArch selects the generator bottleneck/decoder: "resnet" or "unet".
	ParamGeneratorArch = "generator_arch"

	// ParamResidualBlocks is the number of residual blocks appended to the "resnet" bottleneck.
	ParamResidualBlocks = "residual_blocks"

	// ParamImageSize is the spatial size (height and width) of the images fed to the networks.
	ParamImageSize = "fine_size"
)

// Config of the networks.
type Config struct {
	GeneratorFilters, DiscriminatorFilters int
	InputChannels, OutputChannels          int
	StyleDim                               int
	ImageSize                              int
	Normalization                          string
	GeneratorArch                          string
	ResidualBlocks                         int
}

// DefaultConfig returns the configuration used when the context has no hyperparameters set.
func DefaultConfig() Config {
	return Config{
		GeneratorFilters:     64,
		DiscriminatorFilters: 64,
		InputChannels:        3,
		OutputChannels:       3,
		StyleDim:             8,
		ImageSize:            256,
		Normalization:        "instance",
		GeneratorArch:        "resnet",
		ResidualBlocks:       0,
	}
}

// ConfigFromContext reads the network configuration from the context hyperparameters,
// falling back to DefaultConfig.
func ConfigFromContext(ctx *context.Context) Config {
	c := DefaultConfig()
	c.GeneratorFilters = context.GetParamOr(ctx, ParamGeneratorFilters, c.GeneratorFilters)
	c.DiscriminatorFilters = context.GetParamOr(ctx, ParamDiscriminatorFilters, c.DiscriminatorFilters)
	c.InputChannels = context.GetParamOr(ctx, ParamInputChannels, c.InputChannels)
	c.OutputChannels = context.GetParamOr(ctx, ParamOutputChannels, c.OutputChannels)
	c.StyleDim = context.GetParamOr(ctx, ParamStyleDim, c.StyleDim)
	c.ImageSize = context.GetParamOr(ctx, ParamImageSize, c.ImageSize)
	c.Normalization = context.GetParamOr(ctx, ParamNormalization, c.Normalization)
	c.GeneratorArch = context.GetParamOr(ctx, ParamGeneratorArch, c.GeneratorArch)
	c.ResidualBlocks = context.GetParamOr(ctx, ParamResidualBlocks, c.ResidualBlocks)
	return c
}

// Validate checks the configuration can be used to build the networks.
//
// The image size must be a multiple of 8 (the discriminators downsample 3 times) and at least 32,
// so the discriminator patch map is not empty.
func (c Config) Validate() error {
	if c.ImageSize < 32 || c.ImageSize%8 != 0 {
		return errors.Errorf("%s must be a multiple of 8 and >= 32, got %d", ParamImageSize, c.ImageSize)
	}
	for _, p := range []struct {
		name  string
		value int
	}{
		{ParamGeneratorFilters, c.GeneratorFilters},
		{ParamDiscriminatorFilters, c.DiscriminatorFilters},
		{ParamInputChannels, c.InputChannels},
		{ParamOutputChannels, c.OutputChannels},
		{ParamStyleDim, c.StyleDim},
	} {
		if p.value <= 0 {
			return errors.Errorf("%s must be > 0, got %d", p.name, p.value)
		}
	}
	if c.ResidualBlocks < 0 {
		return errors.Errorf("%s must be >= 0, got %d", ParamResidualBlocks, c.ResidualBlocks)
	}
	if _, err := NormalizerByName(c.Normalization); err != nil {
		return err
	}
	if _, err := ArchitectureByName(c.GeneratorArch, c.ResidualBlocks); err != nil {
		return err
	}
	return nil
}

// PatchSize returns the spatial size of the discriminator score map for the configured image size.
func (c Config) PatchSize() int {
	return c.ImageSize/8 - 3
}
