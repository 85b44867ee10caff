// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package cyclegan assembles the style-disentangled CycleGAN: it wires the generators and
// discriminators into the two translation cycles, composes the losses, and builds the
// executors of the alternating generator and discriminator optimization steps, of the
// sampling and of the translation used for inference.
//
// The model state (all variables, the optimizers state and the training counter) lives in a
// context.Context, so it can be saved and restored with the checkpoints package.
package cyclegan

import (
	"github.com/gomlx/cyclegan/pkg/losses"
	"github.com/gomlx/cyclegan/pkg/networks"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/pkg/errors"
)

// Model holds the network handles, the loss composer and the optimizers. Its executors
// compile their graphs on first use, for each new batch size.
type Model struct {
	backend backends.Backend
	ctx     *context.Context
	cfg     networks.Config

	GenB2A *networks.GeneratorB2A
	GenA2B *networks.GeneratorA2B
	DiscA  *networks.Discriminator
	DiscB  *networks.Discriminator

	composer    losses.Composer
	addNoise    bool
	noiseStddev float64
	optimizers  [numParamGroups]optimizers.Interface

	execs executors
}

// New creates the Model configured by the hyperparameters in ctx.
//
// Variables are created (or reused, if already present in ctx, e.g. loaded from a checkpoint)
// the first time one of the executors runs.
func New(backend backends.Backend, ctx *context.Context) (*Model, error) {
	cfg := networks.ConfigFromContext(ctx)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Model{
		backend:     backend,
		ctx:         ctx,
		cfg:         cfg,
		addNoise:    context.GetParamOr(ctx, ParamAddNoise, false),
		noiseStddev: context.GetParamOr(ctx, ParamNoiseStddev, 0.1),
	}
	var err error
	if m.GenB2A, err = networks.NewGeneratorB2A(cfg); err != nil {
		return nil, err
	}
	if m.GenA2B, err = networks.NewGeneratorA2B(cfg); err != nil {
		return nil, err
	}
	if m.DiscA, err = networks.NewDiscriminatorA(cfg); err != nil {
		return nil, err
	}
	if m.DiscB, err = networks.NewDiscriminatorB(cfg); err != nil {
		return nil, err
	}

	criterionName := context.GetParamOr(ctx, losses.ParamGANLoss, "lsgan")
	criterion, err := losses.CriterionByName(criterionName)
	if err != nil {
		return nil, err
	}
	m.composer = losses.Composer{
		Criterion: criterion,
		Weights: losses.Weights{
			Cycle: context.GetParamOr(ctx, ParamCycleWeight, 10.0),
			Style: context.GetParamOr(ctx, ParamStyleWeight, 1.0),
		},
	}
	if m.noiseStddev < 0 {
		return nil, errors.Errorf("%s must be >= 0, got %g", ParamNoiseStddev, m.noiseStddev)
	}

	learningRate := context.GetParamOr(ctx, ParamLearningRate, 2e-4)
	beta1 := context.GetParamOr(ctx, ParamBeta1, 0.5)
	for group := range ParamGroup(numParamGroups) {
		m.optimizers[group] = optimizers.Adam().
			LearningRate(learningRate).
			Betas(beta1, 0.999).
			Scope(group.adamScope()).
			Done()
	}

	if err = m.buildExecutors(); err != nil {
		return nil, err
	}
	return m, nil
}

// Config returns the networks configuration.
func (m *Model) Config() networks.Config { return m.cfg }

// Context returns the context holding the model state.
func (m *Model) Context() *context.Context { return m.ctx }

// Backend used by the executors.
func (m *Model) Backend() backends.Backend { return m.backend }

// Step returns the training counter: the number of completed batches (generator plus
// discriminator steps). It is stored in the root scope variable "global_step".
func (m *Model) Step() int64 {
	return optimizers.GetGlobalStep(m.ctx.InAbsPath(context.RootScope))
}

// Finalize releases the compiled executors.
func (m *Model) Finalize() {
	m.execs.finalize()
}
