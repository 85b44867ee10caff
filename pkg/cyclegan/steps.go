// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package cyclegan

import (
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

type executors struct {
	generatorStep, discriminatorStep *context.Exec
	sample                           *context.Exec
	translateB2A, translateA2B       *context.Exec
}

func (e *executors) finalize() {
	for _, exec := range []*context.Exec{e.generatorStep, e.discriminatorStep, e.sample, e.translateB2A, e.translateA2B} {
		if exec != nil {
			exec.Finalize()
		}
	}
}

// GeneratorLosses are the values of the generator loss terms of one step.
type GeneratorLosses struct {
	Total, A2B, B2A            float32
	AdversarialA, AdversarialB float32
	CycleA, CycleB             float32
	Style                      float32
}

// DiscriminatorLosses are the values of the discriminator loss terms of one step.
type DiscriminatorLosses struct {
	Total        float32
	RealA, FakeA float32
	A            float32
	RealB, FakeB float32
	B            float32
}

// GeneratorStepResult is returned by Model.GeneratorStep.
type GeneratorStepResult struct {
	// FakeA and FakeB are the translated batches, to be fed (through the replay pool) to the
	// discriminator step.
	FakeA, FakeB *tensors.Tensor
	Losses       GeneratorLosses
}

// SampleResult holds the translations and reconstructions of a batch, computed in inference mode.
type SampleResult struct {
	FakeA, FakeB, ReconA, ReconB *tensors.Tensor
}

func (m *Model) buildExecutors() (err error) {
	m.execs.generatorStep, err = context.NewExec(m.backend, m.ctx, m.generatorStepGraph)
	if err != nil {
		return errors.WithMessage(err, "failed to create generator step executor")
	}
	m.execs.discriminatorStep, err = context.NewExec(m.backend, m.ctx, m.discriminatorStepGraph)
	if err != nil {
		return errors.WithMessage(err, "failed to create discriminator step executor")
	}
	m.execs.sample, err = context.NewExec(m.backend, m.ctx, func(ctx *context.Context, realA, realB *Node) []*Node {
		ctx.SetTraining(realA.Graph(), false)
		c := m.BuildCycle(ctx, realA, realB)
		return []*Node{c.FakeA, c.FakeB, c.ReconA, c.ReconB}
	})
	if err != nil {
		return errors.WithMessage(err, "failed to create sampling executor")
	}
	m.execs.translateB2A, err = context.NewExec(m.backend, m.ctx, func(ctx *context.Context, imagesB *Node) []*Node {
		ctx.SetTraining(imagesB.Graph(), false)
		content, style := m.GenB2A.Apply(ctx, imagesB)
		return []*Node{content, style}
	})
	if err != nil {
		return errors.WithMessage(err, "failed to create B->A translation executor")
	}
	m.execs.translateA2B, err = context.NewExec(m.backend, m.ctx, func(ctx *context.Context, imagesA, style *Node) *Node {
		ctx.SetTraining(imagesA.Graph(), false)
		return m.GenA2B.Apply(ctx, imagesA, style)
	})
	if err != nil {
		return errors.WithMessage(err, "failed to create A->B translation executor")
	}
	return nil
}

// generatorStepGraph: inputs are realA, realB and the learning rate.
func (m *Model) generatorStepGraph(ctx *context.Context, realA, realB, learningRate *Node) []*Node {
	ctx.SetTraining(realA.Graph(), true)
	c := m.BuildCycle(ctx, realA, realB)
	terms := m.generatorTerms(ctx, c)
	m.minimize(ctx, GeneratorGroup, terms.Total, learningRate)
	return []*Node{
		c.FakeA, c.FakeB,
		terms.Total, terms.A2B, terms.B2A,
		terms.AdversarialA, terms.AdversarialB,
		terms.CycleA, terms.CycleB, terms.Style,
	}
}

// discriminatorStepGraph: inputs are realA, realB, fakeA, fakeB and the learning rate.
// It also increments the training counter.
func (m *Model) discriminatorStepGraph(ctx *context.Context, realA, realB, fakeA, fakeB, learningRate *Node) []*Node {
	g := realA.Graph()
	ctx.SetTraining(g, true)
	terms := m.composer.Discriminator(
		m.DiscA.Apply(ctx, realA), m.DiscA.Apply(ctx, fakeA),
		m.DiscB.Apply(ctx, realB), m.DiscB.Apply(ctx, fakeB))
	m.minimize(ctx, DiscriminatorGroup, terms.Total, learningRate)
	step := optimizers.IncrementGlobalStepGraph(ctx.InAbsPath(context.RootScope), g, dtypes.Int64)
	return []*Node{
		terms.Total,
		terms.A.Real, terms.A.Fake, terms.A.Total,
		terms.B.Real, terms.B.Fake, terms.B.Total,
		step,
	}
}

// checkImages returns an error if images is not a batch of the configured image size and channels.
func (m *Model) checkImages(name string, images *tensors.Tensor, channels int) error {
	if images == nil {
		return errors.Errorf("%s images missing", name)
	}
	shape := images.Shape()
	size := m.cfg.ImageSize
	if shape.DType != DType || shape.Rank() != 4 || shape.Dimensions[0] <= 0 ||
		shape.Dimensions[1] != size || shape.Dimensions[2] != size || shape.Dimensions[3] != channels {
		return errors.Errorf("%s images must be shaped (%s)[batch, %d, %d, %d], got %s",
			name, DType, size, size, channels, shape)
	}
	return nil
}

func (m *Model) checkPair(realA, realB *tensors.Tensor) error {
	if err := m.checkImages("A", realA, m.cfg.InputChannels); err != nil {
		return err
	}
	if err := m.checkImages("B", realB, m.cfg.OutputChannels); err != nil {
		return err
	}
	if realA.Shape().Dimensions[0] != realB.Shape().Dimensions[0] {
		return errors.Errorf("A and B batches must have the same size, got %d and %d",
			realA.Shape().Dimensions[0], realB.Shape().Dimensions[0])
	}
	return nil
}

// run executes exec converting panics raised while building the graph into errors.
func run(exec *context.Exec, args ...any) ([]*tensors.Tensor, error) {
	var outputs []*tensors.Tensor
	var execErr error
	if err := exceptions.TryCatch[error](func() { outputs, execErr = exec.Exec(args...) }); err != nil {
		return nil, err
	}
	return outputs, execErr
}

func scalar(t *tensors.Tensor) float32 {
	return tensors.ToScalar[float32](t)
}

// GeneratorStep runs one optimization step of the generators (only the generator parameter group
// is updated) on a batch of real A and B images, with the given learning rate.
func (m *Model) GeneratorStep(realA, realB *tensors.Tensor, learningRate float64) (*GeneratorStepResult, error) {
	if err := m.checkPair(realA, realB); err != nil {
		return nil, err
	}
	outputs, err := run(m.execs.generatorStep, realA, realB, float32(learningRate))
	if err != nil {
		return nil, errors.WithMessage(err, "generator step failed")
	}
	r := &GeneratorStepResult{FakeA: outputs[0], FakeB: outputs[1]}
	r.Losses = GeneratorLosses{
		Total:        scalar(outputs[2]),
		A2B:          scalar(outputs[3]),
		B2A:          scalar(outputs[4]),
		AdversarialA: scalar(outputs[5]),
		AdversarialB: scalar(outputs[6]),
		CycleA:       scalar(outputs[7]),
		CycleB:       scalar(outputs[8]),
		Style:        scalar(outputs[9]),
	}
	return r, nil
}

// DiscriminatorStep runs one optimization step of the discriminators (only the discriminator
// parameter group is updated) on real images and generated images (usually replayed from the
// pool), with the given learning rate.
//
// It increments the training counter and returns its new value.
func (m *Model) DiscriminatorStep(realA, realB, fakeA, fakeB *tensors.Tensor, learningRate float64) (
	losses DiscriminatorLosses, step int64, err error) {
	if err = m.checkPair(realA, realB); err != nil {
		return
	}
	if err = m.checkPair(fakeA, fakeB); err != nil {
		err = errors.WithMessage(err, "generated images")
		return
	}
	outputs, err := run(m.execs.discriminatorStep, realA, realB, fakeA, fakeB, float32(learningRate))
	if err != nil {
		err = errors.WithMessage(err, "discriminator step failed")
		return
	}
	losses = DiscriminatorLosses{
		Total: scalar(outputs[0]),
		RealA: scalar(outputs[1]),
		FakeA: scalar(outputs[2]),
		A:     scalar(outputs[3]),
		RealB: scalar(outputs[4]),
		FakeB: scalar(outputs[5]),
		B:     scalar(outputs[6]),
	}
	step = tensors.ToScalar[int64](outputs[7])
	return
}

// Sample translates and reconstructs a batch in inference mode (no noise, no statistics updates).
func (m *Model) Sample(realA, realB *tensors.Tensor) (*SampleResult, error) {
	if err := m.checkPair(realA, realB); err != nil {
		return nil, err
	}
	outputs, err := run(m.execs.sample, realA, realB)
	if err != nil {
		return nil, errors.WithMessage(err, "sampling failed")
	}
	return &SampleResult{FakeA: outputs[0], FakeB: outputs[1], ReconA: outputs[2], ReconB: outputs[3]}, nil
}

// TranslateB2A translates B images to domain A, and returns their style codes.
func (m *Model) TranslateB2A(imagesB *tensors.Tensor) (content, style *tensors.Tensor, err error) {
	if err = m.checkImages("B", imagesB, m.cfg.OutputChannels); err != nil {
		return
	}
	outputs, err := run(m.execs.translateB2A, imagesB)
	if err != nil {
		err = errors.WithMessage(err, "B->A translation failed")
		return
	}
	return outputs[0], outputs[1], nil
}

// TranslateA2B translates A images to domain B rendered with the given style codes, shaped
// [batch, output_style_dim].
func (m *Model) TranslateA2B(imagesA, style *tensors.Tensor) (*tensors.Tensor, error) {
	if err := m.checkImages("A", imagesA, m.cfg.InputChannels); err != nil {
		return nil, err
	}
	batchSize := imagesA.Shape().Dimensions[0]
	if style == nil || style.Shape().DType != DType || style.Shape().Rank() != 2 ||
		style.Shape().Dimensions[0] != batchSize || style.Shape().Dimensions[1] != m.cfg.StyleDim {
		var got any = "nil"
		if style != nil {
			got = style.Shape()
		}
		return nil, errors.Errorf("style must be shaped (%s)[%d, %d], got %v", DType, batchSize, m.cfg.StyleDim, got)
	}
	outputs, err := run(m.execs.translateA2B, imagesA, style)
	if err != nil {
		return nil, errors.WithMessage(err, "A->B translation failed")
	}
	return outputs[0], nil
}

// ZeroStyle returns a batch of all-zero style codes.
func (m *Model) ZeroStyle(batchSize int) *tensors.Tensor {
	return tensors.FromFlatDataAndDimensions(make([]float32, batchSize*m.cfg.StyleDim), batchSize, m.cfg.StyleDim)
}
