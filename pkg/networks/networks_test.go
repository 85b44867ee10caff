// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package networks

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/default"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.GeneratorFilters = 4
	cfg.DiscriminatorFilters = 4
	cfg.InputChannels = 1
	cfg.OutputChannels = 3
	cfg.StyleDim = 5
	cfg.ImageSize = 32
	return cfg
}

func randomImages(rng *rand.Rand, scale float32, dims ...int) *tensors.Tensor {
	size := 1
	for _, dim := range dims {
		size *= dim
	}
	data := make([]float32, size)
	for ii := range data {
		data[ii] = scale * (2*rng.Float32() - 1)
	}
	return tensors.FromFlatDataAndDimensions(data, dims...)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, testConfig().Validate())
	for _, size := range []int{0, 24, 36, 60} {
		cfg := testConfig()
		cfg.ImageSize = size
		require.Errorf(t, cfg.Validate(), "image size %d should be rejected", size)
	}
	cfg := testConfig()
	cfg.Normalization = "group"
	require.Error(t, cfg.Validate())
	cfg = testConfig()
	cfg.GeneratorArch = "vit"
	require.Error(t, cfg.Validate())
	cfg = testConfig()
	cfg.StyleDim = 0
	require.Error(t, cfg.Validate())
}

func TestConfigFromContext(t *testing.T) {
	ctx := context.New()
	ctx.SetParams(map[string]any{
		ParamGeneratorFilters: 16,
		ParamImageSize:        64,
		ParamNormalization:    "batch",
		ParamGeneratorArch:    "unet",
	})
	cfg := ConfigFromContext(ctx)
	assert.Equal(t, 16, cfg.GeneratorFilters)
	assert.Equal(t, 64, cfg.ImageSize)
	assert.Equal(t, "batch", cfg.Normalization)
	assert.Equal(t, "unet", cfg.GeneratorArch)
	assert.Equal(t, DefaultConfig().DiscriminatorFilters, cfg.DiscriminatorFilters)
	assert.Equal(t, 5, cfg.PatchSize())
}

func TestNetworksShapesAndBounds(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	rng := rand.New(rand.NewSource(1))
	for _, arch := range []string{"resnet", "unet"} {
		for _, norm := range []string{"instance", "batch"} {
			t.Run(arch+"_"+norm, func(t *testing.T) {
				cfg := testConfig()
				cfg.GeneratorArch = arch
				cfg.Normalization = norm
				cfg.ResidualBlocks = 1
				genB2A, err := NewGeneratorB2A(cfg)
				require.NoError(t, err)
				genA2B, err := NewGeneratorA2B(cfg)
				require.NoError(t, err)
				discA, err := NewDiscriminatorA(cfg)
				require.NoError(t, err)
				discB, err := NewDiscriminatorB(cfg)
				require.NoError(t, err)

				ctx := context.New()
				ctx.RngStateFromSeed(42)
				exec, err := context.NewExec(backend, ctx, func(ctx *context.Context, imagesB *Node) []*Node {
					ctx.SetTraining(imagesB.Graph(), true)
					fakeA, style := genB2A.Apply(ctx, imagesB)
					fakeB := genA2B.Apply(ctx, fakeA, style)
					return []*Node{fakeA, style, fakeB, discA.Apply(ctx, fakeA), discB.Apply(ctx, fakeB)}
				})
				require.NoError(t, err)

				// Large inputs push tanh into saturation.
				outputs, err := exec.Exec(randomImages(rng, 100, 2, 32, 32, 3))
				require.NoError(t, err)
				require.Len(t, outputs, 5)
				assert.Equal(t, []int{2, 32, 32, 1}, outputs[0].Shape().Dimensions)
				assert.Equal(t, []int{2, 5}, outputs[1].Shape().Dimensions)
				assert.Equal(t, []int{2, 32, 32, 3}, outputs[2].Shape().Dimensions)
				assert.Equal(t, []int{2, 1, 1, 1}, outputs[3].Shape().Dimensions)
				assert.Equal(t, []int{2, 1, 1, 1}, outputs[4].Shape().Dimensions)
				for _, idx := range []int{0, 2} {
					for _, v := range tensors.CopyFlatData[float32](outputs[idx]) {
						require.False(t, math.IsNaN(float64(v)))
						require.LessOrEqual(t, math.Abs(float64(v)), 1.0)
					}
				}

				// Each network only owns variables in its own scope.
				for v := range ctx.IterVariables() {
					if v.Scope() == context.RootScope {
						continue // RNG state.
					}
					owners := 0
					for _, owns := range []func(string) bool{genB2A.Owns, genA2B.Owns, discA.Owns, discB.Owns} {
						if owns(v.Scope()) {
							owners++
						}
					}
					assert.Equalf(t, 1, owners, "variable %s should belong to exactly one network", v.ParameterName())
				}
			})
		}
	}
}

func TestDiscriminatorUsesBatchNorm(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	cfg := testConfig()
	cfg.Normalization = "instance"
	discB, err := NewDiscriminatorB(cfg)
	require.NoError(t, err)
	ctx := context.New()
	ctx.RngStateFromSeed(42)
	exec, err := context.NewExec(backend, ctx, func(ctx *context.Context, images *Node) *Node {
		ctx.SetTraining(images.Graph(), true)
		return discB.Apply(ctx, images)
	})
	require.NoError(t, err)
	_, err = exec.Exec(randomImages(rand.New(rand.NewSource(3)), 1, 2, 32, 32, 3))
	require.NoError(t, err)

	var numBatchNorm int
	for v := range ctx.IterVariables() {
		if !discB.Owns(v.Scope()) {
			continue
		}
		assert.NotContains(t, v.Scope(), "instance_norm")
		if strings.HasSuffix(v.Scope(), "batch_normalization") {
			numBatchNorm++
		}
	}
	// scale, offset, mean, variance and avg_weight for each of the 2 normalization layers.
	assert.Equal(t, 10, numBatchNorm)
}

func TestNetworkReusesVariables(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	cfg := testConfig()
	discA, err := NewDiscriminatorA(cfg)
	require.NoError(t, err)
	ctx := context.New()
	ctx.RngStateFromSeed(42)
	exec, err := context.NewExec(backend, ctx, func(ctx *context.Context, real, fake *Node) []*Node {
		return []*Node{discA.Apply(ctx, real), discA.Apply(ctx, fake)}
	})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(2))
	images := randomImages(rng, 1, 3, 32, 32, 1)
	outputs, err := exec.Exec(images, images)
	require.NoError(t, err)
	// Same parameters, same inputs: same scores.
	assert.Equal(t, tensors.CopyFlatData[float32](outputs[0]), tensors.CopyFlatData[float32](outputs[1]))
	numVars := ctx.NumVariables()

	// A new graph (different batch size) reuses the existing variables.
	images = randomImages(rng, 1, 1, 32, 32, 1)
	_, err = exec.Exec(images, images)
	require.NoError(t, err)
	assert.Equal(t, numVars, ctx.NumVariables())
}
