// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package cyclegan

import (
	"github.com/gomlx/cyclegan/pkg/losses"
	"github.com/gomlx/cyclegan/pkg/networks"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gopjrt/dtypes"
)

// DType of the images and of the model parameters.
var DType = dtypes.Float32

// Hyperparameters, besides those defined in the networks and losses packages.
const (
	ParamBatchSize       = "batch_size"
	ParamLoadSize        = "load_size"
	ParamCycleWeight     = "L1_lambda"
	ParamStyleWeight     = "style_weight"
	ParamAddNoise        = "add_noise"
	ParamNoiseStddev     = "noise_stddev"
	ParamPoolSize        = "max_size"
	ParamPoolProbability = "pool_probability"
	ParamLearningRate    = "learning_rate"
	ParamBeta1           = "beta1"
	ParamEpochs          = "epoch"
	ParamEpochStep       = "epoch_step"
	ParamTrainSize       = "train_size"
	ParamSampleFreq      = "print_freq"
	ParamSaveFreq        = "save_freq"
	ParamNumCheckpoints  = "num_checkpoints"
	ParamSeed            = "seed"
	ParamRunID           = "run_id"
)

// ParamsExcludedFromSaving are the hyperparameters (see CreateDefaultContext) that are not saved along
// the checkpoints, and may be changed when training is continued.
var ParamsExcludedFromSaving = []string{
	ParamNumCheckpoints, ParamSampleFreq, ParamSaveFreq,
}

// CreateDefaultContext returns a context with all the hyperparameters set to their default values.
func CreateDefaultContext() *context.Context {
	ctx := context.New()
	netCfg := networks.DefaultConfig()
	ctx.SetParams(map[string]any{
		// Data.
		ParamBatchSize:          1,
		ParamLoadSize:           286,
		networks.ParamImageSize: netCfg.ImageSize,
		ParamTrainSize:          1_000_000,

		// Networks.
		networks.ParamGeneratorFilters:     netCfg.GeneratorFilters,
		networks.ParamDiscriminatorFilters: netCfg.DiscriminatorFilters,
		networks.ParamInputChannels:        netCfg.InputChannels,
		networks.ParamOutputChannels:       netCfg.OutputChannels,
		networks.ParamStyleDim:             netCfg.StyleDim,
		networks.ParamNormalization:        netCfg.Normalization,
		networks.ParamGeneratorArch:        netCfg.GeneratorArch,
		networks.ParamResidualBlocks:       netCfg.ResidualBlocks,

		// Objective.
		losses.ParamGANLoss: "lsgan",
		ParamCycleWeight:    10.0,
		ParamStyleWeight:    1.0,
		ParamAddNoise:       false,
		ParamNoiseStddev:    0.1,

		// Replay pool.
		ParamPoolSize:        50,
		ParamPoolProbability: 0.5,

		// Optimization.
		ParamLearningRate: 2e-4,
		ParamBeta1:        0.5,
		ParamEpochs:       200,
		ParamEpochStep:    100,
		ParamSeed:         0,

		// Side effects.
		ParamSampleFreq:     100,
		ParamSaveFreq:       1000,
		ParamNumCheckpoints: 3,
		ParamRunID:          "",
	})
	return ctx
}
