// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package trainer

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gomlx/cyclegan/pkg/cyclegan"
	"github.com/gomlx/cyclegan/pkg/networks"
	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/ui/plots"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/default"
)

func TestLinearDecay(t *testing.T) {
	s := LinearDecay{LearningRate: 2e-4, Epochs: 200, EpochStep: 100}
	for _, epoch := range []int{0, 1, 50, 99} {
		assert.Equal(t, 2e-4, s.At(epoch), "epoch %d", epoch)
	}
	assert.InDelta(t, 2e-4, s.At(100), 1e-12)
	assert.InDelta(t, 1e-4, s.At(150), 1e-12)
	assert.InDelta(t, 2e-6, s.At(199), 1e-12)
	assert.Equal(t, 0.0, s.At(200))
	for epoch := 100; epoch < 200; epoch++ {
		require.Less(t, s.At(epoch+1), s.At(epoch))
	}

	// Degenerate: no decay period.
	s = LinearDecay{LearningRate: 1, Epochs: 10, EpochStep: 10}
	assert.Equal(t, 1.0, s.At(9))
	assert.Equal(t, 0.0, s.At(10))
}

func TestPlotLosses(t *testing.T) {
	dir := t.TempDir()
	require.Error(t, PlotLosses(dir))

	writer, errReport := plots.CreatePointsWriter(filepath.Join(dir, plots.TrainingPlotFileName))
	for step := int64(1); step <= 5; step++ {
		g := cyclegan.GeneratorLosses{Total: 10 / float32(step), A2B: 1, B2A: 2, Style: 0.5}
		d := cyclegan.DiscriminatorLosses{Total: 0.5, A: 0.25, B: 0.25}
		writePoints(writer, step, stepMetrics(g, d))
	}
	close(writer)
	require.NoError(t, <-errReport)

	points, err := plots.LoadPoints(filepath.Join(dir, plots.TrainingPlotFileName))
	require.NoError(t, err)
	assert.Len(t, points, 5*len(stepMetrics(cyclegan.GeneratorLosses{}, cyclegan.DiscriminatorLosses{})))
	assert.Equal(t, "g_loss", points[0].Short)
	assert.Equal(t, 10.0, points[0].Value)

	require.NoError(t, PlotLosses(dir))
	assert.FileExists(t, filepath.Join(dir, LossesPlotFileName))
}

func writeImage(t *testing.T, path string, c color.Color) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, imaging.Save(imaging.New(40, 36, c), path))
}

// createDataset writes a tiny unpaired dataset with 2 training and 1 test images per domain.
func createDataset(t *testing.T) string {
	dir := t.TempDir()
	for ii := range 2 {
		shade := uint8(60 + 100*ii)
		writeImage(t, filepath.Join(dir, "trainA", fmt.Sprintf("font%d", ii), "a.png"), color.Gray{Y: shade})
		writeImage(t, filepath.Join(dir, "trainB", fmt.Sprintf("b%d.jpg", ii)), color.NRGBA{R: shade, G: 20, B: 200, A: 255})
	}
	writeImage(t, filepath.Join(dir, "testA", "font0", "a.png"), color.Gray{Y: 128})
	writeImage(t, filepath.Join(dir, "testB", "b.png"), color.NRGBA{R: 200, G: 100, B: 0, A: 255})
	return dir
}

func newTestContext(numEpochs int) *context.Context {
	ctx := cyclegan.CreateDefaultContext()
	ctx.SetParams(map[string]any{
		networks.ParamImageSize:            32,
		cyclegan.ParamLoadSize:             36,
		networks.ParamGeneratorFilters:     4,
		networks.ParamDiscriminatorFilters: 4,
		networks.ParamInputChannels:        1,
		networks.ParamOutputChannels:       3,
		networks.ParamStyleDim:             2,
		cyclegan.ParamPoolSize:             2,
		cyclegan.ParamEpochs:               numEpochs,
		cyclegan.ParamEpochStep:            1,
		cyclegan.ParamSampleFreq:           2,
		cyclegan.ParamSaveFreq:             3,
		cyclegan.ParamSeed:                 7,
	})
	return ctx
}

func TestTrainer(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	opts := Options{
		DatasetDir:    createDataset(t),
		CheckpointDir: t.TempDir(),
		SampleDir:     t.TempDir(),
		LogDir:        t.TempDir(),
		Plot:          true,
		Quiet:         true,
	}

	tr, err := New(backend, newTestContext(2), opts)
	require.NoError(t, err)
	assert.False(t, tr.Restored())
	assert.NotEmpty(t, tr.RunID())
	assert.Equal(t, 2, tr.BatchesPerEpoch())
	assert.Equal(t, 0, tr.StartEpoch())
	require.NoError(t, tr.Run())
	assert.Equal(t, int64(4), tr.Model().Step())

	// Samples every 2 steps: step 2 is the last batch of epoch 0, step 4 the last batch of epoch 1.
	for _, name := range SampleNames {
		assert.FileExists(t, filepath.Join(opts.SampleDir, SampleFileName(name, 0, 1)))
		assert.FileExists(t, filepath.Join(opts.SampleDir, SampleFileName(name, 1, 1)))
		assert.NoFileExists(t, filepath.Join(opts.SampleDir, SampleFileName(name, 0, 0)))
	}
	assert.FileExists(t, filepath.Join(opts.LogDir, plots.TrainingPlotFileName))
	assert.FileExists(t, filepath.Join(opts.LogDir, LossesPlotFileName))
	points, err := plots.LoadPoints(filepath.Join(opts.LogDir, plots.TrainingPlotFileName))
	require.NoError(t, err)
	numMetrics := len(stepMetrics(cyclegan.GeneratorLosses{}, cyclegan.DiscriminatorLosses{}))
	require.Len(t, points, 4*numMetrics)
	assert.Equal(t, 4.0, points[len(points)-1].Step)
	runID := tr.RunID()
	tr.Model().Finalize()

	// Continue training for one more epoch: the number of epochs must be set in the command line,
	// otherwise it is restored from the checkpoint.
	opts.ContinueTrain = true
	opts.ParamsSet = []string{cyclegan.ParamEpochs}
	tr, err = New(backend, newTestContext(3), opts)
	require.NoError(t, err)
	assert.True(t, tr.Restored())
	assert.Equal(t, runID, tr.RunID())
	assert.Equal(t, int64(4), tr.Model().Step())
	assert.Equal(t, 2, tr.StartEpoch())
	require.NoError(t, tr.Run())
	assert.Equal(t, int64(6), tr.Model().Step())
	points, err = plots.LoadPoints(filepath.Join(opts.LogDir, plots.TrainingPlotFileName))
	require.NoError(t, err)
	require.Len(t, points, 6*numMetrics)
	tr.Model().Finalize()

	// Starting over moves the existing checkpoints aside.
	opts.ContinueTrain = false
	opts.ParamsSet = nil
	tr, err = New(backend, newTestContext(1), opts)
	require.NoError(t, err)
	assert.False(t, tr.Restored())
	assert.Equal(t, int64(0), tr.Model().Step())
	assert.NotEqual(t, runID, tr.RunID())
	matches, err := filepath.Glob(filepath.Join(opts.CheckpointDir, "previous-*"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	// The loss points of the previous run are moved aside as well, and the new log only holds
	// the points of the new run.
	require.NoError(t, tr.Run())
	assert.Equal(t, int64(2), tr.Model().Step())
	points, err = plots.LoadPoints(filepath.Join(opts.LogDir, plots.TrainingPlotFileName))
	require.NoError(t, err)
	require.Len(t, points, 2*numMetrics)
	assert.Equal(t, 1.0, points[0].Step)
	previousPoints, err := filepath.Glob(filepath.Join(opts.LogDir, "previous-*", plots.TrainingPlotFileName))
	require.NoError(t, err)
	require.Len(t, previousPoints, 1)
	points, err = plots.LoadPoints(previousPoints[0])
	require.NoError(t, err)
	assert.Len(t, points, 6*numMetrics)
	tr.Model().Finalize()
}

func TestTrainerContinuesMidEpoch(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	opts := Options{
		DatasetDir:    createDataset(t),
		CheckpointDir: t.TempDir(),
		SampleDir:     t.TempDir(),
		LogDir:        t.TempDir(),
		Quiet:         true,
	}
	tr, err := New(backend, newTestContext(2), opts)
	require.NoError(t, err)
	require.NoError(t, tr.Run())
	require.Equal(t, int64(4), tr.Model().Step())
	tr.Model().Finalize()

	// Drop the final checkpoint, so the latest one is from step 3: the first batch of epoch 1.
	latest, err := filepath.Glob(filepath.Join(opts.CheckpointDir, "checkpoint-*-step-00000004.*"))
	require.NoError(t, err)
	require.NotEmpty(t, latest)
	for _, path := range latest {
		require.NoError(t, os.Remove(path))
	}

	opts.ContinueTrain = true
	tr, err = New(backend, newTestContext(2), opts)
	require.NoError(t, err)
	require.True(t, tr.Restored())
	assert.Equal(t, int64(3), tr.Model().Step())
	assert.Equal(t, 1, tr.StartEpoch())
	assert.Equal(t, 1, tr.StartBatch())
	require.NoError(t, tr.Run())
	assert.Equal(t, int64(4), tr.Model().Step(), "only the remaining batch of epoch 1 is trained")
	tr.Model().Finalize()
}

func TestTrainerUnlimitedTrainSize(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := newTestContext(1)
	ctx.SetParam(cyclegan.ParamTrainSize, 0)
	tr, err := New(backend, ctx, Options{
		DatasetDir:    createDataset(t),
		CheckpointDir: t.TempDir(),
		LogDir:        t.TempDir(),
		Quiet:         true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, tr.BatchesPerEpoch())
	assert.Equal(t, 0, tr.StartBatch())
	tr.Model().Finalize()
}

func TestTrainerRequiresImages(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	_, err := New(backend, newTestContext(1), Options{
		DatasetDir:    t.TempDir(),
		CheckpointDir: t.TempDir(),
		Quiet:         true,
	})
	require.Error(t, err)
}
